package config

// File is the structure of jit.yaml. Unset fields keep their defaults.
type File struct {
	Version          string            `yaml:"version"`
	Extensions       []string          `yaml:"extensions"`
	Alias            map[string]string `yaml:"alias"`
	NativeModules    []string          `yaml:"nativeModules"`
	TransformModules []string          `yaml:"transformModules"`
	Cache            *bool             `yaml:"cache"`
	CacheDir         string            `yaml:"cacheDir"`
	CacheVersion     string            `yaml:"cacheVersion"`
	CacheRetention   string            `yaml:"cacheRetention"`
	SourceMaps       *bool             `yaml:"sourceMaps"`
	RequireCache     *bool             `yaml:"requireCache"`
	InteropDefault   *bool             `yaml:"interopDefault"`
	Debug            *bool             `yaml:"debug"`
	TransformOptions map[string]string `yaml:"transformOptions"`
}
