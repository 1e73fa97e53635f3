package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/jit/internal/adapters/fs"
	"go.trai.ch/jit/internal/core/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestResolver_ExtensionProbing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "proj", "src")
	writeFile(t, filepath.Join(src, "util.ts"), "export const x = 1")

	r := fs.NewResolver([]string{".js", ".ts"}, nil)
	mod, err := r.Resolve("./util", src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(src, "util.ts"), mod.AbsolutePath)
	assert.Equal(t, ".ts", mod.Extension)
	assert.False(t, mod.IsNative)
}

func TestResolver_EarlierExtensionWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "util.js"), "")
	writeFile(t, filepath.Join(dir, "util.ts"), "")

	mod, err := fs.NewResolver([]string{".ts", ".js"}, nil).Resolve("./util", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "util.ts"), mod.AbsolutePath)

	mod, err = fs.NewResolver([]string{".js", ".ts"}, nil).Resolve("./util", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "util.js"), mod.AbsolutePath)
}

func TestResolver_ExactPathBeforeExtensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "data"), "")
	writeFile(t, filepath.Join(dir, "data.js"), "")

	mod, err := fs.NewResolver([]string{".js"}, nil).Resolve("./data", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), mod.AbsolutePath)
}

func TestResolver_DirectoryIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lib", "index.ts"), "")

	mod, err := fs.NewResolver([]string{".js", ".ts"}, nil).Resolve("./lib", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lib", "index.ts"), mod.AbsolutePath)
}

func TestResolver_PackageMain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pkg := filepath.Join(dir, "node_modules", "pkg")
	writeFile(t, filepath.Join(pkg, "package.json"), `{"main": "dist/entry"}`)
	writeFile(t, filepath.Join(pkg, "dist", "entry.js"), "")
	writeFile(t, filepath.Join(pkg, "index.js"), "")

	nested := filepath.Join(dir, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	mod, err := fs.NewResolver([]string{".js"}, nil).Resolve("pkg", nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(pkg, "dist", "entry.js"), mod.AbsolutePath)
}

func TestResolver_InvalidManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lib", "package.json"), `{not json`)

	_, err := fs.NewResolver([]string{".js"}, nil).Resolve("./lib", dir)
	require.ErrorIs(t, err, domain.ErrPackageManifestInvalid)
}

func TestResolver_Alias(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "components", "button.ts"), "")
	writeFile(t, filepath.Join(dir, "other", "button.ts"), "")

	r := fs.NewResolver([]string{".ts"}, map[string]string{
		"@":            filepath.Join(dir, "other"),
		"@/components": filepath.Join(dir, "src", "components"),
	})

	mod, err := r.Resolve("@/components/button", "/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "src", "components", "button.ts"), mod.AbsolutePath,
		"longest alias prefix must win")

	mod, err = r.Resolve("@/button", "/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "other", "button.ts"), mod.AbsolutePath)
}

func TestResolver_AliasMatchesWholeSegments(t *testing.T) {
	t.Parallel()

	r := fs.NewResolver(nil, map[string]string{"lib": "/vendor/lib"})

	assert.Equal(t, "/vendor/lib", r.Alias("lib"))
	assert.Equal(t, "/vendor/lib/x", r.Alias("lib/x"))
	assert.Equal(t, "library/x", r.Alias("library/x"))
	assert.Equal(t, "./lib", r.Alias("./lib"))
}

func TestResolver_FileURL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.js"), "")

	mod, err := fs.NewResolver([]string{".js"}, nil).Resolve("file://"+filepath.Join(dir, "a"), "/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.js"), mod.AbsolutePath)
}

func TestResolver_NotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o750))

	r := fs.NewResolver([]string{".js"}, nil)

	tests := []struct {
		name      string
		specifier string
	}{
		{name: "missing relative", specifier: "./missing"},
		{name: "directory without index", specifier: "./empty"},
		{name: "missing bare", specifier: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := r.Resolve(tt.specifier, dir)
			require.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestResolver_EmptySpecifier(t *testing.T) {
	t.Parallel()

	_, err := fs.NewResolver(nil, nil).Resolve("", t.TempDir())
	require.ErrorIs(t, err, domain.ErrEmptySpecifier)
}

func TestResolver_DoesNotCreateFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, _ = fs.NewResolver([]string{".js"}, nil).Resolve("./x", dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
