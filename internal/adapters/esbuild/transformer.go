// Package esbuild provides the default transformer, backed by esbuild.
package esbuild

import (
	"context"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
)

// DefaultTarget is the output language level used when no target extra is set.
const DefaultTarget = "es2017"

var _ ports.Transformer = (*Transformer)(nil)

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

var loaders = map[string]api.Loader{
	"js":  api.LoaderJS,
	"jsx": api.LoaderJSX,
	"ts":  api.LoaderTS,
	"tsx": api.LoaderTSX,
}

// Transformer converts TypeScript, JSX and ES module syntax into CommonJS.
type Transformer struct{}

// NewTransformer creates a new Transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform converts opts.Source. esbuild diagnostics are reported through
// TransformResult.Error, not the returned error. RetainLines is ignored;
// line positions are recovered through source maps instead.
func (t *Transformer) Transform(ctx context.Context, opts domain.TransformOptions) (domain.TransformResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.TransformResult{}, err
	}

	options, diag := buildOptions(opts)
	if diag != "" {
		return domain.TransformResult{Error: diag}, nil
	}

	result := api.Transform(opts.Source, options)
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return domain.TransformResult{Error: strings.TrimSpace(strings.Join(msgs, ""))}, nil
	}

	return domain.TransformResult{
		Code:      string(result.Code),
		SourceMap: string(result.Map),
	}, nil
}

func buildOptions(opts domain.TransformOptions) (api.TransformOptions, string) {
	targetName := strings.ToLower(opts.Extra.Get(domain.ExtraTarget))
	if targetName == "" {
		targetName = DefaultTarget
	}
	target, ok := targets[targetName]
	if !ok {
		return api.TransformOptions{}, "unsupported target " + targetName
	}

	loader := loaderFor(opts)
	if name := opts.Extra.Get(domain.ExtraLoader); name != "" {
		if loader, ok = loaders[strings.ToLower(name)]; !ok {
			return api.TransformOptions{}, "unsupported loader " + name
		}
	}

	options := api.TransformOptions{
		Loader:      loader,
		Format:      api.FormatCommonJS,
		Platform:    api.PlatformNode,
		Target:      target,
		Sourcefile:  opts.Filename,
		JSXFactory:  opts.Extra.Get(domain.ExtraJSXFactory),
		JSXFragment: opts.Extra.Get(domain.ExtraJSXFragment),
		LogLevel:    api.LogLevelSilent,
	}
	if opts.SourceMaps {
		options.Sourcemap = api.SourceMapExternal
		options.SourcesContent = api.SourcesContentExclude
	}
	return options, ""
}

func loaderFor(opts domain.TransformOptions) api.Loader {
	switch {
	case opts.TS && opts.JSX:
		return api.LoaderTSX
	case opts.TS:
		return api.LoaderTS
	case opts.JSX:
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}
