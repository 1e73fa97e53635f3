// Package pipeline runs transformations through the content-addressed cache.
package pipeline

import (
	"context"
	"errors"

	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/zerr"
)

// Pipeline fingerprints a transformation, serves it from the cache when
// possible and otherwise runs the transformer and stores the result.
type Pipeline struct {
	hasher      ports.Fingerprinter
	store       ports.CacheStore
	transformer ports.Transformer
	tracer      ports.Tracer
	logger      ports.Logger
}

// New creates a Pipeline.
func New(
	hasher ports.Fingerprinter,
	store ports.CacheStore,
	transformer ports.Transformer,
	tracer ports.Tracer,
	logger ports.Logger,
) *Pipeline {
	return &Pipeline{
		hasher:      hasher,
		store:       store,
		transformer: transformer,
		tracer:      tracer,
		logger:      logger,
	}
}

// Transform returns the executable code for opts. The same source and
// options always yield byte-identical code, whether computed or cached.
// Transformer failures are returned as domain.ErrTransformFailed and are
// never cached.
func (p *Pipeline) Transform(ctx context.Context, opts domain.TransformOptions) (domain.TransformResult, error) {
	ctx, span := p.tracer.Start(ctx, "jit.transform")
	defer span.End()
	span.SetAttribute("file", opts.Filename)

	if opts.SourceHash == "" {
		opts.SourceHash = p.hasher.HashSource(opts.Source)
	}
	key := p.hasher.Fingerprint(opts)
	span.SetAttribute("cache.key", key)

	if entry, err := p.store.Lookup(key); err == nil {
		span.SetAttribute("cache.hit", true)
		p.logger.Debug("transform cache hit", "file", opts.Filename, "key", key)
		return domain.TransformResult{Code: entry.Code, SourceMap: entry.SourceMap, CacheHit: true}, nil
	}
	span.SetAttribute("cache.hit", false)

	res, err := p.transformer.Transform(ctx, opts)
	if err == nil && res.Error != "" {
		err = errors.New(res.Error)
	}
	if err != nil {
		err = zerr.With(errors.Join(domain.ErrTransformFailed, err), "file", opts.Filename)
		if res.Error != "" {
			err = zerr.With(err, "diagnostic", res.Error)
		}
		span.RecordError(err)
		return domain.TransformResult{}, err
	}

	code := res.Code
	if opts.Interop {
		code = WithInterop(code)
	}

	entry := domain.CacheEntry{Key: key, Code: code, SourceMap: res.SourceMap}
	if err := p.store.Store(entry); err != nil {
		p.logger.Warn("failed to cache transform result", "file", opts.Filename, "error", err)
	}
	p.logger.Debug("transformed", "file", opts.Filename, "key", key)

	return domain.TransformResult{Code: code, SourceMap: res.SourceMap}, nil
}

// CacheDir returns the directory transform results are stored in, or "" when caching is off.
func (p *Pipeline) CacheDir() string {
	return p.store.Dir()
}
