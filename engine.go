package analyzer

import (
	"context"
	"fmt"
	"io"

	"github.com/wichtounet/inlining-analyzer/graphreader"
	"github.com/wichtounet/inlining-analyzer/internal/binelf"
	"github.com/wichtounet/inlining-analyzer/internal/graph"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

// Engine sequences a whole run: read the raw call graph, enrich it against
// the binaries, compute temperatures, and hand back a ready Analyzer and
// Filter for the report layer to query. It owns the Registry and Inspector
// for the lifetime of a single analysis.
type Engine struct {
	Graph     *graph.Graph
	Params    *params.Registry
	Inspector *binelf.Inspector
	Analyzer  *Analyzer
	Filter    *Filter

	demangled bool
	logger    binelf.Logger
}

// Option configures an Engine before New runs the analysis pipeline.
type Option func(*Engine)

// WithProtectedLibrary marks library as a relocation destination solutions
// must flag instead of silently proposing. May be given more than once.
func WithProtectedLibrary(library string) Option {
	return func(e *Engine) {
		e.Analyzer.AddProtectedLibrary(library)
	}
}

// WithFilterDuplicates collapses repeated library-issue proposals for the
// same function/library pair into one.
func WithFilterDuplicates(b bool) Option {
	return func(e *Engine) {
		e.Analyzer.FilterDuplicates = b
	}
}

// WithDefaultFilters seeds the standard noisy-name exclusion set (malloc,
// free, memcpy, exit, "(below main)") onto the Engine's report Filter.
func WithDefaultFilters() Option {
	return func(e *Engine) {
		e.Filter.EnableDefaultFilters()
	}
}

// WithFilter excludes name from every report.
func WithFilter(name string) Option {
	return func(e *Engine) {
		e.Filter.Add(name)
	}
}

// WithDemangled requests demangled-name tail-key extraction in the virtual
// hierarchy search instead of the mangled-name fallback.
func WithDemangled(b bool) Option {
	return func(e *Engine) {
		e.demangled = b
	}
}

// WithParameter overrides a single tunable ahead of temperature
// computation. Applied after the registry's built-in defaults, before
// enrichment and ComputeTemperatures run.
func WithParameter(key params.Key, value float64) Option {
	return func(e *Engine) {
		e.Params.Set(key, value)
	}
}

// WithLogger routes Enrich's malformed-label diagnostics to l instead of
// discarding them.
func WithLogger(l binelf.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New is NewContext with context.Background(), for callers that don't need
// to cancel a long binary-parsing phase.
func New(r io.Reader, inspectorOpts []binelf.Option, opts ...Option) (*Engine, error) {
	return NewContext(context.Background(), r, inspectorOpts, opts...)
}

// NewContext reads the call graph from r, parses every binary path
// referenced by a vertex's module with the configured Inspector, enriches
// the graph, and computes every function's and call site's temperature. The
// returned Engine is immediately ready for analysis queries.
//
// Binary parsing runs in two phases: a bounded worker pool first prewarms
// the Inspector's cache for every distinct module path in the graph
// (observing ctx cancellation between files, never mid-file), then Enrich
// walks the graph single-threaded. Files the prewarm finished are cache hits;
// any file it skipped because ctx was cancelled is parsed on demand by Enrich.
func NewContext(ctx context.Context, r io.Reader, inspectorOpts []binelf.Option, opts ...Option) (*Engine, error) {
	g, err := graphreader.Read(r)
	if err != nil {
		return nil, fmt.Errorf("analyzer: reading call graph: %w", err)
	}

	p := params.NewRegistry()
	inspector := binelf.NewInspector(inspectorOpts...)

	e := &Engine{
		Graph:     g,
		Params:    p,
		Inspector: inspector,
		Analyzer:  NewAnalyzer(g, p),
		Filter:    NewFilter(),
	}

	for _, opt := range opts {
		opt(e)
	}

	inspector.PrewarmContext(ctx, moduleFiles(g))
	Enrich(g, inspector, e.logger)
	ComputeTemperatures(g, p)

	return e, nil
}

// moduleFiles collects the distinct binary paths referenced by the graph's
// vertices, so they can be parsed by a bounded worker pool ahead of the
// single-threaded enrichment walk instead of one at a time on demand.
func moduleFiles(g *graph.Graph) []string {
	seen := map[string]bool{}
	var files []string
	for _, id := range g.Functions() {
		module := g.Function(id).Module
		if module == "" || seen[module] {
			continue
		}
		seen[module] = true
		files = append(files, module)
	}
	return files
}

// FindVirtualHierarchyIssues runs the virtual hierarchy search with the
// Engine's configured demangled mode.
func (e *Engine) FindVirtualHierarchyIssues() []HierarchyIssue {
	return e.Analyzer.FindVirtualHierarchyIssues(e.Inspector, e.demangled)
}
