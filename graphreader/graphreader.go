// Package graphreader parses the profiler's DOT-format call graph export
// into a raw, unenriched graph.Graph. It recovers exactly the attributes the
// export carries — a vertex's node id, label, source filename, and module,
// plus an edge's label — and nothing else: size, virtuality, parameter
// count, cost, frequency, and temperature are all filled in later by Enrich
// and ComputeTemperatures.
package graphreader

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/wichtounet/inlining-analyzer/internal/graph"
)

var (
	edgePattern   = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"\s*->\s*"((?:[^"\\]|\\.)*)"\s*\[(.*)\]\s*;?$`)
	vertexPattern = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"\s*\[(.*)\]\s*;?$`)
	attrPattern   = regexp.MustCompile(`(\w+)\s*=\s*"((?:[^"\\]|\\.)*)"`)
)

// Read parses a DOT-format call graph from r. Every vertex statement's
// quoted name is used verbatim as the node id later edge statements
// reference; an edge naming a vertex id Read has not yet seen is an error,
// since the export always declares vertices before the edges touching them.
func Read(r io.Reader) (*graph.Graph, error) {
	g := graph.New()
	ids := map[string]graph.FunctionID{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || isStructural(text) {
			continue
		}

		if m := edgePattern.FindStringSubmatch(text); m != nil {
			caller, ok := ids[unescape(m[1])]
			if !ok {
				return nil, fmt.Errorf("graphreader: line %d: edge references unknown vertex %q", line, m[1])
			}
			callee, ok := ids[unescape(m[2])]
			if !ok {
				return nil, fmt.Errorf("graphreader: line %d: edge references unknown vertex %q", line, m[2])
			}

			attrs := parseAttrs(m[3])
			g.AddCallSite(graph.CallSite{Caller: caller, Callee: callee, Label: attrs["label"]})
			continue
		}

		if m := vertexPattern.FindStringSubmatch(text); m != nil {
			name := unescape(m[1])
			attrs := parseAttrs(m[2])
			id := g.AddFunction(graph.Function{
				Name:     name,
				Label:    attrs["label"],
				FileName: attrs["filename"],
				Module:   attrs["module"],
			})
			ids[name] = id
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("graphreader: %w", err)
	}

	g.Freeze()
	return g, nil
}

// isStructural reports whether the line is graph-level boilerplate (the
// digraph/graph header, braces, or the graph's own "name" attribute) rather
// than a vertex or edge statement.
func isStructural(line string) bool {
	trimmed := strings.TrimSuffix(line, ";")
	switch {
	case strings.HasPrefix(trimmed, "digraph"), strings.HasPrefix(trimmed, "graph "):
		return true
	case trimmed == "{" || trimmed == "}":
		return true
	case strings.HasPrefix(trimmed, "name="):
		return true
	}
	return false
}

func parseAttrs(body string) map[string]string {
	attrs := map[string]string{}
	for _, m := range attrPattern.FindAllStringSubmatch(body, -1) {
		attrs[m[1]] = unescape(m[2])
	}
	return attrs
}

// unescape undoes the DOT quoting the export applies to attribute values:
// escaped quotes become literal quotes, and the literal two-character "\n"
// sequence graphviz uses as a soft line break inside a label becomes a real
// newline, so downstream label parsing can split on it directly.
func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	return s
}
