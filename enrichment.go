package analyzer

import (
	"strconv"
	"strings"

	"github.com/wichtounet/inlining-analyzer/internal/binelf"
	"github.com/wichtounet/inlining-analyzer/internal/graph"
)

// Enrich populates every function and call site attribute that the raw
// graph reader cannot fill in on its own: costs and call counts parsed out
// of profiler labels, parameter counts inferred from function names, and
// size/virtuality looked up from the Binary Inspector. It also accumulates
// the graph's totalCalls and applicationSize, required by the heuristics
// pass that must run after this one. A malformed label never aborts
// enrichment: the offending entity keeps zero-valued numeric attributes and
// logger records a diagnostic.
func Enrich(g *graph.Graph, inspector *binelf.Inspector, logger binelf.Logger) {
	if logger == nil {
		logger = binelf.DiscardLogger
	}

	var totalCalls, totalSize uint64

	for _, id := range g.Functions() {
		f := g.Function(id)

		inclusive, self, calls, ok := parseFunctionLabel(f.Label)
		if !ok {
			logger.Warnf("analyzer: function %q: malformed label %q", f.Name, f.Label)
		}
		f.InclusiveCost = inclusive
		f.SelfCost = self
		f.Calls = calls
		f.Parameters = countParameters(f.Name)

		f.Size = inspector.SizeOf(f.Module, f.Name)
		f.Virtual = inspector.IsVirtual(f.Module, f.Name)

		totalCalls += calls
		totalSize += f.Size
	}

	g.SetTotalCalls(totalCalls)
	g.SetApplicationSize(totalSize)

	for _, id := range g.CallSites() {
		cs := g.CallSite(id)
		var ok bool
		cs.Cost, cs.Calls, ok = parseCallSiteLabel(cs.Label)
		if !ok {
			caller, callee := g.Function(cs.Caller), g.Function(cs.Callee)
			logger.Warnf("analyzer: call site %s -> %s: malformed label %q", caller.Name, callee.Name, cs.Label)
		}
		if totalCalls > 0 {
			cs.Frequency = float64(cs.Calls) / float64(totalCalls)
		}
	}

	if totalCalls > 0 {
		for _, id := range g.Functions() {
			f := g.Function(id)
			f.Frequency = float64(f.Calls) / float64(totalCalls)
		}
	}
}

// parseCallSiteLabel parses an edge label, which is either "<calls>x" (cost
// zero) or "<cost>%\n<calls>x". ok is false when the label has neither one
// nor two lines, in which case cost/calls are both zero. Only the line count
// is checked: a number that does not parse yields zero with ok still true.
func parseCallSiteLabel(label string) (cost float64, calls uint64, ok bool) {
	lines := strings.Split(strings.TrimSpace(label), "\n")
	switch len(lines) {
	case 1:
		return 0, parseCalls(lines[0]), true
	case 2:
		return parsePercent(lines[0]), parseCalls(lines[1]), true
	default:
		return 0, 0, false
	}
}

// parseFunctionLabel parses a vertex label of the form
// "<name>\n<inclusive>%\n(<self>%)\n<calls>x". ok is false when the label
// has fewer than four lines, in which case every numeric result is zero.
func parseFunctionLabel(label string) (inclusive, self float64, calls uint64, ok bool) {
	lines := strings.Split(strings.TrimSpace(label), "\n")
	if len(lines) < 4 {
		return 0, 0, 0, false
	}
	inclusive = parsePercent(lines[1])
	self = parsePercent(strings.Trim(strings.TrimSpace(lines[2]), "()"))
	calls = parseCalls(lines[3])
	return inclusive, self, calls, true
}

func parsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseCalls(s string) uint64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "×")
	s = strings.TrimSuffix(s, "x")
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// countParameters implements the parameter-count heuristic: scan from the
// rightmost ')', walking left while tracking two independent depth
// counters (angle brackets for templates, parentheses for function-pointer
// types), counting one parameter per top-level comma. Any non-space
// character seen before the first comma guarantees at least one parameter.
// Returns 0 if name has no ')'.
func countParameters(name string) uint32 {
	close := strings.LastIndexByte(name, ')')
	if close < 0 {
		return 0
	}

	var params uint32
	var sawNonSpace bool
	angleDepth := 0
	parenDepth := 0 // counts nested '(' / ')' below the outermost one

	i := close - 1
	for ; i >= 0; i-- {
		c := name[i]
		switch c {
		case '(':
			if parenDepth == 0 {
				// matching top-level '(' consumed: stop.
				i--
				goto done
			}
			parenDepth--
		case ')':
			parenDepth++
		case '>':
			angleDepth++
		case '<':
			if angleDepth > 0 {
				angleDepth--
			}
		case ',':
			if parenDepth == 0 && angleDepth == 0 {
				params++
				sawNonSpace = false
				continue
			}
		case ' ':
		default:
			sawNonSpace = true
		}
	}

done:
	if params == 0 && sawNonSpace {
		params = 1
	} else if params > 0 {
		params++
	}
	return params
}
