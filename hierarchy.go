package analyzer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/wichtounet/inlining-analyzer/internal/binelf"
	"github.com/wichtounet/inlining-analyzer/internal/params"
)

// HierarchyIssue flags a virtual-function hierarchy whose profiled call
// distribution suggests it does not need virtual dispatch.
type HierarchyIssue struct {
	Name    string
	Calls   uint64
	Issue   string
	Members []string
}

// FindVirtualHierarchyIssues groups the Binary Inspector's virtual-function
// set into hierarchies by tail key, cross-references member call counts
// from the graph, and reports every hierarchy whose members' call
// distribution matches one of the known issue patterns.
func (a *Analyzer) FindVirtualHierarchyIssues(inspector *binelf.Inspector, demangled bool) []HierarchyIssue {
	virtualFunctions := inspector.VirtualFunctions()
	if len(virtualFunctions) == 0 {
		return nil
	}

	hierarchies := map[string]map[string]bool{}
	for _, hash := range virtualFunctions {
		parts := strings.SplitN(hash, "##", 2)
		if len(parts) != 2 {
			continue
		}
		function := parts[1]
		if len(function) <= 1 {
			continue
		}

		var key string
		var ok bool
		if demangled {
			key, ok = demangledTailKey(function)
		} else {
			key, ok = mangledTailKey(function)
		}
		if !ok {
			continue
		}

		if hierarchies[key] == nil {
			hierarchies[key] = map[string]bool{}
		}
		hierarchies[key][function] = true
	}

	calls := map[string]uint64{}
	for _, id := range a.Graph.Functions() {
		f := a.Graph.Function(id)
		calls[f.Name] = f.Calls
	}

	maxCallsFunction := a.Params.Get(params.HierarchyMaxCallsFunction)
	minCalledFunctions := a.Params.Get(params.HierarchyMinCalledFunctions)

	var issues []HierarchyIssue
	for key, members := range hierarchies {
		if key == "D1Ev" {
			continue
		}

		if len(members) > 1 {
			if issue, sum, ok := diagnoseHierarchy(members, calls, maxCallsFunction, minCalledFunctions); ok {
				issues = append(issues, HierarchyIssue{Name: key, Calls: sum, Issue: issue, Members: memberList(members, calls)})
			}
		} else {
			for m := range members {
				if calls[m] > 0 {
					issues = append(issues, HierarchyIssue{
						Name:    key,
						Calls:   calls[m],
						Issue:   "The hierarchy contains only one member. This hierarchy should not be virtual.",
						Members: []string{m + " : " + strconv.FormatUint(calls[m], 10)},
					})
				}
			}
		}
	}

	return issues
}

// diagnoseHierarchy applies the four-tier diagnosis, in priority order, to
// a hierarchy with more than one member. ok is false when the hierarchy
// has no issue (including the "never called" case, sum == 0).
func diagnoseHierarchy(members map[string]bool, calls map[string]uint64, maxCallsFunction, minCalledFunctions float64) (issue string, sum uint64, ok bool) {
	var called int
	for m := range members {
		sum += calls[m]
		if calls[m] > 0 {
			called++
		}
	}
	if sum == 0 {
		return "", 0, false
	}

	for m := range members {
		if calls[m] == sum {
			return "Only " + m + " is called. This hierarchy should not be virtual.", sum, true
		}
		if float64(calls[m]) > float64(sum)*maxCallsFunction {
			return m + " is called more than " + formatPercent(maxCallsFunction) + "% of the time. Perhaps this hierarchy should not be virtual or this function should be called directly.", sum, true
		}
	}

	if float64(called) < minCalledFunctions*float64(len(members)) {
		return "Less than " + formatPercent(minCalledFunctions) + "% of the functions are called.", sum, true
	}

	return "", sum, false
}

func memberList(members map[string]bool, calls map[string]uint64) []string {
	out := make([]string, 0, len(members))
	for m := range members {
		out = append(out, m+" : "+strconv.FormatUint(calls[m], 10))
	}
	return out
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', -1, 64)
}

// demangledTailKey locates the last "::" occurring before the first "("
// in a demangled C++ signature and returns the tail after it. Virtual
// thunks are excluded, since they are compiler-generated dispatch stubs
// rather than real hierarchy members.
func demangledTailKey(function string) (string, bool) {
	if strings.Contains(function, "virtual thunk") {
		return "", false
	}

	pos := strings.Index(function, "::")
	if pos < 0 {
		return "", false
	}

	start := strings.Index(function, "(")
	if start < 0 || start < pos {
		return "", false
	}

	for {
		rel := strings.Index(function[pos+2:], "::")
		if rel < 0 {
			break
		}
		pos2 := rel + pos + 2
		if pos2 < start {
			pos = pos2
		} else {
			break
		}
	}

	return function[pos+2:], true
}

// mangledTailKey implements the Itanium-mangled equivalent: find the first
// decimal length prefix, skip that many bytes (the first, outermost name
// component), and return the remaining tail.
func mangledTailKey(function string) (string, bool) {
	if !strings.Contains(function, "_ZN") {
		return "", false
	}

	pos := 0
	for pos < len(function) && !unicode.IsDigit(rune(function[pos])) {
		pos++
	}
	if pos >= len(function) {
		return "", false
	}

	start := pos
	for pos < len(function) && unicode.IsDigit(rune(function[pos])) {
		pos++
	}
	length, err := strconv.Atoi(function[start:pos])
	if err != nil || pos+length > len(function) {
		return "", false
	}

	return function[pos+length:], true
}
