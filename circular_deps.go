package analyzer

// FindCircularDependencies builds a directed library-level graph (vertices
// = distinct non-empty modules, edges = "at least one call site crosses
// this pair", no multiplicity) and reports every strongly-connected
// component of size > 1 as a circular dependency.
func (a *Analyzer) FindCircularDependencies() [][]string {
	index := map[string]int{}
	var names []string
	adj := map[int]map[int]bool{}

	addLibrary := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := index[name]; ok {
			return i
		}
		i := len(names)
		index[name] = i
		names = append(names, name)
		adj[i] = map[int]bool{}
		return i
	}

	for _, id := range a.Graph.CallSites() {
		cs := a.Graph.CallSite(id)
		src := addLibrary(a.Graph.Function(cs.Caller).Module)
		dest := addLibrary(a.Graph.Function(cs.Callee).Module)
		if src >= 0 && dest >= 0 && src != dest {
			adj[src][dest] = true
		}
	}

	var dependencies [][]string
	for _, comp := range tarjanSCC(len(names), adj) {
		if len(comp) <= 1 {
			continue
		}
		group := make([]string, len(comp))
		for i, v := range comp {
			group[i] = names[v]
		}
		dependencies = append(dependencies, group)
	}

	return dependencies
}

// tarjanSCC computes the strongly-connected components of a directed graph
// with n vertices (0..n-1) given as an adjacency map.
func tarjanSCC(n int, adj map[int]map[int]bool) [][]int {
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var stack []int
	var components [][]int
	counter := 0

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for w := range adj[v] {
			switch {
			case index[w] == -1:
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			case onStack[w]:
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			components = append(components, comp)
		}
	}

	for v := 0; v < n; v++ {
		if index[v] == -1 {
			strongconnect(v)
		}
	}

	return components
}
