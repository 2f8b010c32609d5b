// Package params implements the process-wide Parameters registry: a closed
// enumeration of tunable numeric knobs shared by every analysis component
// without threading them through every signature.
package params

// Key identifies a tunable parameter. The enumeration is closed so that
// every read site can be checked against the full set of recognized knobs.
type Key int

const (
	HeavyCallSite Key = iota
	HotCallSite
	ClusterMaxSize
	LibraryPathThreshold
	LibraryPathMaxLength
	LibraryMinPathCalls
	MoveBenefitThreshold
	ParametersThreshold

	HierarchyMaxCallsFunction
	HierarchyMinCalledFunctions
	HierarchyMinCalls

	HeuristicFunctionParameterCost
	HeuristicFunctionVirtualityCost

	HeuristicCallSiteParameterCost
	HeuristicCallSiteVirtualityCost

	HeuristicLibraryCost

	numKeys
)

// defaults mirrors the original implementation's Parameters::init().
var defaults = map[Key]float64{
	HeavyCallSite:        10000,
	HotCallSite:          0.001,
	ClusterMaxSize:       10,
	LibraryPathThreshold: 500,
	LibraryPathMaxLength: 3,
	LibraryMinPathCalls:  10,
	MoveBenefitThreshold: 100,
	ParametersThreshold:  10,

	HierarchyMaxCallsFunction:   0.80,
	HierarchyMinCalledFunctions: 0.20,
	HierarchyMinCalls:           100,

	HeuristicFunctionParameterCost:  0.10,
	HeuristicFunctionVirtualityCost: 0.10,

	HeuristicCallSiteParameterCost:  0.10,
	HeuristicCallSiteVirtualityCost: 0.39,

	HeuristicLibraryCost: 0.39,
}

// Registry holds the current value of every parameter. It is process-wide
// mutable state by convention: callers must complete configuration before
// starting analyses (no concurrent writers), matching the single-threaded
// core.
type Registry struct {
	values map[Key]float64
}

// NewRegistry returns a Registry initialized with the default value of
// every recognized key, equivalent to the original Parameters::init().
func NewRegistry() *Registry {
	r := &Registry{values: make(map[Key]float64, int(numKeys))}
	for k, v := range defaults {
		r.values[k] = v
	}
	return r
}

// Get returns the current value of the parameter.
func (r *Registry) Get(k Key) float64 {
	return r.values[k]
}

// Set overwrites the parameter unconditionally.
func (r *Registry) Set(k Key, v float64) {
	r.values[k] = v
}

// SetDefault writes the value only if the key is currently unset. Since
// NewRegistry seeds every key with its built-in default, SetDefault is only
// meaningful on a Registry constructed without seeding (see NewEmptyRegistry),
// mirroring the original setDefault(k, v) called once per key during init.
func (r *Registry) SetDefault(k Key, v float64) {
	if _, ok := r.values[k]; !ok {
		r.values[k] = v
	}
}

// NewEmptyRegistry returns a Registry with no keys set, for callers that
// want to observe SetDefault's write-only-if-unset behavior from a clean
// slate (e.g. config-file loading followed by built-in defaults).
func NewEmptyRegistry() *Registry {
	return &Registry{values: make(map[Key]float64, int(numKeys))}
}

// ApplyDefaults seeds every recognized key that is not already set. Callers
// that load a config file into an empty Registry via SetDefault should call
// this afterward so that any key the config omitted still gets its built-in
// default.
func (r *Registry) ApplyDefaults() {
	for k, v := range defaults {
		r.SetDefault(k, v)
	}
}

// Name returns the canonical configuration-file / flag name for a key.
func (k Key) Name() string {
	switch k {
	case HeavyCallSite:
		return "HeavyCallSite"
	case HotCallSite:
		return "HotCallSite"
	case ClusterMaxSize:
		return "ClusterMaxSize"
	case LibraryPathThreshold:
		return "LibraryPathThreshold"
	case LibraryPathMaxLength:
		return "LibraryPathMaxLength"
	case LibraryMinPathCalls:
		return "LibraryMinPathCalls"
	case MoveBenefitThreshold:
		return "MoveBenefitThreshold"
	case ParametersThreshold:
		return "ParametersThreshold"
	case HierarchyMaxCallsFunction:
		return "HierarchyMaxCallsFunction"
	case HierarchyMinCalledFunctions:
		return "HierarchyMinCalledFunctions"
	case HierarchyMinCalls:
		return "HierarchyMinCalls"
	case HeuristicFunctionParameterCost:
		return "HeuristicFunctionParameterCost"
	case HeuristicFunctionVirtualityCost:
		return "HeuristicFunctionVirtualityCost"
	case HeuristicCallSiteParameterCost:
		return "HeuristicCallSiteParameterCost"
	case HeuristicCallSiteVirtualityCost:
		return "HeuristicCallSiteVirtualityCost"
	case HeuristicLibraryCost:
		return "HeuristicLibraryCost"
	default:
		return "unknown"
	}
}

// ByName resolves a configuration-file / flag name back to a Key. ok is
// false for unrecognized names (§7 UnknownParameterKey: reject the
// configuration input; no global state mutated).
func ByName(name string) (Key, bool) {
	for k := Key(0); k < numKeys; k++ {
		if k.Name() == name {
			return k, true
		}
	}
	return 0, false
}
