package engine

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/hybridann/hybridann/distance"
)

// IndexSection is the only config section the parameter registry
// recognizes, matching the "[Index]" section in the INI config format.
const IndexSection = "Index"

// Parameters holds every tunable the engine's parameter registry exposes.
// Struct tags drive the reflection-based registry built once in
// paramTable, mirroring the teacher's macro-generated
// ParameterDefinitionList with Go reflection standing in for C preprocessor
// macros.
type Parameters struct {
	NumberOfThreads int    `param:"NumberOfThreads"`
	DistCalcMethod  string `param:"DistCalcMethod"`

	MaxCheck                                          int `param:"MaxCheck"`
	ThresholdOfNumberOfContinuousNoBetterPropagation int `param:"ThresholdOfNumberOfContinuousNoBetterPropagation"`
	NumberOfInitialDynamicPivots                      int `param:"NumberOfInitialDynamicPivots"`
	NumberOfOtherDynamicPivots                        int `param:"NumberOfOtherDynamicPivots"`

	NeighborhoodSize       int `param:"NeighborhoodSize"`
	CEF                    int `param:"CEF"`
	AddCEF                 int `param:"AddCEF"`
	MaxCheckForRefineGraph int `param:"MaxCheckForRefineGraph"`

	NumberOfTrees           int `param:"NumberOfTrees"`
	TopDimensionsInTreeNode int `param:"TopDimensionsInTreeNode"`
	SamplesPerNodeInTree    int `param:"SamplesPerNodeInTree"`

	HashTableExponent int `param:"HashTableExponent"`

	DataBlockSize int `param:"DataBlockSize"`
	DataCapacity  int `param:"DataCapacity"`

	MetaRecordSize int `param:"MetaRecordSize"`

	AddCountForRebuildTrees int `param:"AddCountForRebuildTrees"`
}

// DefaultParameters returns a Parameters value with the defaults this
// engine was tuned against; callers override via config.Load or
// SetParameter.
func DefaultParameters() Parameters {
	return Parameters{
		NumberOfThreads: 4,
		DistCalcMethod:  "L2",

		MaxCheck: 8192,
		ThresholdOfNumberOfContinuousNoBetterPropagation: 3,
		NumberOfInitialDynamicPivots:                      10,
		NumberOfOtherDynamicPivots:                         4,

		NeighborhoodSize:       32,
		CEF:                    60,
		AddCEF:                 500,
		MaxCheckForRefineGraph: 10000,

		NumberOfTrees:           4,
		TopDimensionsInTreeNode: 5,
		SamplesPerNodeInTree:    100,

		HashTableExponent: 12,

		DataBlockSize: 1024,
		DataCapacity:  1 << 20,

		MetaRecordSize: 0,

		AddCountForRebuildTrees: 1000,
	}
}

// Set parses value into the named field of p directly, without an
// Engine, for use by config.Load before an engine exists. It does not
// re-resolve a distance kernel; DistCalcMethod is validated again when New
// builds the engine.
func (p *Parameters) Set(name, value string) error {
	for _, entry := range paramTable(p, nil) {
		if entry.name == name {
			return entry.set(value)
		}
	}
	return fmt.Errorf("%w: unknown parameter %q", ErrFail, name)
}

// Get formats the current value of the named field of p.
func (p *Parameters) Get(name string) (string, error) {
	for _, entry := range paramTable(p, nil) {
		if entry.name == name {
			return entry.get(), nil
		}
	}
	return "", fmt.Errorf("%w: unknown parameter %q", ErrFail, name)
}

// Names returns every registered parameter name, in struct declaration
// order, for config.Save to iterate deterministically.
func (p *Parameters) Names() []string {
	entries := paramTable(p, nil)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// paramEntry is one row of the registry: a name, a getter, and a setter,
// matching the teacher's {Name, Get func() string, Set func(string) error}
// shape.
type paramEntry struct {
	name string
	get  func() string
	set  func(string) error
}

// paramTable builds the registry once over p's fields via reflection.
// postSet, if non-nil, runs after every successful Set call so the engine
// can re-resolve the distance kernel when DistCalcMethod changes.
func paramTable(p *Parameters, postSet func(name string) error) []paramEntry {
	v := reflect.ValueOf(p).Elem()
	t := v.Type()

	entries := make([]paramEntry, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("param")
		if name == "" {
			continue
		}
		fv := v.Field(i)
		entries = append(entries, paramEntry{
			name: name,
			get:  fieldGetter(fv),
			set:  fieldSetter(fv, name, postSet),
		})
	}
	return entries
}

func fieldGetter(fv reflect.Value) func() string {
	return func() string {
		switch fv.Kind() {
		case reflect.String:
			return fv.String()
		case reflect.Int, reflect.Int32, reflect.Int64:
			return strconv.FormatInt(fv.Int(), 10)
		default:
			return fmt.Sprintf("%v", fv.Interface())
		}
	}
}

func fieldSetter(fv reflect.Value, name string, postSet func(string) error) func(string) error {
	return func(value string) error {
		switch fv.Kind() {
		case reflect.String:
			fv.SetString(value)
		case reflect.Int, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %s=%q: %w", ErrFailedParseValue, name, value, err)
			}
			fv.SetInt(n)
		default:
			return fmt.Errorf("%w: unsupported parameter type for %s", ErrFailedParseValue, name)
		}
		if postSet != nil {
			return postSet(name)
		}
		return nil
	}
}

// SetParameter parses value into the named parameter's declared type and
// assigns it. Setting DistCalcMethod also re-resolves the engine's
// distance kernel and baseSquare.
func (e *Engine[T]) SetParameter(name, value, section string) error {
	if section != "" && section != IndexSection {
		return fmt.Errorf("%w: unknown section %q", ErrFail, section)
	}
	for _, entry := range e.params {
		if entry.name == name {
			return entry.set(value)
		}
	}
	return fmt.Errorf("%w: unknown parameter %q", ErrFail, name)
}

// GetParameter formats the current value of the named parameter.
func (e *Engine[T]) GetParameter(name, section string) (string, error) {
	if section != "" && section != IndexSection {
		return "", fmt.Errorf("%w: unknown section %q", ErrFail, section)
	}
	for _, entry := range e.params {
		if entry.name == name {
			return entry.get(), nil
		}
	}
	return "", fmt.Errorf("%w: unknown parameter %q", ErrFail, name)
}

// ParameterNames returns every registered parameter name, in struct
// declaration order.
func (e *Engine[T]) ParameterNames() []string {
	names := make([]string, len(e.params))
	for i, entry := range e.params {
		names[i] = entry.name
	}
	return names
}

// resolveDistance re-derives e.kernel and e.baseSquare from
// e.Parameters.DistCalcMethod: baseSquare becomes GetBase<T>()^2 for
// cosine, else 1.
func (e *Engine[T]) resolveDistance() error {
	metric, err := distance.ParseMetric(e.Parameters.DistCalcMethod)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedParseValue, err)
	}
	kernel, err := distance.KernelFor[T](metric)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFail, err)
	}
	e.metric = metric
	e.kernel = kernel
	if metric == distance.MetricCosine {
		base := distance.Base[T]()
		e.baseSquare = base * base
	} else {
		e.baseSquare = 1
	}
	return nil
}
