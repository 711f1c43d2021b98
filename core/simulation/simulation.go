// Package simulation holds the physics behind every canvas animation as a
// closed-form model. Each model is self-contained: it declares its parameters
// and produces a bounded series of frames for the frontend to draw. There is
// deliberately no shared solver; models only share the catalog plumbing, the
// particle helper and challenge scoring.
package simulation

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
)

// MaxFrames bounds the number of frames any model returns. Overridden from
// config at startup.
var MaxFrames = 2000

var (
	// errors
	ErrNotFound = errors.New("simulation not found")

	errUnknownParam    = errors.New("unknown parameter")
	errParamNotFinite  = errors.New("parameter must be a finite number")
	errParamOutOfRange = errors.New("parameter out of range")
)

type (
	// ParamSpec declares one tunable input of a model.
	ParamSpec struct {
		Name    string  `json:"name"`
		Label   string  `json:"label"`
		Unit    string  `json:"unit,omitempty"`
		Default float64 `json:"default"`
		Min     float64 `json:"min"`
		Max     float64 `json:"max"`
	}

	// Descriptor is the catalog entry for a model.
	Descriptor struct {
		Slug      string      `json:"slug"`
		Title     string      `json:"title"`
		Category  string      `json:"category"`
		Params    []ParamSpec `json:"params"`
		Challenge *Challenge  `json:"challenge,omitempty"`
	}

	// Frame is one sample of a run; T is the swept variable (time for
	// dynamics, the swept quantity for parameter sweeps).
	Frame struct {
		T      float64            `json:"t"`
		Values map[string]float64 `json:"values"`
	}

	// Series is the result of a run: the resolved parameters, the sampled
	// frames and the run's derived quantities.
	Series struct {
		Slug    string             `json:"slug"`
		Params  map[string]float64 `json:"params"`
		Frames  []Frame            `json:"frames"`
		Summary map[string]float64 `json:"summary,omitempty"`
	}

	Model interface {
		Describe() Descriptor
		// Run evaluates the model; it is pure and keeps no state between calls.
		Run(params map[string]float64) (Series, error)
	}
)

// Registry is the ordered model catalog.
type Registry struct {
	models []Model
	bySlug map[string]Model
}

func NewRegistry(models ...Model) *Registry {
	reg := &Registry{bySlug: make(map[string]Model, len(models))}
	for _, m := range models {
		reg.Register(m)
	}
	return reg
}

// Register adds a model to the catalog; registering the same slug twice is a
// programming error.
func (reg *Registry) Register(m Model) {
	slug := m.Describe().Slug
	if _, ok := reg.bySlug[slug]; ok {
		panic(fmt.Sprintf("simulation: slug %q registered twice", slug))
	}
	reg.models = append(reg.models, m)
	reg.bySlug[slug] = m
}

func (reg *Registry) List() []Descriptor {
	descs := make([]Descriptor, 0, len(reg.models))
	for _, m := range reg.models {
		descs = append(descs, m.Describe())
	}
	return descs
}

func (reg *Registry) Get(slug string) (Model, error) {
	m, ok := reg.bySlug[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (reg *Registry) Run(slug string, params map[string]float64) (Series, error) {
	m, err := reg.Get(slug)
	if err != nil {
		return Series{}, err
	}
	return m.Run(params)
}

// DefaultRegistry returns the full catalog in display order.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Projectile{},
		Freefall{},
		Ohm{},
		RC{},
		Coulomb{},
		Gauss{},
		Gravity{},
		Fission{},
	)
}

// resolveParams fills in defaults and rejects unknown, non-finite and
// out-of-range values.
func resolveParams(desc Descriptor, params map[string]float64) (map[string]float64, error) {
	known := make(map[string]bool, len(desc.Params))
	for _, spec := range desc.Params {
		known[spec.Name] = true
	}
	unknown := make([]string, 0)
	for name := range params {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		flds := make([]core.FieldError, 0, len(unknown))
		for _, name := range unknown {
			flds = append(flds, core.FieldError{Field: name, Error: errUnknownParam.Error()})
		}
		return nil, core.NewValidationError(errUnknownParam, flds...)
	}

	resolved := make(map[string]float64, len(desc.Params))
	for _, spec := range desc.Params {
		val, ok := params[spec.Name]
		if !ok {
			resolved[spec.Name] = spec.Default
			continue
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, core.NewValidationError(errParamNotFinite,
				core.FieldError{Field: spec.Name, Error: errParamNotFinite.Error()})
		}
		if val < spec.Min || val > spec.Max {
			return nil, core.NewValidationError(errParamOutOfRange,
				core.FieldError{Field: spec.Name, Error: fmt.Sprintf("must be between %g and %g", spec.Min, spec.Max)})
		}
		resolved[spec.Name] = val
	}
	return resolved, nil
}

// frameCount caps a model's sample count to MaxFrames.
func frameCount(n int) int {
	if n > MaxFrames {
		return MaxFrames
	}
	if n < 2 {
		return 2
	}
	return n
}

func newSeries(slug string, params map[string]float64, size int) Series {
	return Series{
		Slug:    slug,
		Params:  params,
		Frames:  make([]Frame, 0, size),
		Summary: make(map[string]float64),
	}
}
