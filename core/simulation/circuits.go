package simulation

import "math"

// Ohm sweeps the voltage across a fixed resistor: I = V/R, P = V·I.
type Ohm struct{}

func (Ohm) Describe() Descriptor {
	return Descriptor{
		Slug:     "ohm",
		Title:    "Ohm's Law",
		Category: "electricity",
		Params: []ParamSpec{
			{Name: "r", Label: "Resistance", Unit: "Ω", Default: 100, Min: 0.1, Max: 1e6},
			{Name: "vmax", Label: "Peak voltage", Unit: "V", Default: 12, Min: 0.1, Max: 1000},
		},
		Challenge: &Challenge{Metric: "max_power", Tolerance: 0.05, MaxPoints: 10},
	}
}

func (o Ohm) Run(params map[string]float64) (Series, error) {
	desc := o.Describe()
	pp, err := resolveParams(desc, params)
	if err != nil {
		return Series{}, err
	}
	r, vmax := pp["r"], pp["vmax"]

	n := frameCount(120)
	dv := vmax / float64(n-1)

	s := newSeries(desc.Slug, pp, n)
	for i := 0; i < n; i++ {
		v := float64(i) * dv
		current := v / r
		s.Frames = append(s.Frames, Frame{T: v, Values: map[string]float64{
			"i": current,
			"p": v * current,
		}})
	}
	s.Summary["max_current"] = vmax / r
	s.Summary["max_power"] = vmax * vmax / r
	return s, nil
}

// RC models the charge and discharge curves of an RC circuit over five time
// constants: V(t) = V₀(1−e^(−t/RC)) charging, V(t) = V₀e^(−t/RC) discharging.
type RC struct{}

func (RC) Describe() Descriptor {
	return Descriptor{
		Slug:     "rc",
		Title:    "RC Circuit",
		Category: "electricity",
		Params: []ParamSpec{
			{Name: "v0", Label: "Supply voltage", Unit: "V", Default: 9, Min: 0.1, Max: 1000},
			{Name: "r", Label: "Resistance", Unit: "Ω", Default: 1000, Min: 1, Max: 1e7},
			{Name: "c", Label: "Capacitance", Unit: "F", Default: 1e-3, Min: 1e-9, Max: 1},
		},
		Challenge: &Challenge{Metric: "tau", Tolerance: 0.05, MaxPoints: 10},
	}
}

func (rc RC) Run(params map[string]float64) (Series, error) {
	desc := rc.Describe()
	pp, err := resolveParams(desc, params)
	if err != nil {
		return Series{}, err
	}
	v0, r, c := pp["v0"], pp["r"], pp["c"]

	tau := r * c
	duration := 5 * tau

	n := frameCount(300)
	dt := duration / float64(n-1)

	s := newSeries(desc.Slug, pp, n)
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		decay := math.Exp(-t / tau)
		s.Frames = append(s.Frames, Frame{T: t, Values: map[string]float64{
			"v_charge":    v0 * (1 - decay),
			"v_discharge": v0 * decay,
			"i":           v0 / r * decay,
		}})
	}
	s.Summary["tau"] = tau
	return s, nil
}
