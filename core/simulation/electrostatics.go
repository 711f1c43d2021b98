package simulation

import "math"

// Coulomb's constant, N·m²/C².
const coulombK = 8.9875517923e9

// Vacuum permittivity ε₀, C²/(N·m²).
const epsilon0 = 8.8541878128e-12

// Coulomb sweeps the separation of two point charges: F = k·q₁q₂/r²,
// U = k·q₁q₂/r. Positive force is repulsive.
type Coulomb struct{}

func (Coulomb) Describe() Descriptor {
	return Descriptor{
		Slug:     "coulomb",
		Title:    "Coulomb's Law",
		Category: "electrostatics",
		Params: []ParamSpec{
			{Name: "q1", Label: "Charge 1", Unit: "C", Default: 1e-6, Min: -1e-3, Max: 1e-3},
			{Name: "q2", Label: "Charge 2", Unit: "C", Default: 1e-6, Min: -1e-3, Max: 1e-3},
			{Name: "rmax", Label: "Max separation", Unit: "m", Default: 1, Min: 0.01, Max: 100},
		},
	}
}

func (c Coulomb) Run(params map[string]float64) (Series, error) {
	desc := c.Describe()
	pp, err := resolveParams(desc, params)
	if err != nil {
		return Series{}, err
	}
	q1, q2, rmax := pp["q1"], pp["q2"], pp["rmax"]

	n := frameCount(200)
	rmin := rmax / 100
	dr := (rmax - rmin) / float64(n-1)

	s := newSeries(desc.Slug, pp, n)
	for i := 0; i < n; i++ {
		r := rmin + float64(i)*dr
		s.Frames = append(s.Frames, Frame{T: r, Values: map[string]float64{
			"f": coulombK * q1 * q2 / (r * r),
			"u": coulombK * q1 * q2 / r,
		}})
	}
	s.Summary["f_at_rmin"] = coulombK * q1 * q2 / (rmin * rmin)
	return s, nil
}

// Gauss sweeps a spherical Gaussian surface outward across a central charge
// and a charged shell: Φ = Q_enc/ε₀.
type Gauss struct{}

func (Gauss) Describe() Descriptor {
	return Descriptor{
		Slug:     "gauss",
		Title:    "Gauss's Law",
		Category: "electrostatics",
		Params: []ParamSpec{
			{Name: "q_center", Label: "Central charge", Unit: "C", Default: 1e-9, Min: -1e-6, Max: 1e-6},
			{Name: "q_shell", Label: "Shell charge", Unit: "C", Default: 2e-9, Min: -1e-6, Max: 1e-6},
			{Name: "r_shell", Label: "Shell radius", Unit: "m", Default: 0.5, Min: 0.01, Max: 10},
			{Name: "rmax", Label: "Max radius", Unit: "m", Default: 1, Min: 0.02, Max: 20},
		},
	}
}

func (g Gauss) Run(params map[string]float64) (Series, error) {
	desc := g.Describe()
	pp, err := resolveParams(desc, params)
	if err != nil {
		return Series{}, err
	}
	qCenter, qShell, rShell, rmax := pp["q_center"], pp["q_shell"], pp["r_shell"], pp["rmax"]

	n := frameCount(200)
	rmin := rmax / 100
	dr := (rmax - rmin) / float64(n-1)

	s := newSeries(desc.Slug, pp, n)
	for i := 0; i < n; i++ {
		r := rmin + float64(i)*dr
		qEnc := qCenter
		if r >= rShell {
			qEnc += qShell
		}
		flux := qEnc / epsilon0
		s.Frames = append(s.Frames, Frame{T: r, Values: map[string]float64{
			"q_enc": qEnc,
			"flux":  flux,
			"e":     flux / (4 * math.Pi * r * r),
		}})
	}
	s.Summary["flux_outside"] = (qCenter + qShell) / epsilon0
	return s, nil
}
