package simulation

import (
	"fmt"
	"math"
)

// Gravity integrates a small N-body system: a heavy central mass with
// satellites started on circular orbits. Pairwise inverse-square attraction
// with Plummer softening, stepped with semi-implicit Euler. Units are
// normalized (G = 1).
type Gravity struct{}

func (Gravity) Describe() Descriptor {
	return Descriptor{
		Slug:     "gravity",
		Title:    "N-Body Gravity",
		Category: "gravitation",
		Params: []ParamSpec{
			{Name: "bodies", Label: "Bodies", Default: 3, Min: 2, Max: 6},
			{Name: "mass", Label: "Central mass", Default: 1000, Min: 1, Max: 1e6},
			{Name: "duration", Label: "Duration", Unit: "s", Default: 20, Min: 1, Max: 120},
			{Name: "softening", Label: "Softening length", Default: 2, Min: 0, Max: 50},
		},
	}
}

func (g Gravity) Run(params map[string]float64) (Series, error) {
	desc := g.Describe()
	pp, err := resolveParams(desc, params)
	if err != nil {
		return Series{}, err
	}
	nBodies := int(math.Round(pp["bodies"]))
	central := pp["mass"]
	duration := pp["duration"]
	soft2 := pp["softening"] * pp["softening"]

	masses := make([]float64, nBodies)
	px := make([]float64, nBodies)
	py := make([]float64, nBodies)
	vx := make([]float64, nBodies)
	vy := make([]float64, nBodies)

	masses[0] = central
	for i := 1; i < nBodies; i++ {
		r := 40 + 30*float64(i-1)
		phase := goldenAngle * float64(i)
		v := math.Sqrt(central / r)
		masses[i] = central / 200
		px[i] = r * math.Cos(phase)
		py[i] = r * math.Sin(phase)
		vx[i] = -v * math.Sin(phase)
		vy[i] = v * math.Cos(phase)
	}

	n := frameCount(400)
	dt := duration / float64(n-1)

	s := newSeries(desc.Slug, pp, n)
	for frame := 0; frame < n; frame++ {
		values := make(map[string]float64, 2*nBodies+3)
		for i := 0; i < nBodies; i++ {
			values[fmt.Sprintf("x%d", i)] = px[i]
			values[fmt.Sprintf("y%d", i)] = py[i]
		}
		ke, pe := energies(masses, px, py, vx, vy, soft2)
		values["ke"] = ke
		values["pe"] = pe
		values["energy"] = ke + pe
		s.Frames = append(s.Frames, Frame{T: float64(frame) * dt, Values: values})
		if frame == n-1 {
			break
		}

		// kick then drift
		ax, ay := accelerations(masses, px, py, soft2)
		for i := 0; i < nBodies; i++ {
			vx[i] += ax[i] * dt
			vy[i] += ay[i] * dt
			px[i] += vx[i] * dt
			py[i] += vy[i] * dt
		}
	}

	e0 := s.Frames[0].Values["energy"]
	eEnd := s.Frames[len(s.Frames)-1].Values["energy"]
	var drift float64
	if e0 != 0 {
		drift = math.Abs((eEnd - e0) / e0)
	}
	s.Summary["energy_drift"] = drift
	return s, nil
}

func accelerations(m, px, py []float64, soft2 float64) (ax, ay []float64) {
	n := len(m)
	ax = make([]float64, n)
	ay = make([]float64, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := px[j] - px[i]
			dy := py[j] - py[i]
			r2 := dx*dx + dy*dy + soft2
			inv := 1 / (r2 * math.Sqrt(r2))
			ax[i] += m[j] * dx * inv
			ay[i] += m[j] * dy * inv
			ax[j] -= m[i] * dx * inv
			ay[j] -= m[i] * dy * inv
		}
	}
	return ax, ay
}

func energies(m, px, py, vx, vy []float64, soft2 float64) (ke, pe float64) {
	for i := range m {
		ke += 0.5 * m[i] * (vx[i]*vx[i] + vy[i]*vy[i])
		for j := i + 1; j < len(m); j++ {
			dx := px[j] - px[i]
			dy := py[j] - py[i]
			pe -= m[i] * m[j] / math.Sqrt(dx*dx+dy*dy+soft2)
		}
	}
	return ke, pe
}
