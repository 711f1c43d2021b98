package simulation

import "math"

// energy released per fission event, ≈200 MeV in joules
const fissionEnergyJ = 3.2e-11

// Fission models a neutron chain reaction generation by generation:
// N_k = N₀·k_eff^k. Sub-critical chains (k_eff < 1) die out, super-critical
// ones grow geometrically. A particle burst per generation feeds the visual
// payload.
type Fission struct{}

func (Fission) Describe() Descriptor {
	return Descriptor{
		Slug:     "fission",
		Title:    "Nuclear Fission Chain",
		Category: "nuclear",
		Params: []ParamSpec{
			{Name: "n0", Label: "Initial neutrons", Default: 1, Min: 1, Max: 1e6},
			{Name: "keff", Label: "Multiplication factor", Default: 1.5, Min: 0.1, Max: 3},
			{Name: "generations", Label: "Generations", Default: 20, Min: 1, Max: 60},
		},
		Challenge: &Challenge{Metric: "total_energy_j", Tolerance: 0.1, MaxPoints: 10},
	}
}

func (f Fission) Run(params map[string]float64) (Series, error) {
	desc := f.Describe()
	pp, err := resolveParams(desc, params)
	if err != nil {
		return Series{}, err
	}
	n0, keff := pp["n0"], pp["keff"]
	generations := int(math.Round(pp["generations"]))
	if generations+1 > MaxFrames {
		generations = MaxFrames - 1
	}

	var ps ParticleSystem
	var totalFissions float64

	s := newSeries(desc.Slug, pp, generations+1)
	for k := 0; k <= generations; k++ {
		neutrons := n0 * math.Pow(keff, float64(k))
		totalFissions += neutrons

		ps.Spawn(int(math.Min(neutrons, 64)), 30 /* speed */, 3 /* ttl */)
		ps.Advance(1)

		s.Frames = append(s.Frames, Frame{T: float64(k), Values: map[string]float64{
			"neutrons":  neutrons,
			"fissions":  totalFissions,
			"energy_j":  totalFissions * fissionEnergyJ,
			"particles": float64(ps.Alive()),
		}})
	}
	s.Summary["final_neutrons"] = n0 * math.Pow(keff, float64(generations))
	s.Summary["total_fissions"] = totalFissions
	s.Summary["total_energy_j"] = totalFissions * fissionEnergyJ
	return s, nil
}
