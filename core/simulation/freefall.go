package simulation

import "math"

// Freefall models a falling body, with or without quadratic air drag. With
// drag the speed approaches the terminal velocity v_t = √(2mg/(ρ·C_d·A)).
type Freefall struct{}

func (Freefall) Describe() Descriptor {
	return Descriptor{
		Slug:     "freefall",
		Title:    "Free Fall & Terminal Velocity",
		Category: "mechanics",
		Params: []ParamSpec{
			{Name: "m", Label: "Mass", Unit: "kg", Default: 80, Min: 1, Max: 1000},
			{Name: "rho", Label: "Air density", Unit: "kg/m³", Default: 1.225, Min: 0.1, Max: 15},
			{Name: "cd", Label: "Drag coefficient", Default: 1, Min: 0.1, Max: 2.5},
			{Name: "area", Label: "Cross section", Unit: "m²", Default: 0.7, Min: 0.01, Max: 10},
			{Name: "g", Label: "Gravity", Unit: "m/s²", Default: 9.81, Min: 0.1, Max: 30},
			{Name: "duration", Label: "Duration", Unit: "s", Default: 30, Min: 1, Max: 300},
			{Name: "drag", Label: "Air drag (0=off, 1=on)", Default: 1, Min: 0, Max: 1},
		},
		Challenge: &Challenge{Metric: "terminal_velocity", Tolerance: 0.05, MaxPoints: 10},
	}
}

func (f Freefall) Run(params map[string]float64) (Series, error) {
	desc := f.Describe()
	pp, err := resolveParams(desc, params)
	if err != nil {
		return Series{}, err
	}
	m, rho, cd, area, g := pp["m"], pp["rho"], pp["cd"], pp["area"], pp["g"]
	duration := pp["duration"]
	withDrag := pp["drag"] != 0

	vt := math.Sqrt(2 * m * g / (rho * cd * area))

	n := frameCount(300)
	dt := duration / float64(n-1)

	s := newSeries(desc.Slug, pp, n)
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		var v, y float64
		if withDrag {
			v = vt * math.Tanh(g*t/vt)
			y = vt * vt / g * logCosh(g*t/vt)
		} else {
			v = g * t
			y = 0.5 * g * t * t
		}
		s.Frames = append(s.Frames, Frame{T: t, Values: map[string]float64{"v": v, "y": y}})
	}
	s.Summary["terminal_velocity"] = vt
	s.Summary["final_speed"] = s.Frames[n-1].Values["v"]
	return s, nil
}

// logCosh computes ln(cosh(x)) without overflowing for large x.
func logCosh(x float64) float64 {
	if x > 20 {
		return x - math.Ln2
	}
	return math.Log(math.Cosh(x))
}
