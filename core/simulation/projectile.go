package simulation

import "math"

// Projectile models drag-free projectile motion fired from the origin.
type Projectile struct{}

func (Projectile) Describe() Descriptor {
	return Descriptor{
		Slug:     "projectile",
		Title:    "Projectile Motion",
		Category: "mechanics",
		Params: []ParamSpec{
			{Name: "v0", Label: "Launch speed", Unit: "m/s", Default: 20, Min: 1, Max: 200},
			{Name: "angle", Label: "Launch angle", Unit: "deg", Default: 45, Min: 1, Max: 89},
			{Name: "g", Label: "Gravity", Unit: "m/s²", Default: 9.81, Min: 0.1, Max: 30},
		},
		Challenge: &Challenge{Metric: "range", Tolerance: 0.05, MaxPoints: 10},
	}
}

func (p Projectile) Run(params map[string]float64) (Series, error) {
	desc := p.Describe()
	pp, err := resolveParams(desc, params)
	if err != nil {
		return Series{}, err
	}
	v0, g := pp["v0"], pp["g"]
	angle := pp["angle"] * math.Pi / 180

	vx := v0 * math.Cos(angle)
	vy := v0 * math.Sin(angle)
	flight := 2 * vy / g

	n := frameCount(240)
	dt := flight / float64(n-1)

	s := newSeries(desc.Slug, pp, n)
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		s.Frames = append(s.Frames, Frame{T: t, Values: map[string]float64{
			"x":  vx * t,
			"y":  vy*t - 0.5*g*t*t,
			"vx": vx,
			"vy": vy - g*t,
		}})
	}
	s.Summary["range"] = vx * flight
	s.Summary["apex"] = vy * vy / (2 * g)
	s.Summary["flight_time"] = flight
	return s, nil
}
