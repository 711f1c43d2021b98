package simulation

import (
	"math"

	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
)

var ErrNoChallenge = errors.New("simulation has no challenge")

type (
	// Challenge declares the guessable quantity of a model: a summary metric,
	// a relative tolerance band around it, and the points a first-try hit
	// is worth.
	Challenge struct {
		Metric    string  `json:"metric"`
		Tolerance float64 `json:"tolerance"`
		MaxPoints float64 `json:"max_points"`
	}

	// Guess is one attempt at a challenge.
	Guess struct {
		Value   float64 `json:"value"`
		Attempt int     `json:"attempt"`
	}

	// Result reports how a guess fared.
	Result struct {
		Metric  string  `json:"metric"`
		Target  float64 `json:"target"`
		Guess   float64 `json:"guess"`
		Attempt int     `json:"attempt"`
		Hit     bool    `json:"hit"`
		Points  float64 `json:"points"`
	}
)

// Hit reports whether value lands within the tolerance band around target.
// The band is relative to the target's magnitude, absolute when target is 0.
func (c Challenge) Hit(target, value float64) bool {
	band := c.Tolerance * math.Abs(target)
	if band == 0 {
		band = c.Tolerance
	}
	return math.Abs(value-target) <= band
}

// Score awards points for a hit. The pot shrinks a quarter per failed
// earlier attempt, down to zero.
func (c Challenge) Score(target float64, g Guess) Result {
	attempt := g.Attempt
	if attempt < 1 {
		attempt = 1
	}
	res := Result{Metric: c.Metric, Target: target, Guess: g.Value, Attempt: attempt}
	if !c.Hit(target, g.Value) {
		return res
	}
	res.Hit = true
	res.Points = math.Max(0, c.MaxPoints*(1-0.25*float64(attempt-1)))
	return res
}

// EvaluateChallenge scores a guess against the run's designated metric.
func EvaluateChallenge(desc Descriptor, s Series, g Guess) (Result, error) {
	if desc.Challenge == nil {
		return Result{}, core.NewValidationError(ErrNoChallenge)
	}
	target, ok := s.Summary[desc.Challenge.Metric]
	if !ok {
		return Result{}, errors.Errorf("summary metric %q missing from run", desc.Challenge.Metric)
	}
	return desc.Challenge.Score(target, g), nil
}
