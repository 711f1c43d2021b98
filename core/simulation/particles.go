package simulation

import "math"

// goldenAngle spreads directions evenly without randomness, keeping runs
// reproducible.
const goldenAngle = 2.3999632297286535

// particle spawn cap; visual payloads never need more
const maxParticles = 512

// Particle is a short-lived fragment flying away from the origin.
type Particle struct {
	X, Y   float64
	VX, VY float64
	TTL    float64
}

// ParticleSystem spawns, advances and culls particles for visual payloads.
type ParticleSystem struct {
	particles []Particle
	spawned   int
}

// Spawn adds up to n particles fanned out on the golden-angle spiral.
func (ps *ParticleSystem) Spawn(n int, speed, ttl float64) {
	for i := 0; i < n; i++ {
		if len(ps.particles) >= maxParticles {
			return
		}
		angle := goldenAngle * float64(ps.spawned)
		ps.spawned++
		ps.particles = append(ps.particles, Particle{
			VX:  speed * math.Cos(angle),
			VY:  speed * math.Sin(angle),
			TTL: ttl,
		})
	}
}

// Advance moves every particle by dt and culls the expired.
func (ps *ParticleSystem) Advance(dt float64) {
	alive := ps.particles[:0]
	for _, p := range ps.particles {
		p.TTL -= dt
		if p.TTL <= 0 {
			continue
		}
		p.X += p.VX * dt
		p.Y += p.VY * dt
		alive = append(alive, p)
	}
	ps.particles = alive
}

func (ps *ParticleSystem) Alive() int { return len(ps.particles) }
