package sensor

import (
	"context"
	"math/rand/v2"

	"hvac-node/types"
	"hvac-node/x/mathx"
)

// Simulated random-walks plausible indoor readings for running without
// hardware: 18–28 °C and 30–70 %RH.
type Simulated struct {
	rnd  *rand.Rand
	last types.Reading
}

// NewSimulated returns a generator seeded with seed, so runs are repeatable.
func NewSimulated(seed uint64) *Simulated {
	rnd := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Simulated{
		rnd: rnd,
		last: types.Reading{
			Temperature: 18 + rnd.Float64()*10,
			Humidity:    30 + rnd.Float64()*40,
		},
	}
}

func (s *Simulated) Init(ctx context.Context) error { return nil }

func (s *Simulated) Read() types.Reading {
	s.last.Temperature = mathx.Clamp(s.last.Temperature+s.rnd.NormFloat64()*0.2, 18, 28)
	s.last.Humidity = mathx.Clamp(s.last.Humidity+s.rnd.NormFloat64()*0.5, 30, 70)
	return s.last
}
