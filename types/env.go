package types

import "math"

// ------------------------
// Temperature & humidity
// ------------------------

// Reading is one sensor acquisition. Either field may be NaN when the
// acquisition failed; callers check Valid before using it.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
}

// InvalidReading is what sensor backends return on any driver error.
func InvalidReading() Reading {
	return Reading{Temperature: math.NaN(), Humidity: math.NaN()}
}

func (r Reading) Valid() bool {
	return !math.IsNaN(r.Temperature) && !math.IsNaN(r.Humidity)
}
