package flight

import "thetalkingdrone/internal/domain"

// Fuel multipliers applied to the base consumption rate.
const (
	TakeOffMultiplier = 1.2
	LandingMultiplier = 1.1
	FlyingMultiplier  = 1.0
)

func stateMultiplier(s domain.DroneState) float64 {
	switch s {
	case domain.StateTakingOff:
		return TakeOffMultiplier
	case domain.StateLanding:
		return LandingMultiplier
	default:
		return FlyingMultiplier
	}
}

// fuelFor returns the fuel burned over seconds of flight.
func fuelFor(seconds, ratePerMinute, multiplier float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return seconds / 60 * ratePerMinute * multiplier
}

func burn(t *domain.Telemetry, amount float64) {
	t.FuelLevel -= amount
	if t.FuelLevel < 0 {
		t.FuelLevel = 0
	}
}
