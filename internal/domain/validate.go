package domain

import (
	"fmt"
	"math"
)

func ValidateModel(m DroneModel) error {
	switch {
	case m.Name == "":
		return fmt.Errorf("%w: model name is required", ErrInvalid)
	case m.MaxSpeed <= 0:
		return fmt.Errorf("%w: max_speed must be positive, got %v", ErrInvalid, m.MaxSpeed)
	case m.MaxVerticalSpeed <= 0:
		return fmt.Errorf("%w: max_vertical_speed must be positive, got %v", ErrInvalid, m.MaxVerticalSpeed)
	case m.MaxYawRate <= 0:
		return fmt.Errorf("%w: max_yaw_rate must be positive, got %v", ErrInvalid, m.MaxYawRate)
	case m.MaxAltitude <= 0:
		return fmt.Errorf("%w: max_altitude must be positive, got %v", ErrInvalid, m.MaxAltitude)
	case m.FuelCapacity <= 0:
		return fmt.Errorf("%w: fuel_capacity must be positive, got %v", ErrInvalid, m.FuelCapacity)
	case m.FuelConsumptionRate < 0:
		return fmt.Errorf("%w: fuel_consumption_rate must not be negative, got %v", ErrInvalid, m.FuelConsumptionRate)
	case m.MaxPayload < 0 || m.Weight < 0:
		return fmt.Errorf("%w: weight and max_payload must not be negative", ErrInvalid)
	}
	return nil
}

func ValidateRole(role string) bool {
	switch role {
	case RoleAdmin, RolePilot, RoleObserver:
		return true
	default:
		return false
	}
}

// NormalizeHeading maps any angle into [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// HeadingDelta is the signed shortest rotation from one heading to another, in [-180, 180].
func HeadingDelta(from, to float64) float64 {
	d := math.Mod(NormalizeHeading(to)-NormalizeHeading(from)+540, 360) - 180
	return d
}
