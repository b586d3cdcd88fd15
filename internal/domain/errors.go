package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalid           = errors.New("invalid")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotInitialized    = errors.New("not initialized")
	ErrNotOperational    = errors.New("drone not operational")
	ErrInsufficientFuel  = errors.New("insufficient fuel")
	ErrInvalidCommand    = errors.New("invalid command")
	ErrOutOfBounds       = errors.New("location out of bounds")
	ErrObstacleCollision = errors.New("obstacle collision")
	ErrManeuverFailed    = errors.New("maneuver failed")
)
