package httpapi

import (
	"encoding/json"
	"net/http"

	"thetalkingdrone/internal/transport"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(code string) int {
	switch code {
	case transport.CodeUnauthorized:
		return http.StatusUnauthorized
	case transport.CodeForbidden:
		return http.StatusForbidden
	case transport.CodeNotFound:
		return http.StatusNotFound
	case transport.CodeConflict, transport.CodeNotOperational, transport.CodeInsufficientFuel, transport.CodeManeuverFailed:
		return http.StatusConflict
	case transport.CodeInvalid, transport.CodeInvalidCommand, transport.CodeOutOfBounds, transport.CodeObstacleCollision:
		return http.StatusUnprocessableEntity
	case transport.CodeNotInitialized:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := transport.NewErrorBody(err)
	respondJSON(w, statusFor(body.Code), body)
}
