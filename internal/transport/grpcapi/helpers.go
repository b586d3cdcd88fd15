package grpcapi

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"thetalkingdrone/internal/auth"
	"thetalkingdrone/internal/transport"
)

func getClaims(ctx context.Context) (*auth.Claims, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	return claims, nil
}

func requireRole(ctx context.Context, roles ...string) (*auth.Claims, error) {
	claims, err := getClaims(ctx)
	if err != nil {
		return nil, err
	}
	if !auth.HasRole(claims, roles...) {
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	}
	return claims, nil
}

var grpcCodes = map[string]codes.Code{
	transport.CodeUnauthorized:      codes.Unauthenticated,
	transport.CodeForbidden:         codes.PermissionDenied,
	transport.CodeNotFound:          codes.NotFound,
	transport.CodeConflict:          codes.AlreadyExists,
	transport.CodeInvalid:           codes.InvalidArgument,
	transport.CodeInvalidCommand:    codes.InvalidArgument,
	transport.CodeOutOfBounds:       codes.OutOfRange,
	transport.CodeObstacleCollision: codes.FailedPrecondition,
	transport.CodeNotOperational:    codes.FailedPrecondition,
	transport.CodeInsufficientFuel:  codes.FailedPrecondition,
	transport.CodeManeuverFailed:    codes.Aborted,
	transport.CodeNotInitialized:    codes.Unavailable,
}

// mapServiceError keeps the domain message for known errors and hides everything else.
func mapServiceError(err error) error {
	body := transport.NewErrorBody(err)
	code, ok := grpcCodes[body.Code]
	if !ok {
		return status.Error(codes.Internal, body.Message)
	}
	return status.Error(code, body.Message)
}
