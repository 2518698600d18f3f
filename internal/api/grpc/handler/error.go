package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/smartbank-server/internal/model"
)

// errorCodes is checked in order; the first match wins.
var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{model.ErrInvalidSignature, codes.Unauthenticated},
	{model.ErrNonceInvalid, codes.Unauthenticated},
	{model.ErrSessionExpired, codes.Unauthenticated},
	{model.ErrSessionInvalid, codes.Unauthenticated},
	{model.ErrUnauthorized, codes.PermissionDenied},
	{model.ErrAlreadyRegistered, codes.AlreadyExists},
	{model.ErrProfileNotFound, codes.NotFound},
	{model.ErrNotFound, codes.NotFound},
	{model.ErrInvalidUsername, codes.InvalidArgument},
	{model.ErrInvalidEmail, codes.InvalidArgument},
	{model.ErrInvalidRole, codes.InvalidArgument},
	{model.ErrInvalidAddress, codes.InvalidArgument},
	{model.ErrInvalidAmount, codes.InvalidArgument},
	{model.ErrBelowMinimumDeposit, codes.InvalidArgument},
	{model.ErrInsufficientBalance, codes.FailedPrecondition},
	{model.ErrArithmeticOverflow, codes.OutOfRange},
}

// handleError converts domain errors to gRPC statuses. Unknown errors are
// reported as Internal without details.
func handleError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return status.Error(ec.code, err.Error())
		}
	}
	return status.Error(codes.Internal, "internal server error")
}
