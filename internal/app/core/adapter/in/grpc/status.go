package grpc

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

var codeByKind = map[domain.ErrorKind]codes.Code{
	domain.KindInvalidAmount:       codes.InvalidArgument,
	domain.KindInvalidRequest:      codes.InvalidArgument,
	domain.KindAccountNotFound:     codes.NotFound,
	domain.KindEntryNotFound:       codes.NotFound,
	domain.KindAccountExists:       codes.AlreadyExists,
	domain.KindDuplicateReference:  codes.AlreadyExists,
	domain.KindInsufficientFunds:   codes.FailedPrecondition,
	domain.KindConcurrencyConflict: codes.Aborted,
	domain.KindStorageFailure:      codes.Unavailable,
	domain.KindCanceled:            codes.Canceled,
}

// toStatus maps a ledger error onto a gRPC status.
// The error kind travels in the message prefix so clients can tell
// InvalidAmount from InvalidRequest without parsing details.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	kind := domain.KindOf(err)
	code, ok := codeByKind[kind]
	if !ok {
		code = codes.Internal
	}
	return status.Error(code, string(kind)+": "+err.Error())
}

// CodeOf returns the gRPC code toStatus would use for err.
func CodeOf(err error) codes.Code {
	return status.Code(toStatus(err))
}
