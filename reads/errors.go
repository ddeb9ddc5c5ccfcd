package reads

import "github.com/pkg/errors"

// Error kinds. Callers classify with the Is* predicates; messages carry the
// detail.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrDataLoss           = errors.New("data loss")
	ErrInternal           = errors.New("internal error")
)

func invalidArgumentf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrInvalidArgument, format, args...)
}

func notFoundf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrNotFound, format, args...)
}

func failedPreconditionf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrFailedPrecondition, format, args...)
}

func dataLossf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrDataLoss, format, args...)
}

func internalf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrInternal, format, args...)
}

// IsInvalidArgument reports whether err is an invalid-argument failure.
func IsInvalidArgument(err error) bool { return errors.Cause(err) == ErrInvalidArgument }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Cause(err) == ErrNotFound }

// IsFailedPrecondition reports whether err is a failed-precondition failure.
func IsFailedPrecondition(err error) bool { return errors.Cause(err) == ErrFailedPrecondition }

// IsDataLoss reports whether err is a data-loss failure.
func IsDataLoss(err error) bool { return errors.Cause(err) == ErrDataLoss }

// IsInternal reports whether err is an internal failure.
func IsInternal(err error) bool { return errors.Cause(err) == ErrInternal }
