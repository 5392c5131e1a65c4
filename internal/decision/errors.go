package decision

import (
	"errors"

	"sherlock/internal/model"
	dErrors "sherlock/pkg/domain-errors"
)

var (
	ErrInvalidTransaction   = errors.New("invalid transaction")
	ErrStateUnavailable     = errors.New("state store unavailable")
	ErrModelUnavailable     = model.ErrUnavailable
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

func invalid(msg string) error {
	return dErrors.Wrap(ErrInvalidTransaction, dErrors.CodeValidation, msg)
}
