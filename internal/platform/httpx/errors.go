package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-ledger/meridian-ledger/internal/ledger/shared"
)

// RespondError maps kernel errors to HTTP responses using RFC7807.
//
// Validation errors map to 400/422, state errors to 409, missing resources
// to 404, and integrity violations to 500 so they are never mistaken for a
// caller mistake.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrTooFewLines),
		errors.Is(err, shared.ErrInvalidAccount),
		errors.Is(err, shared.ErrOverApplication):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrAccountNotFound),
		errors.Is(err, shared.ErrJournalNotFound),
		errors.Is(err, shared.ErrItemNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateCode),
		errors.Is(err, shared.ErrPeriodOverlap),
		errors.Is(err, shared.ErrAccountInUse):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrPeriodLocked),
		errors.Is(err, shared.ErrNoPeriodDefined),
		errors.Is(err, shared.ErrPartitionMissing),
		errors.Is(err, shared.ErrAlreadyVoid),
		errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrIntegrity):
		Problem(w, http.StatusInternalServerError, "Integrity Violation", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
