package httpx

import (
	"errors"
	"net/http"

	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

// RespondError maps shared domain errors onto RFC7807 responses. Errors
// outside the shared taxonomy answer 500 without leaking detail.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Write Conflict", err.Error())
	case errors.Is(err, shared.ErrCompanyRequired):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
