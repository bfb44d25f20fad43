package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/perchhq/perch/internal/domain/project"
	"github.com/perchhq/perch/internal/domain/publish"
	"github.com/perchhq/perch/internal/domain/sharetoken"
	"github.com/perchhq/perch/internal/domain/visibility"
)

// Stable transport-level error codes. Domain packages carry their own.
const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeForbidden       = "FORBIDDEN"
	codeNotFound        = "NOT_FOUND"
	codeInvalidName     = "INVALID_NAME"
	codeNameTaken       = "NAME_TAKEN"
	codeCeiling         = "VISIBILITY_EXCEEDS_CEILING"
	codeInvalidDuration = "INVALID_DURATION"
	codeTokenLimit      = "SHARE_TOKEN_LIMIT"
	codeSharingDisabled = "SHARING_DISABLED"
	codeInvalidRequest  = "INVALID_REQUEST"
	codeInternal        = "INTERNAL"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// writeDomainError maps domain errors to status + stable code. Unrecognized
// errors collapse to an opaque 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var formatErr *visibility.FormatError
	var capErr *publish.CapacityError
	var archiveErr *publish.ArchiveError

	switch {
	case errors.Is(err, project.ErrNotFound), errors.Is(err, sharetoken.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, project.ErrInvalidName):
		writeError(w, http.StatusBadRequest, codeInvalidName, err.Error())
	case errors.Is(err, project.ErrNameTaken):
		writeError(w, http.StatusConflict, codeNameTaken, err.Error())
	case errors.Is(err, project.ErrVisibilityExceedsCeiling):
		writeError(w, http.StatusBadRequest, codeCeiling, err.Error())
	case errors.Is(err, sharetoken.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, codeInvalidDuration, err.Error())
	case errors.Is(err, sharetoken.ErrLimitReached):
		writeError(w, http.StatusConflict, codeTokenLimit, err.Error())
	case errors.As(err, &formatErr):
		writeError(w, http.StatusBadRequest, formatErr.Code, formatErr.Message)
	case errors.As(err, &capErr):
		writeError(w, http.StatusRequestEntityTooLarge, capErr.Code, capErr.Message)
	case errors.As(err, &archiveErr):
		writeError(w, http.StatusBadRequest, archiveErr.Code, archiveErr.Message)
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
