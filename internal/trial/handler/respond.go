package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	domainerrors "trialstore/pkg/domain-errors"
)

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a 500 with a generic message so internals never
// leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var de *domainerrors.Error
	if !errors.As(err, &de) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "internal error", Code: string(domainerrors.CodeInternal),
		})
		return
	}

	status := http.StatusInternalServerError
	switch de.Code {
	case domainerrors.CodeInvalidInput, domainerrors.CodeMapping:
		status = http.StatusBadRequest
	case domainerrors.CodeNotFound:
		status = http.StatusNotFound
	case domainerrors.CodePersistence:
		switch de.Reason {
		case domainerrors.ReasonConflict:
			status = http.StatusConflict
		case domainerrors.ReasonConnectivity:
			status = http.StatusServiceUnavailable
		}
	case domainerrors.CodeQuery:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, errorResponse{
		Error:  de.Message,
		Code:   string(de.Code),
		Reason: string(de.Reason),
	})
}
