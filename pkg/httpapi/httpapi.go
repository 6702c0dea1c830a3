// Package httpapi standardizes JSON responses for the API surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agencyhq/warroom/pkg/serrors"
)

type ErrorEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string) error {
	return WriteJSON(w, status, &ErrorEnvelope{Code: code, Message: message})
}

// WriteServiceError maps a *serrors.ServiceError onto the response; anything
// else becomes a 500 with a generic code.
func WriteServiceError(w http.ResponseWriter, err error) error {
	var svcErr *serrors.ServiceError
	if errors.As(err, &svcErr) {
		return WriteError(w, svcErr.Status, svcErr.Code, svcErr.Message)
	}
	return WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
}
