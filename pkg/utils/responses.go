package utils

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// ResponseJSON writes body with code. Status mirrors whether code is 2xx.
func ResponseJSON(w http.ResponseWriter, code int, message string, data, errors any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(Response{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
		Errors:  errors,
	})
}

func ResponseSuccess(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusOK, message, data, nil)
}

func ResponseCreated(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusCreated, message, data, nil)
}

// ResponseBadRequest carries per-field details in errors when there are any.
func ResponseBadRequest(w http.ResponseWriter, message string, errors any) {
	ResponseJSON(w, http.StatusBadRequest, message, nil, errors)
}

func ResponseUnauthorized(w http.ResponseWriter, message string) {
	ResponseJSON(w, http.StatusUnauthorized, message, nil, nil)
}

func ResponseForbidden(w http.ResponseWriter, message string) {
	ResponseJSON(w, http.StatusForbidden, message, nil, nil)
}

func ResponseTooLarge(w http.ResponseWriter, message string) {
	ResponseJSON(w, http.StatusRequestEntityTooLarge, message, nil, nil)
}

func ResponseInternalError(w http.ResponseWriter, message string) {
	ResponseJSON(w, http.StatusInternalServerError, message, nil, nil)
}
