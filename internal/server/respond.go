package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/pkg/inverr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeOpError translates an operation error into a response. Errors of
// the domain taxonomy keep their message; anything else is an opaque 500.
func writeOpError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case inverr.IsTenantNotFound(err), inverr.IsItemDoesNotExist(err):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case inverr.IsItemAlreadyExist(err):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case inverr.IsValidation(err):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
	case inverr.IsCoordinates(err), inverr.IsProcessing(err):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("unhandled operation error", zap.Error(err))
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}
