package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/switchyard-lab/switchyard/pkg/util"
)

// detailBody is the error envelope every failing endpoint returns.
type detailBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		util.Errorf("encoding response: %v", err)
	}
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, detailBody{Detail: detail})
}

// writeError maps the error taxonomy onto status codes. Handlers that need
// an endpoint-specific detail string write it themselves instead.
func writeError(w http.ResponseWriter, err error) {
	var ve *util.ValidationError
	if errors.As(err, &ve) {
		writeDetail(w, http.StatusBadRequest, strings.Join(ve.Errors, "; "))
		return
	}
	switch {
	case errors.Is(err, util.ErrValidation):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, util.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrStateConflict):
		writeDetail(w, http.StatusConflict, err.Error())
	default:
		util.Errorf("request failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}
