package web

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/log"
	"github.com/kwehner/mzusi/internal/proxi"
	"github.com/kwehner/mzusi/internal/resolve"
)

// Handlers contains HTTP route handlers for the PROXI API.
type Handlers struct {
	svc     *resolve.Service
	logger  *log.Logger
	version string
}

// errorBody is the JSON shape of an API error response.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// HandleSpectra handles GET /proxi/v0.1/spectra — resolve one or more USIs.
//
// Query parameters: usi (repeatable, required), resultType ("full" default,
// "compact" returns metadata without peak arrays). Resolution is fail-fast:
// the first USI that cannot be resolved aborts the request with its typed
// status.
func (h *Handlers) HandleSpectra(w http.ResponseWriter, r *http.Request) {
	usis := r.URL.Query()["usi"]
	if len(usis) == 0 {
		writeError(w, errors.NewInvalidRequest("usi query parameter is required"))
		return
	}

	metadataOnly := false
	switch rt := r.URL.Query().Get("resultType"); rt {
	case "", "full":
	case "compact":
		metadataOnly = true
	default:
		writeError(w, errors.NewInvalidRequest("resultType must be one of: full, compact"))
		return
	}

	records := make([]*proxi.Record, 0, len(usis))
	for _, u := range usis {
		out, err := h.svc.Resolve(r.Context(), resolve.ResolveInput{
			USI:          u,
			MetadataOnly: metadataOnly,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		records = append(records, out.Record)
	}

	writeJSON(w, http.StatusOK, records)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// HandleInvalidate handles POST /cache/invalidate — drop cached run
// locations after files move on disk.
func (h *Handlers) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	h.svc.InvalidateCache()
	h.logger.Info("location cache invalidated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a typed resolution error onto its HTTP status. Untyped
// errors are reported as internal faults without leaking detail.
func writeError(w http.ResponseWriter, err error) {
	var re *errors.ResolveError
	if stderrors.As(err, &re) {
		writeJSON(w, re.Status, errorBody{
			Code:    string(re.Code),
			Message: re.Message,
			Details: re.Details,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Code:    string(errors.ErrInternal),
		Message: "internal error",
	})
}
