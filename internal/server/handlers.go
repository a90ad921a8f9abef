package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/filter"
	"github.com/rzpsarthak13/string-catalog/pkg/stringcatalog"
)

const maxBodyBytes = 1 << 20

type createRequest struct {
	Value interface{} `json:"value"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, core.Validation("Invalid JSON body"))
		return
	}
	value, ok := req.Value.(string)
	if !ok {
		s.writeError(w, http.StatusUnprocessableEntity, core.Validation("The 'value' field must be a string"))
		return
	}

	rec, err := s.client.Create(r.Context(), value)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.client.Get(r.Context(), r.PathValue("string_value"))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Delete(r.Context(), r.PathValue("string_value")); err != nil {
		s.writeError(w, 0, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	res, err := s.client.Query(r.Context(), filter.Params(r.URL.Query()))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNaturalQuery(w http.ResponseWriter, r *http.Request) {
	res, err := s.client.QueryNatural(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.client.Health(r.Context())
	status := http.StatusOK
	if h.Status != stringcatalog.StatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, core.NotFound("The route %s was not found on the server", r.URL.Path))
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindDuplicate:
		return http.StatusConflict
	case core.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the {status, message} envelope. A zero status
// is derived from the error kind. Production hides server-side detail.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status == 0 {
		status = statusFor(err)
	}

	resp := errorResponse{Status: "fail", Message: core.MessageOf(err)}
	if status >= http.StatusInternalServerError {
		resp.Status = "error"
		s.log.Error().Err(err).Int("status", status).Msg("request failed")
		if !s.cfg.IsDevelopment() {
			resp.Message = "Something went wrong"
		}
	}
	if s.cfg.IsDevelopment() {
		resp.Error = fmt.Sprintf("%+v", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
