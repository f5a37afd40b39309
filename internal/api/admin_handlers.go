package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/assessment/internal/errors"
	"github.com/vytor/assessment/internal/logger"
)

const (
	adminKeyHeader   = "X-Admin-Key"
	adminActorHeader = "X-Admin-Actor"
)

func adminKey(r *http.Request) string {
	return r.Header.Get(adminKeyHeader)
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

// requireConfirm enforces the explicit second confirmation on destructive
// calls. The key is checked first so a bad key never learns about the body.
func (s *Server) requireConfirm(w http.ResponseWriter, r *http.Request) error {
	if err := s.Admin.Authorize(r.Context(), adminKey(r)); err != nil {
		return err
	}
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if !req.Confirm {
		return errors.NewBadRequestError(`destructive action requires {"confirm": true}`)
	}
	return nil
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Admin.ListStats(r.Context(), adminKey(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminAnswers(w http.ResponseWriter, r *http.Request) {
	answers, err := s.Admin.AnswersFor(r.Context(), adminKey(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (s *Server) handleAdminResetOne(w http.ResponseWriter, r *http.Request) {
	if err := s.requireConfirm(w, r); err != nil {
		handleError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.Admin.ResetOne(r.Context(), adminKey(r), id, r.Header.Get(adminActorHeader)); err != nil {
		handleError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("participant %s reset by admin", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminResetAll(w http.ResponseWriter, r *http.Request) {
	if err := s.requireConfirm(w, r); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Admin.ResetAll(r.Context(), adminKey(r), r.Header.Get(adminActorHeader)); err != nil {
		handleError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("all participants reset by admin")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.Admin.ExportAll(r.Context(), adminKey(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="assessment-export-`+time.Now().UTC().Format("20060102")+`.json"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(bundle)
}

func (s *Server) handleAdminExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.Admin.ExportCSV(r.Context(), adminKey(r), &buf); err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="assessment-answers-`+time.Now().UTC().Format("20060102")+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
