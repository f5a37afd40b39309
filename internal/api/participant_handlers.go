package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/assessment/internal/errors"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/payload"
	"github.com/vytor/assessment/internal/services"
)

func (s *Server) handleFullState(w http.ResponseWriter, r *http.Request) {
	state, err := s.Sessions.FullState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.Sessions.StartOrResume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type languageRequest struct {
	Language models.Language `json:"language"`
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Directory.SetLanguage(r.Context(), chi.URLParam(r, "id"), req.Language); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// answerRequest carries the answer either in its storage form as a JSON
// string ("opt_1", "[\"opt_0\"]", "7") or as the structured JSON value
// (["opt_0"], 7).
type answerRequest struct {
	QuestionID     int             `json:"question_id"`
	Section        string          `json:"section"`
	Answer         json.RawMessage `json:"answer"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	CurrentIndex   int             `json:"current_index"`
}

type answerResponse struct {
	Saved bool `json:"saved"`
}

// rawAnswer returns the storage string for a request's answer field.
func rawAnswer(msg json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return "", errors.NewBadRequestError("answer must be a string, array or number")
		}
		return str, nil
	}
	return string(trimmed), nil
}

func (s *Server) handleRecordAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	q, ok := s.Catalog.ByID(req.QuestionID)
	if !ok {
		handleError(w, r, errors.NewValidationError("question_id", "unknown question"))
		return
	}
	raw, err := rawAnswer(req.Answer)
	if err != nil {
		handleError(w, r, err)
		return
	}
	value, err := payload.Decode(q, raw)
	if err != nil {
		handleError(w, r, err)
		return
	}

	saved, err := s.Progress.RecordAnswer(r.Context(), services.RecordAnswerInput{
		ParticipantID:  chi.URLParam(r, "id"),
		QuestionID:     req.QuestionID,
		Section:        req.Section,
		Payload:        value,
		ElapsedSeconds: req.ElapsedSeconds,
		NewIndex:       req.CurrentIndex,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Saved: saved})
}

type eventRequest struct {
	Kind models.EventKind `json:"kind"`
}

func (s *Server) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Sessions.LogEvent(r.Context(), chi.URLParam(r, "id"), req.Kind); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	s.Sessions.Heartbeat(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Complete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
