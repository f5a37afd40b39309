package api

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"github.com/vytor/assessment/internal/errors"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
)

type loginRequest struct {
	ParticipantID string `json:"participant_id"`
	PIN           string `json:"pin"`
}

type loginResponse struct {
	Profile     models.Participant `json:"profile"`
	HasProgress bool               `json:"has_progress"`
	Language    models.Language    `json:"language"`
	Token       string             `json:"token"`
}

var (
	supportedTags = []language.Tag{language.English, language.French, language.Arabic}
	tagLanguages  = []models.Language{models.LanguageEnglish, models.LanguageFrench, models.LanguageArabic}
	langMatcher   = language.NewMatcher(supportedTags)
)

// negotiateLanguage picks the best supported language for an Accept-Language
// header, defaulting to English.
func negotiateLanguage(header string) models.Language {
	if header == "" {
		return models.LanguageEnglish
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return models.LanguageEnglish
	}
	_, index, confidence := langMatcher.Match(tags...)
	if confidence == language.No {
		return models.LanguageEnglish
	}
	return tagLanguages[index]
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)
	log := logger.FromContext(r.Context()).WithField("participant_id", req.ParticipantID)
	log.Debug("login attempt")

	result, err := s.Directory.Authenticate(r.Context(), req.ParticipantID, req.PIN)
	if err != nil {
		handleError(w, r, err)
		return
	}
	token, err := s.Tokens.Issue(result.Profile)
	if err != nil {
		handleError(w, r, errors.NewInternalError(err))
		return
	}

	lang := result.Profile.Language
	if !lang.Valid() {
		lang = negotiateLanguage(r.Header.Get("Accept-Language"))
	}
	log.Info("participant logged in: has_progress=%t", result.HasProgress)
	writeJSON(w, http.StatusOK, loginResponse{
		Profile:     result.Profile,
		HasProgress: result.HasProgress,
		Language:    lang,
		Token:       token,
	})
}

type catalogResponse struct {
	Sections  []string `json:"sections"`
	Questions any      `json:"questions"`
	Total     int      `json:"total"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{
		Sections:  s.Catalog.Sections(),
		Questions: s.Catalog.Questions(),
		Total:     s.Catalog.Len(),
	})
}
