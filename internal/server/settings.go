// ABOUTME: HTTP handlers for select options, the persisted language, locale catalogues, and audit
// ABOUTME: Also hosts login and the health endpoints

package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/2389/tally/internal/auth"
	"github.com/2389/tally/internal/i18n"
	"github.com/2389/tally/internal/invoicing"
	"github.com/2389/tally/internal/store"
)

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LoginRequest carries API credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *store.User `json:"user"`
}

// handleLogin handles POST /api/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	u, err := auth.Authenticate(r.Context(), s.store, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Info("login failed", "username", req.Username)
		}
		s.handleError(w, r, err)
		return
	}

	ttl := s.config.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token, expires, err := s.verifier.Issue(u, ttl)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires, User: u})
}

// StatusOption is a status value with its translated label.
type StatusOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionsResponse lists select options for the invoice editor.
type OptionsResponse struct {
	Currencies []string       `json:"currencies"`
	Statuses   []StatusOption `json:"statuses"`
}

// handleOptions handles GET /api/options?current_currency&current_status&lang.
// Current values missing from the lists are offered first so a stored value
// is never silently replaced.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lang := s.requestLang(r)

	currency := strings.ToUpper(strings.TrimSpace(q.Get("current_currency")))
	statuses := invoicing.WithCurrentFirst(invoicing.Statuses, strings.TrimSpace(q.Get("current_status")))

	resp := OptionsResponse{
		Currencies: invoicing.WithCurrentFirst(invoicing.CommonCurrencies, currency),
		Statuses:   make([]StatusOption, 0, len(statuses)),
	}
	for _, st := range statuses {
		resp.Statuses = append(resp.Statuses, StatusOption{Value: st, Label: i18n.TranslateStatus(lang, st)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// LanguageSetting is the body of the language endpoints.
type LanguageSetting struct {
	Language string `json:"language"`
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LanguageSetting{Language: s.renderer.ResolveLanguage(r.Context(), "")})
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req LanguageSetting
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	lang := strings.TrimSpace(req.Language)
	if !i18n.IsSupported(lang) {
		sendJSONError(w, http.StatusUnprocessableEntity, "language: unsupported language "+lang)
		return
	}
	lang = i18n.Normalize(lang)
	if err := s.store.SetSetting(r.Context(), store.SettingLanguage, lang); err != nil {
		s.handleError(w, r, err)
		return
	}

	entry := &store.AuditEntry{
		Actor:      auth.Actor(r.Context()),
		Action:     store.AuditSetSetting,
		TargetType: store.TargetSetting,
		TargetID:   store.SettingLanguage,
		Detail:     map[string]any{"value": lang},
	}
	if err := s.store.AppendAuditLog(r.Context(), entry); err != nil {
		s.logger.Error("failed to append audit log", "action", entry.Action, "error", err)
	}
	writeJSON(w, http.StatusOK, LanguageSetting{Language: lang})
}

func (s *Server) handleListLocales(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, i18n.Supported())
}

func (s *Server) handleGetLocale(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !i18n.IsSupported(code) {
		sendJSONError(w, http.StatusNotFound, "unknown locale "+code)
		return
	}
	writeJSON(w, http.StatusOK, i18n.Messages(code))
}

// handleListAudit handles GET /api/audit?target_type&target_id&since&limit.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.AuditFilter
	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		s.handleError(w, r, err)
		return
	}
	if v := strings.TrimSpace(q.Get("target_type")); v != "" {
		f.TargetType = &v
	}
	if v := strings.TrimSpace(q.Get("target_id")); v != "" {
		f.TargetID = &v
	}
	if v := strings.TrimSpace(q.Get("since")); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.handleError(w, r, badRequest("since must be an RFC3339 timestamp"))
			return
		}
		f.Since = &since
	}

	entries, err := s.store.ListAuditLog(r.Context(), f)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
