// ABOUTME: HTTP handlers for clients and the searchable client picker
// ABOUTME: A client always stays with the company it was created under

package server

import (
	"net/http"
	"strings"

	"github.com/2389/tally/internal/events"
	"github.com/2389/tally/internal/i18n"
	"github.com/2389/tally/internal/invoicing"
	"github.com/2389/tally/internal/store"
)

// handleListClients handles GET /api/companies/{id}/clients?q&limit&offset.
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if _, err := s.store.GetCompany(r.Context(), companyID); err != nil {
		s.handleError(w, r, err)
		return
	}

	page, err := s.store.ListClients(r.Context(), companyID, store.ClientFilter{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ClientOptionsResponse is the client picker payload.
type ClientOptionsResponse struct {
	Options []invoicing.ClientOption `json:"options"`
	Matched int                      `json:"matched"`
}

// handleClientOptions handles GET /api/companies/{id}/client-options?q&limit&lang.
func (s *Server) handleClientOptions(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if limit == 0 {
		limit = invoicing.MaxClientOptions
	}
	if _, err := s.store.GetCompany(r.Context(), companyID); err != nil {
		s.handleError(w, r, err)
		return
	}

	page, err := s.store.ListClients(r.Context(), companyID, store.ClientFilter{})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	label := i18n.Tr(s.requestLang(r), "common.allClients")
	opts, matched := invoicing.FilterClients(page.Items, r.URL.Query().Get("q"), label, limit)
	writeJSON(w, http.StatusOK, ClientOptionsResponse{Options: opts, Matched: matched})
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var c store.Client
	if err := decodeJSON(w, r, &c); err != nil {
		s.handleError(w, r, err)
		return
	}
	if c.ID != 0 {
		s.handleError(w, r, badRequest("id must not be set when creating a client"))
		return
	}
	if err := checkBodyID("company_id", c.CompanyID, companyID); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := invoicing.ValidateClient(&c); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.store.CreateClient(r.Context(), companyID, &c); err != nil {
		s.handleError(w, r, err)
		return
	}

	s.recordChange(r, store.AuditCreateClient, store.TargetClient, c.ID, companyID, events.KindClient, events.ActionCreated,
		map[string]any{"name": c.Name})
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	c, err := s.store.GetClient(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var c store.Client
	if err := decodeJSON(w, r, &c); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := checkBodyID("id", c.ID, id); err != nil {
		s.handleError(w, r, err)
		return
	}
	c.ID = id
	if err := invoicing.ValidateClient(&c); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.store.UpdateClient(r.Context(), &c); err != nil {
		s.handleError(w, r, err)
		return
	}

	s.recordChange(r, store.AuditUpdateClient, store.TargetClient, id, c.CompanyID, events.KindClient, events.ActionUpdated, nil)
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	c, err := s.store.GetClient(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.store.DeleteClient(r.Context(), id); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.recordChange(r, store.AuditDeleteClient, store.TargetClient, id, c.CompanyID, events.KindClient, events.ActionDeleted, nil)
	w.WriteHeader(http.StatusNoContent)
}
