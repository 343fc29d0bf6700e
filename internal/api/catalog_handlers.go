package api

import (
	"errors"
	"net/http"

	"github.com/rma-advocacia/client-portal/internal/engagement"
)

// Catalog handlers, public browsing of service offerings

func (s *Server) handleListOfferings(w http.ResponseWriter, r *http.Request) {
	offerings := s.catalog.Summaries()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"offerings": offerings,
		"total":     len(offerings),
	})
}

func (s *Server) handleGetOffering(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "offering id is required")
		return
	}

	offering, err := s.catalog.Offering(id)
	if err != nil {
		if errors.Is(err, engagement.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "offering not found")
			return
		}
		respondCommandError(w, r, err, "get offering")
		return
	}
	respondJSON(w, http.StatusOK, offering)
}
