package api

import (
	"net/http"

	"megayield/models"
)

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	winner, ok := parseAddressParam(w, r, "winner")
	if !ok {
		return
	}

	positions, err := s.vesting.ListPositions(r.Context(), winner)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if positions == nil {
		positions = []*models.VestingPosition{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"winner":    winner,
		"positions": positions,
	})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	positionID, ok := parseInt64Param(w, r, "id")
	if !ok {
		return
	}

	schedule, err := s.vesting.Schedule(r.Context(), positionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	positionID, ok := parseInt64Param(w, r, "id")
	if !ok {
		return
	}

	claim, err := s.vesting.Claim(r.Context(), callerFrom(r.Context()), positionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}
