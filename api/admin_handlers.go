package api

import (
	"net/http"

	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type setVestingRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleSetVesting(w http.ResponseWriter, r *http.Request) {
	var req setVestingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "address must be a hex address")
		return
	}

	address := common.HexToAddress(req.Address)
	if err := s.lottery.SetVestingContract(r.Context(), callerFrom(r.Context()), address); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vesting_address": address})
}

type setTicketPriceRequest struct {
	Price string `json:"price"`
}

func (s *Server) handleSetTicketPrice(w http.ResponseWriter, r *http.Request) {
	var req setTicketPriceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	price, err := models.ParseAmount(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.lottery.SetTicketPrice(r.Context(), callerFrom(r.Context()), price); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket_price":         price,
		"ticket_price_display": models.FormatAmount(price),
	})
}

type emergencyWithdrawRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req emergencyWithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.To) {
		writeError(w, http.StatusBadRequest, "to must be a hex address")
		return
	}

	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	to := common.HexToAddress(req.To)
	caller := callerFrom(r.Context())
	if err := s.lottery.EmergencyWithdraw(r.Context(), caller, to, amount); err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.WithFields(log.Fields{
		"caller": caller.Hex(),
		"to":     to.Hex(),
		"amount": amount,
	}).Warn("Emergency withdrawal executed via API")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"to":     to,
		"amount": amount,
	})
}
