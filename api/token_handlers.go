package api

import (
	"net/http"
	"strconv"

	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
)

type accountResponse struct {
	*models.TokenAccount
	LotteryAllowance int64 `json:"lottery_allowance"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	address, ok := parseAddressParam(w, r, "address")
	if !ok {
		return
	}

	account, err := s.tokens.Account(r.Context(), address)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	allowance, err := s.tokens.Allowance(r.Context(), address, s.cfg.LotteryAddress)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{TokenAccount: account, LotteryAllowance: allowance})
}

func (s *Server) handleGetTransfers(w http.ResponseWriter, r *http.Request) {
	address, ok := parseAddressParam(w, r, "address")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	transfers, err := s.tokens.History(r.Context(), address, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if transfers == nil {
		transfers = []*models.TokenTransfer{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":   address,
		"transfers": transfers,
	})
}

// Amounts in request bodies are unit strings such as "1.5"
type approveRequest struct {
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	spender := s.cfg.LotteryAddress
	if req.Spender != "" {
		if !common.IsHexAddress(req.Spender) {
			writeError(w, http.StatusBadRequest, "spender must be a hex address")
			return
		}
		spender = common.HexToAddress(req.Spender)
	}

	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner := callerFrom(r.Context())
	if err := s.tokens.Approve(r.Context(), owner, spender, amount); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":     owner,
		"spender":   spender,
		"allowance": amount,
	})
}

type faucetRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "address must be a hex address")
		return
	}

	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	to := common.HexToAddress(req.Address)
	if err := s.tokens.Faucet(r.Context(), to, amount); err != nil {
		writeServiceError(w, r, err)
		return
	}

	account, err := s.tokens.Account(r.Context(), to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
