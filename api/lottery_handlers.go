package api

import (
	"net/http"
	"strconv"

	"megayield/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

type dayInfoResponse struct {
	*models.DayInfo
	JackpotDisplay string `json:"jackpot_display"`
}

func (s *Server) handleCurrentDay(w http.ResponseWriter, r *http.Request) {
	info, err := s.lottery.CurrentDayInfo(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dayInfoResponse{DayInfo: info, JackpotDisplay: models.FormatAmount(info.Jackpot)})
}

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	dayIndex, ok := parseInt64Param(w, r, "day")
	if !ok {
		return
	}

	day, err := s.lottery.GetDay(r.Context(), dayIndex)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if day == nil {
		writeError(w, http.StatusNotFound, "day not found")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleGetBuyers(w http.ResponseWriter, r *http.Request) {
	dayIndex, ok := parseInt64Param(w, r, "day")
	if !ok {
		return
	}

	buyers, err := s.lottery.GetBuyers(r.Context(), dayIndex)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if buyers == nil {
		buyers = []*models.DayBuyer{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"day_index": dayIndex,
		"buyers":    buyers,
	})
}

type buyTicketRequest struct {
	Tickets  int64  `json:"tickets"`
	Referrer string `json:"referrer,omitempty"`
}

func (s *Server) handleBuyTicket(w http.ResponseWriter, r *http.Request) {
	var req buyTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// A missing referrer is the zero address, which the lottery ignores
	var referrer common.Address
	if req.Referrer != "" {
		if !common.IsHexAddress(req.Referrer) {
			writeError(w, http.StatusBadRequest, "referrer must be a hex address")
			return
		}
		referrer = common.HexToAddress(req.Referrer)
	}

	purchase, err := s.lottery.BuyTicket(r.Context(), callerFrom(r.Context()), req.Tickets, referrer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

type requestDrawRequest struct {
	Entropy string `json:"entropy,omitempty"`
	Fee     *int64 `json:"fee,omitempty"`
}

func (s *Server) handleRequestDraw(w http.ResponseWriter, r *http.Request) {
	var req requestDrawRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	var entropy common.Hash
	if req.Entropy != "" {
		entropy = common.HexToHash(req.Entropy)
	} else {
		generated, err := s.entropy()
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		entropy = generated
	}

	var fee int64
	if req.Fee != nil {
		fee = *req.Fee
	} else {
		required, err := s.lottery.RequiredFee(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		fee = required
	}

	draw, err := s.lottery.RequestDraw(r.Context(), callerFrom(r.Context()), entropy, fee)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, draw)
}

func (s *Server) handleGetDraw(w http.ResponseWriter, r *http.Request) {
	requestID, err := strconv.ParseUint(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "requestID must be an unsigned integer")
		return
	}

	draw, err := s.lottery.GetPendingDraw(r.Context(), requestID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draw)
}

func (s *Server) handleOracleFee(w http.ResponseWriter, r *http.Request) {
	fee, err := s.lottery.RequiredFee(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"fee": fee})
}

type oracleCallbackRequest struct {
	RequestID uint64 `json:"request_id"`
}

func (s *Server) handleOracleCallback(w http.ResponseWriter, r *http.Request) {
	if s.executor == nil {
		writeError(w, http.StatusNotFound, "callbacks are only triggerable with the simulated oracle")
		return
	}

	var req oracleCallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.executor.Execute(r.Context(), req.RequestID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	draw, err := s.lottery.GetPendingDraw(r.Context(), req.RequestID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	day, err := s.lottery.GetDay(r.Context(), draw.DayIndex)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request": draw,
		"day":     day,
	})
}

// parseInt64Param reads a numeric URL parameter, writing a 400 on failure
func parseInt64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	value, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || value < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return value, true
}

// parseAddressParam reads an address URL parameter, writing a 400 on failure
func parseAddressParam(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	value := chi.URLParam(r, name)
	if !common.IsHexAddress(value) {
		writeError(w, http.StatusBadRequest, name+" must be a hex address")
		return common.Address{}, false
	}
	return common.HexToAddress(value), true
}
