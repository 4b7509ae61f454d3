package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/auth"
)

// ErrorResponse is the shape of every API error.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a stable code and a human readable message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes that are not bid rejection reasons.
const (
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeSelfOutbid        = "SELF_OUTBID"
	CodeBidTooLow         = "BID_TOO_LOW"
	CodeUnknownPlayer     = "UNKNOWN_PLAYER"
	CodeUnknownTeam       = "UNKNOWN_TEAM"
	CodePlayerUnavailable = "PLAYER_UNAVAILABLE"
	CodePoolExhausted     = "POOL_EXHAUSTED"
	CodeInvalidPlayers    = "INVALID_PLAYERS"
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeNotOwner          = "NOT_OWNER"
	CodeInternal          = "INTERNAL"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// classify maps a domain error to a status and code.
func classify(err error) (int, string, string) {
	var rejected *auction.BidRejectedError
	switch {
	case errors.Is(err, auction.ErrNotOwner):
		return http.StatusServiceUnavailable, CodeNotOwner, err.Error()
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity, string(rejected.Verdict.Reason), rejected.Verdict.Message()
	case errors.Is(err, auction.ErrIllegalTransition):
		return http.StatusConflict, CodeIllegalTransition, err.Error()
	case errors.Is(err, auction.ErrSelfOutbid):
		return http.StatusUnprocessableEntity, CodeSelfOutbid, err.Error()
	case errors.Is(err, auction.ErrBidTooLow):
		return http.StatusUnprocessableEntity, CodeBidTooLow, err.Error()
	case errors.Is(err, auction.ErrUnknownPlayer):
		return http.StatusNotFound, CodeUnknownPlayer, err.Error()
	case errors.Is(err, auction.ErrUnknownTeam):
		return http.StatusNotFound, CodeUnknownTeam, err.Error()
	case errors.Is(err, auction.ErrPlayerUnavailable):
		return http.StatusConflict, CodePlayerUnavailable, err.Error()
	case errors.Is(err, auction.ErrPoolExhausted):
		return http.StatusConflict, CodePoolExhausted, err.Error()
	case errors.Is(err, auction.ErrDuplicatePlayer), errors.Is(err, auction.ErrInvalidPlayer):
		return http.StatusBadRequest, CodeInvalidPlayers, err.Error()
	case errors.Is(err, auth.ErrBadCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrDisabled):
		return http.StatusUnauthorized, CodeUnauthorized, err.Error()
	}
	return http.StatusInternalServerError, CodeInternal, "internal error"
}
