package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/event"
	"github.com/jensholdgaard/cricket-auction/internal/ingest"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
)

const (
	maxJSONBody  = 1 << 20
	maxSheetBody = 8 << 20
)

type startRequest struct {
	PlayerID string `json:"playerId"`
}

type bidRequest struct {
	TeamID string `json:"teamId"`
	Amount int64  `json:"amount"`
}

type teamRequest struct {
	TeamID string `json:"teamId"`
}

type statusRequest struct {
	Status auction.Mode `json:"status"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type loadResponse struct {
	State  auction.State     `json:"state"`
	Issues []ingest.RowIssue `json:"issues"`
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("decoding body: %v", err))
	return false
}

// respond writes the state returned by a transition or its error.
func (h *handler) respond(w http.ResponseWriter, r *http.Request, s auction.State, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	writeError(w, status, code, msg)
}

func (h *handler) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.auction.Snapshot())
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	tok, err := h.auth.Login(req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PlayerID == "" {
		s, err := h.auction.StartNext(r.Context())
		h.respond(w, r, s, err)
		return
	}
	s, err := h.auction.StartAuctionForPlayer(r.Context(), req.PlayerID)
	h.respond(w, r, s, err)
}

func (h *handler) bid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TeamID == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "teamId is required")
		return
	}
	if req.Amount < 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "amount must not be negative")
		return
	}
	s, err := h.auction.PlaceBid(r.Context(), req.TeamID, req.Amount)
	h.respond(w, r, s, err)
}

func (h *handler) transition(fn func(context.Context) (auction.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fn(r.Context())
		h.respond(w, r, s, err)
	}
}

// loadPlayers accepts a JSON player list or a CSV sheet. CSV uploads use
// the free-text sheet format unless ?format=seed is given.
func (h *handler) loadPlayers(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		players []roster.Player
		issues  []ingest.RowIssue
		err     error
	)
	switch mediaType {
	case "text/csv":
		body := http.MaxBytesReader(w, r.Body, maxSheetBody)
		if r.URL.Query().Get("format") == "seed" {
			players, issues, err = ingest.ParseSeedCSV(body)
		} else {
			players, issues, err = ingest.ParseSheet(body, h.picker)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
	default:
		if !decode(w, r, &players) {
			return
		}
	}
	if len(players) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "no players in upload")
		return
	}

	s, err := h.auction.LoadPlayers(r.Context(), players)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if issues == nil {
		issues = []ingest.RowIssue{}
	}
	writeJSON(w, http.StatusOK, loadResponse{State: s, Issues: issues})
}

func (h *handler) selectTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.auction.SelectMyTeam(r.Context(), req.TeamID)
	h.respond(w, r, s, err)
}

func (h *handler) squadReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.auction.SquadReport(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	events, err := h.auction.Events(r.Context(), event.Type(r.URL.Query().Get("type")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Status != auction.ModeLive && req.Status != auction.ModePaused {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("status must be %s or %s", auction.ModeLive, auction.ModePaused))
		return
	}
	s, err := h.auction.SetStatus(r.Context(), req.Status)
	h.respond(w, r, s, err)
}
