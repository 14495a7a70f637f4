package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/feed"
	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/policy"
)

// maxErrorHeaders caps the X-Feed-Error values written for one response.
const maxErrorHeaders = 20

type FeedHandler struct {
	builder *feed.Builder
	policy  policy.Provider
	logger  *slog.Logger
}

func NewFeedHandler(builder *feed.Builder, policyProvider policy.Provider, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{builder: builder, policy: policyProvider, logger: logger}
}

// Register mounts the feed endpoints on mux.
func (h *FeedHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/calendar-units", h.Units)
	mux.HandleFunc("/calendar-events", h.Events)
	mux.HandleFunc("/calendar-matching-units", h.MatchingUnits)
}

func (h *FeedHandler) MatchingUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	req := feed.MatchingUnitsRequest{
		UnitTypes:   feed.ParseSelection(q.Get("unit_types")),
		Start:       q.Get("start_date"),
		End:         q.Get("end_date"),
		EventType:   strings.TrimSpace(q.Get("event_type")),
		EventStates: feed.SplitList(q.Get("event_states")),
	}

	res, err := h.builder.MatchingUnits(r.Context(), req, h.policy.Permissions(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeFeed(w, res.Items, res.Errors)
}

func (h *FeedHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	req := feed.EventsRequest{
		UnitTypes:  feed.ParseSelection(q.Get("unit_types")),
		EventTypes: feed.ParseSelection(q.Get("event_types")),
		UnitIDs:    feed.SplitList(q.Get("unit_ids")),
		Background: isTruthy(q.Get("background")),
		Start:      q.Get("start"),
		End:        q.Get("end"),
	}

	res, err := h.builder.Events(r.Context(), req, h.policy.Permissions(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeFeed(w, res.Items, res.Errors)
}

func (h *FeedHandler) Units(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	req := feed.UnitsRequest{
		EventType: strings.TrimSpace(q.Get("event_type")),
		UnitTypes: feed.ParseSelection(q.Get("types")),
		IDs:       feed.SplitList(q.Get("ids")),
	}

	groups, err := h.builder.Units(r.Context(), req, h.policy.Permissions(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeFeed(w, groups, nil)
}

// writeFeed always answers with a JSON array so calendar clients can consume
// it directly. Partial failures travel in X-Feed-Errors (the count) and
// X-Feed-Error (one message per value).
func (h *FeedHandler) writeFeed(w http.ResponseWriter, items any, failures []error) {
	body, err := json.Marshal(items)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if len(failures) > 0 {
		w.Header().Set("X-Feed-Errors", strconv.Itoa(len(failures)))
		for i, f := range failures {
			if i == maxErrorHeaders {
				break
			}
			w.Header().Add("X-Feed-Error", headerSafe(f.Error()))
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *FeedHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var oerr *feed.OracleError
	switch {
	case errors.Is(err, feed.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, oracle.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("feed request timed out", "path", r.URL.Path, "err", err)
		http.Error(w, "oracle timeout", http.StatusGatewayTimeout)
	case errors.As(err, &oerr):
		h.logger.Error("oracle request failed", "path", r.URL.Path, "op", oerr.Op, "err", oerr.Err)
		http.Error(w, "oracle unavailable", http.StatusBadGateway)
	default:
		h.logger.Error("feed request failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func headerSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}
