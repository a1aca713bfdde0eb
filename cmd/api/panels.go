package main

import (
	"errors"
	"net/http"
	"strconv"

	"reviewdesk/review"
)

type actionRequest struct {
	RowID  string `json:"rowId"`
	Action string `json:"action"`
}

// handlePanels lists the registered kinds.
func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	items := make([]panelSummary, 0)
	for _, p := range s.panels.Panels() {
		k := p.Kind()
		items = append(items, panelSummary{Kind: k.Name, Label: k.Label, Columns: toColumnResponses(k.Columns)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handlePanelDetail serves /api/panels/{kind}[/refresh|/actions].
func (s *Server) handlePanelDetail(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r, "/api/panels/")
	if len(parts) == 0 || len(parts) > 2 {
		writeError(w, http.StatusBadRequest, "invalid panel path")
		return
	}

	panel, err := s.panels.Get(parts[0])
	if err != nil {
		if errors.Is(err, review.ErrUnknownKind) {
			writeError(w, http.StatusNotFound, "unknown record kind")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, toPanelResponse(panel.View()))
		return
	}

	switch parts[1] {
	case "refresh":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, toPanelResponse(panel.Refresh(r.Context())))
	case "actions":
		s.handlePanelAction(w, r, panel)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handlePanelAction(w http.ResponseWriter, r *http.Request, panel *review.Panel) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !roleFrom(r.Context()).CanReview() {
		writeError(w, http.StatusForbidden, "role may not review records")
		return
	}

	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := review.WithActor(r.Context(), userIDFrom(r.Context()))
	out, err := panel.Act(ctx, req.RowID, review.ActionName(req.Action))
	switch {
	case errors.Is(err, review.ErrMissingRowID):
		writeError(w, http.StatusBadRequest, "rowId is required")
		return
	case errors.Is(err, review.ErrRowInFlight):
		writeError(w, http.StatusConflict, "an update for this row is already in progress")
		return
	case err != nil:
		s.log().ErrorContext(r.Context(), "api: panel action", "kind", panel.Kind().Name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var listed []review.Notification
	if s.feed != nil {
		listed = s.feed.List(limit)
	}
	items := make([]notificationResponse, 0, len(listed))
	for _, n := range listed {
		items = append(items, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
