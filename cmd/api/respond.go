package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reviewdesk/remote"
	"reviewdesk/review"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("api: encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, remote.ErrorEnvelope{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathSegments splits the remainder of r's path after prefix.
func pathSegments(r *http.Request, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

type columnResponse struct {
	Label     string `json:"label"`
	FieldName string `json:"fieldName"`
	Type      string `json:"type"`
}

type panelSummary struct {
	Kind    string           `json:"kind"`
	Label   string           `json:"label"`
	Columns []columnResponse `json:"columns"`
}

type actionResponse struct {
	Label string `json:"label"`
	Name  string `json:"name"`
}

type rowResponse struct {
	remote.RecordPayload
	Actions []actionResponse `json:"actions"`
}

type panelResponse struct {
	Kind    string           `json:"kind"`
	Columns []columnResponse `json:"columns"`
	Rows    []rowResponse    `json:"rows"`
	Error   string           `json:"error,omitempty"`
	Version uint64           `json:"version"`
	Loaded  bool             `json:"loaded"`
}

type notificationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Variant   string `json:"variant"`
	Kind      string `json:"kind"`
	RowID     string `json:"rowId"`
	CreatedAt string `json:"createdAt"`
}

type outcomeResponse struct {
	RowID        string                `json:"rowId"`
	Action       string                `json:"action"`
	Target       string                `json:"target"`
	Result       string                `json:"result"`
	Succeeded    bool                  `json:"succeeded"`
	Removed      bool                  `json:"removed"`
	Invalidated  bool                  `json:"invalidated"`
	Error        string                `json:"error,omitempty"`
	Notification *notificationResponse `json:"notification,omitempty"`
}

func toPanelResponse(v review.View) panelResponse {
	resp := panelResponse{
		Kind:    v.Kind,
		Columns: toColumnResponses(v.Columns),
		Rows:    make([]rowResponse, 0, len(v.Rows)),
		Version: v.Version,
		Loaded:  v.Loaded,
	}
	if v.Err != nil {
		resp.Error = review.FailureDetail(v.Err)
	}
	for _, row := range v.Rows {
		actions := make([]actionResponse, 0, len(row.Actions))
		for _, a := range row.Actions {
			actions = append(actions, actionResponse{Label: a.Label, Name: string(a.Name)})
		}
		resp.Rows = append(resp.Rows, rowResponse{RecordPayload: remote.ToPayload(row.Record), Actions: actions})
	}
	return resp
}

func toColumnResponses(columns []review.Column) []columnResponse {
	out := make([]columnResponse, 0, len(columns))
	for _, c := range columns {
		out = append(out, columnResponse{Label: c.Label, FieldName: c.FieldName, Type: c.Type})
	}
	return out
}

func toNotificationResponse(n review.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Variant:   string(n.Severity),
		Kind:      n.Kind,
		RowID:     n.RowID,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toOutcomeResponse(o review.Outcome) outcomeResponse {
	resp := outcomeResponse{
		RowID:       o.RowID,
		Action:      string(o.Action),
		Target:      string(o.Target),
		Result:      string(o.Result),
		Succeeded:   o.Succeeded(),
		Removed:     o.Removed,
		Invalidated: o.Invalidated,
	}
	if o.Err != nil {
		resp.Error = o.Notification.Message
		if resp.Error == "" {
			resp.Error = review.FailureDetail(o.Err)
		}
	}
	if o.Notification.ID != "" {
		n := toNotificationResponse(o.Notification)
		resp.Notification = &n
	}
	return resp
}
