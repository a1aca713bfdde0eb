package main

import (
	"net/http"

	"reviewdesk/remote"
	"reviewdesk/review"
)

// handleRecords serves the gateway endpoints consumed by remote.Client:
// GET /api/records/{kind} and POST /api/records/{kind}/{id}/status.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r, "/api/records/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "invalid records path")
		return
	}
	gw, ok := s.records[parts[0]]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown record kind")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		records, err := gw.FetchRecords(r.Context())
		if err != nil {
			s.log().ErrorContext(r.Context(), "api: fetch records", "kind", parts[0], "err", err)
			writeError(w, http.StatusBadGateway, review.FailureDetail(err))
			return
		}
		resp := remote.RecordsResponse{Records: make([]remote.RecordPayload, 0, len(records))}
		for _, rec := range records {
			resp.Records = append(resp.Records, remote.ToPayload(rec))
		}
		writeJSON(w, http.StatusOK, resp)

	case len(parts) == 3 && parts[2] == "status":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req remote.StatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		target := review.Status(req.Status)
		if !review.IsTerminal(target) {
			writeError(w, http.StatusBadRequest, "status must be Approved or Rejected")
			return
		}
		ctx := r.Context()
		if actor := userIDFrom(ctx); actor != "" {
			ctx = review.WithActor(ctx, actor)
		}
		result, err := gw.UpdateStatus(ctx, parts[1], target)
		if err != nil {
			s.log().ErrorContext(ctx, "api: update record status", "kind", parts[0], "id", parts[1], "err", err)
			writeError(w, http.StatusBadGateway, review.FailureDetail(err))
			return
		}
		writeJSON(w, http.StatusOK, remote.StatusResponse{Result: string(result)})

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}
