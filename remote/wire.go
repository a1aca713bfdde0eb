package remote

import "reviewdesk/review"

// RecordPayload is the JSON form of a review record.
type RecordPayload struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Status string         `json:"status"`
	Fields map[string]any `json:"fields,omitempty"`
}

// RecordsResponse is returned by GET /api/records/{kind}.
type RecordsResponse struct {
	Records []RecordPayload `json:"records"`
}

// StatusRequest is the body of POST /api/records/{kind}/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// StatusResponse carries the business result of a status update. An empty
// Result is a valid response and means nothing was applied.
type StatusResponse struct {
	Result string `json:"result"`
}

// ErrorEnvelope is the body of every non-2xx response.
type ErrorEnvelope struct {
	Error string `json:"error"`
}

func ToPayload(rec review.Record) RecordPayload {
	return RecordPayload{
		ID:     rec.ID,
		Name:   rec.Name,
		Status: string(rec.Status),
		Fields: rec.Fields,
	}
}

func FromPayload(p RecordPayload) review.Record {
	return review.Record{
		ID:     p.ID,
		Name:   p.Name,
		Status: review.Status(p.Status),
		Fields: p.Fields,
	}
}
