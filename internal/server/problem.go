package server

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// NewProblem builds a Problem with a partsbin problem-type URI derived from
// the status code.
func NewProblem(status int, title, detail string) Problem {
	return Problem{
		Type:   "https://partsbin.dev/problems/" + slugForStatus(status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WriteProblem writes a Problem as an application/problem+json response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func slugForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad-request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not-found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate-limited"
	default:
		return "internal-error"
	}
}
