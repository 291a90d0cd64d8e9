package server

import (
	"encoding/json"
	"net/http"
)

// Problem types returned by the status API (RFC 7807).
const (
	ProblemTypeNotFound    = "https://hwmeter.dev/problems/not-found"
	ProblemTypeBadRequest  = "https://hwmeter.dev/problems/bad-request"
	ProblemTypeInternal    = "https://hwmeter.dev/problems/internal-error"
	ProblemTypeUnavailable = "https://hwmeter.dev/problems/store-unavailable"
	ProblemTypeRateLimited = "https://hwmeter.dev/problems/rate-limited"
)

// problemTypes maps each status the API answers with to its problem type.
var problemTypes = map[int]string{
	http.StatusNotFound:            ProblemTypeNotFound,
	http.StatusBadRequest:          ProblemTypeBadRequest,
	http.StatusInternalServerError: ProblemTypeInternal,
	http.StatusServiceUnavailable:  ProblemTypeUnavailable,
	http.StatusTooManyRequests:     ProblemTypeRateLimited,
}

// Problem is an RFC 7807 Problem Details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes p as application/problem+json with p.Status.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeStatus(w http.ResponseWriter, status int, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     problemTypes[status],
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusNotFound, detail, instance)
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusBadRequest, detail, instance)
}

// InternalError writes a 500 problem. detail must not carry the underlying
// error text.
func InternalError(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusInternalServerError, detail, instance)
}

// Unavailable writes a 503 problem; the API uses it when the sample store
// is disabled.
func Unavailable(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusServiceUnavailable, detail, instance)
}

// RateLimited writes a 429 problem.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusTooManyRequests, detail, instance)
}
