package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteProblem(t *testing.T) {
	w := httptest.NewRecorder()

	WriteProblem(w, Problem{
		Type:     ProblemTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   "resource aabbccddeeff has no samples",
		Instance: "/api/v1/samples?resource_id=aabbccddeeff",
	})

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q, want application/problem+json", ct)
	}

	var p Problem
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := Problem{
		Type:     ProblemTypeNotFound,
		Title:    "Not Found",
		Status:   404,
		Detail:   "resource aabbccddeeff has no samples",
		Instance: "/api/v1/samples?resource_id=aabbccddeeff",
	}
	if p != want {
		t.Errorf("problem = %+v, want %+v", p, want)
	}
}

func TestProblemHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, string, string)
		status int
		ptype  string
		title  string
	}{
		{"not found", NotFound, http.StatusNotFound, ProblemTypeNotFound, "Not Found"},
		{"bad request", BadRequest, http.StatusBadRequest, ProblemTypeBadRequest, "Bad Request"},
		{"internal", InternalError, http.StatusInternalServerError, ProblemTypeInternal, "Internal Server Error"},
		{"unavailable", Unavailable, http.StatusServiceUnavailable, ProblemTypeUnavailable, "Service Unavailable"},
		{"rate limited", RateLimited, http.StatusTooManyRequests, ProblemTypeRateLimited, "Too Many Requests"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, "detail text", "/api/v1/samples")

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var p Problem
			if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if p.Type != tt.ptype {
				t.Errorf("type = %q, want %q", p.Type, tt.ptype)
			}
			if p.Title != tt.title {
				t.Errorf("title = %q, want %q", p.Title, tt.title)
			}
			if p.Status != tt.status || p.Detail != "detail text" || p.Instance != "/api/v1/samples" {
				t.Errorf("problem = %+v", p)
			}
		})
	}
}

func TestWriteProblem_OmitsEmptyOptionalFields(t *testing.T) {
	w := httptest.NewRecorder()
	WriteProblem(w, Problem{Type: ProblemTypeInternal, Title: "Internal Server Error", Status: 500})

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	for _, key := range []string{"detail", "instance"} {
		if _, ok := raw[key]; ok {
			t.Errorf("%s present, want omitted when empty", key)
		}
	}
}
