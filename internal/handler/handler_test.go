package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestHello(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Hello(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["message"] != "Welcome to TaskTracker API" {
		t.Errorf("unexpected message: %s", body["message"])
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/no-such-route", nil)
	rec := httptest.NewRecorder()
	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantOffset int
		wantLimit  int
	}{
		{"", 0, 100},
		{"offset=20&limit=10", 20, 10},
		{"offset=-5", 0, 100},
		{"limit=0", 0, 100},
		{"limit=9999", 0, 100},
		{"offset=abc&limit=xyz", 0, 100},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, (&url.URL{Path: "/", RawQuery: tt.query}).String(), nil)
		offset, limit := parsePagination(req)
		if offset != tt.wantOffset || limit != tt.wantLimit {
			t.Errorf("query %q: got (%d, %d), want (%d, %d)", tt.query, offset, limit, tt.wantOffset, tt.wantLimit)
		}
	}
}
