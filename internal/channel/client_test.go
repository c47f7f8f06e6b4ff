package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetCalendar_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/calendar/gite-42" {
			t.Fatalf("path = %s, want /api/calendar/gite-42", r.URL.Path)
		}

		resp := Calendar{
			PropertyRef: "gite-42",
			Ranges: []BusyRange{
				{
					Start: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
					End:   time.Date(2024, time.July, 8, 0, 0, 0, 0, time.UTC),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.GetCalendar(ctx, "gite-42")
	if err != nil {
		t.Fatalf("GetCalendar error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", code, http.StatusOK)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
	if res == nil || res.PropertyRef != "gite-42" || len(res.Ranges) != 1 {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestGetCalendar_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.GetCalendar(ctx, "gite-42")
	if err != nil {
		t.Fatalf("GetCalendar error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil response for 429, got %+v", res)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", retry)
	}
}

func TestGetCalendar_NoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.GetCalendar(ctx, "gite-42")
	if err != nil {
		t.Fatalf("GetCalendar error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil response for 204, got %+v", res)
	}
	if code != http.StatusNoContent {
		t.Fatalf("status code = %d, want %d", code, http.StatusNoContent)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
}

func TestGetCalendar_NotConfigured(t *testing.T) {
	var client *Client
	if _, _, _, err := client.GetCalendar(context.Background(), "gite-42"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
