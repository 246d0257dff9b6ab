package tryon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stylerush/stylerush/internal/async"
)

func renderServer(t *testing.T, pollsUntilDone int32, finalStatus string) *httptest.Server {
	t.Helper()
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/run", func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad submit body: %v", err)
		}
		if req.ModelImage == "" || req.GarmentImage == "" {
			t.Error("submit request missing images")
		}
		json.NewEncoder(w).Encode(submitResponse{ID: "pred-1"})
	})
	mux.HandleFunc("/v1/status/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "pred-1") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if atomic.AddInt32(&polls, 1) < pollsUntilDone {
			json.NewEncoder(w).Encode(statusResponse{ID: "pred-1", Status: "processing"})
			return
		}
		json.NewEncoder(w).Encode(statusResponse{
			ID:     "pred-1",
			Status: finalStatus,
			Output: []string{"https://img/out1.png"},
			Error:  "gpu oom",
		})
	})
	return httptest.NewServer(mux)
}

func TestRenderSubmitThenPoll(t *testing.T) {
	server := renderServer(t, 3, "completed")
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:      server.URL,
		APIKey:       "k",
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	})
	images, err := client.Render(context.Background(), "model.png", "garment.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images) != 1 || images[0] != "https://img/out1.png" {
		t.Errorf("unexpected images: %v", images)
	}
}

func TestRenderProviderFailure(t *testing.T) {
	server := renderServer(t, 1, "failed")
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:      server.URL,
		APIKey:       "k",
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	})
	_, err := client.Render(context.Background(), "model.png", "garment.png")
	if err == nil {
		t.Fatal("expected error for failed render")
	}
	if !strings.Contains(err.Error(), "gpu oom") {
		t.Errorf("expected provider error message, got %v", err)
	}
}

func TestRenderPollTimeout(t *testing.T) {
	server := renderServer(t, 1000, "completed")
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:      server.URL,
		APIKey:       "k",
		PollInterval: time.Millisecond,
		PollTimeout:  10 * time.Millisecond,
	})
	_, err := client.Render(context.Background(), "model.png", "garment.png")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestSubmitAuthFailurePermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "bad"})
	_, err := client.Render(context.Background(), "m", "g")
	if err == nil {
		t.Fatal("expected error")
	}
	if !async.IsPermanent(err) {
		t.Errorf("401 should be permanent, got %v", err)
	}
}

func TestSubmitRateLimitRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := client.Render(context.Background(), "m", "g")
	if err == nil {
		t.Fatal("expected error")
	}
	if async.IsPermanent(err) {
		t.Errorf("429 should stay retryable, got %v", err)
	}
}
