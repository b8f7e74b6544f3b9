package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/pkg/errors"
)

func testClient(t *testing.T, baseURL string) Client {
	t.Helper()
	c, err := NewClient(config.InferenceConfig{
		BaseURL: baseURL,
		Model:   "test-model",
		Timeout: 2 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || req.Stream {
			t.Errorf("unexpected request body: %+v", req)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "  risposta del modello  "})
	}))
	defer srv.Close()

	got, err := testClient(t, srv.URL).Generate(context.Background(), "prompt di prova")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "risposta del modello" {
		t.Errorf("got %q", got)
	}
}

func TestGenerate_EmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "   "})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error on empty payload")
	}
	if !errors.IsCode(err, errors.ErrCodeAIResponseMalformed) {
		t.Errorf("unexpected code: %v", err)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if !errors.IsCode(err, errors.ErrCodeAIInferenceFailed) {
		t.Errorf("unexpected code: %v", err)
	}
}

func TestGenerate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient(t, url).Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error when endpoint is down")
	}
	if !errors.IsCode(err, errors.ErrCodeAIUnavailable) {
		t.Errorf("unexpected code: %v", err)
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(config.InferenceConfig{Model: "m"}, nil); err == nil {
		t.Error("missing base URL accepted")
	}
	if _, err := NewClient(config.InferenceConfig{BaseURL: "http://localhost:11434"}, nil); err == nil {
		t.Error("missing model accepted")
	}
}
