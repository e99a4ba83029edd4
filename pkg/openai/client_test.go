package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/menta2k/framecast/pkg/types"
)

func TestQuerySendsImageAndKey(t *testing.T) {
	var gotAuth string
	var gotReq ChatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"a cat on a sofa"}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "server-key")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := c.Query(context.Background(), types.VisionRequest{
		Model:    "gpt-4o-mini",
		Prompt:   "What is this?",
		ImageB64: "QUJD",
		APIKey:   "request-key",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if text != "a cat on a sofa" {
		t.Errorf("Expected model text, got %q", text)
	}
	if gotAuth != "Bearer request-key" {
		t.Errorf("Expected request key to win, got %q", gotAuth)
	}
	if gotReq.MaxTokens != DefaultMaxTokens {
		t.Errorf("Expected default max tokens %d, got %d", DefaultMaxTokens, gotReq.MaxTokens)
	}

	// Content parts come back as generic JSON
	parts, ok := gotReq.Messages[0].Content.([]interface{})
	if !ok || len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %#v", gotReq.Messages[0].Content)
	}
	img := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})["url"].(string)
	if img != "data:image/jpeg;base64,QUJD" {
		t.Errorf("Unexpected image url %q", img)
	}
}

func TestQueryFallsBackToClientKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "server-key")
	if _, err := c.Query(context.Background(), types.VisionRequest{Prompt: "x"}); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if gotAuth != "Bearer server-key" {
		t.Errorf("Expected server key, got %q", gotAuth)
	}
}

func TestQuerySurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	_, err := c.Query(context.Background(), types.VisionRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("Expected error for 401")
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Errorf("Expected API error message, got %v", err)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "k")
	vec, err := c.Embed(context.Background(), "a cat")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("Expected 3 dimensions, got %d", len(vec))
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("localhost:8080", ""); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}
