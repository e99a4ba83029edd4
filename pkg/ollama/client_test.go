package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/menta2k/framecast/pkg/types"
)

func TestNewClient(t *testing.T) {
	if _, err := NewClient("http://localhost:11434/api/chat"); err != nil {
		t.Errorf("NewClient should accept a full endpoint URL: %v", err)
	}
	if _, err := NewClient("localhost"); err == nil {
		t.Error("NewClient should reject a URL without scheme and host")
	}
}

func TestQuery(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Content string   `json:"content"`
			Images  []string `json:"images"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"cat detected"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := c.Query(context.Background(), types.VisionRequest{
		Model:    "llava",
		Prompt:   "Analyze this frame",
		ImageB64: "QUJD",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if text != "cat detected" {
		t.Errorf("Expected %q, got %q", "cat detected", text)
	}
	if got.Model != "llava" || len(got.Messages) != 1 {
		t.Fatalf("Unexpected request %+v", got)
	}
	if got.Messages[0].Content != "Analyze this frame" {
		t.Errorf("Prompt not forwarded: %q", got.Messages[0].Content)
	}
	if len(got.Messages[0].Images) != 1 || got.Messages[0].Images[0] != "QUJD" {
		t.Errorf("Image not forwarded: %v", got.Messages[0].Images)
	}
}

func TestQueryRejectsBadBase64(t *testing.T) {
	c, _ := NewClient("http://127.0.0.1:1")
	if _, err := c.Query(context.Background(), types.VisionRequest{ImageB64: "%%%"}); err == nil {
		t.Error("Expected base64 decode error")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.5,0.25,0.125,0]]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	vec, err := c.Embed(context.Background(), "cat detected")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 4 || vec[0] != 0.5 {
		t.Errorf("Unexpected embedding %v", vec)
	}
}
