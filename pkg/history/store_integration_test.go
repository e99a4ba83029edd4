//go:build integration

package history

import (
	"context"
	"os"
	"strings"
	"testing"
)

// wordEmbedder embeds text by counting a few fixed words
type wordEmbedder struct{}

func (wordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	vec := make([]float32, 4)
	for i, w := range []string{"cat", "dog", "car", "tree"} {
		vec[i] = float32(strings.Count(text, w)) + 0.01
	}
	return vec, nil
}

func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("FRAMECAST_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FRAMECAST_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := Open(ctx, dsn, wordEmbedder{}, 4, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE frame_analyses"); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}

	for _, resp := range []string{"a cat on a sofa", "a red car parked", "a dog under a tree"} {
		if _, err := s.Record(ctx, Record{Prompt: "Analyze this frame", Response: resp, Width: 640, Height: 480}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 3 || recent[0].Response != "a dog under a tree" {
		t.Errorf("Unexpected recent records %+v", recent)
	}

	matches, err := s.Search(ctx, "car", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Response != "a red car parked" {
		t.Errorf("Expected the car frame, got %+v", matches)
	}
}
