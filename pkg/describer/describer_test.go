package describer

import (
	"context"
	"errors"
	"testing"

	"github.com/menta2k/framecast/pkg/types"
)

type fakeClient struct {
	got  types.VisionRequest
	text string
	err  error
}

func (f *fakeClient) Query(ctx context.Context, req types.VisionRequest) (string, error) {
	f.got = req
	return f.text, f.err
}

func TestDescribeForwardsRequest(t *testing.T) {
	fc := &fakeClient{text: "  cat detected\n"}
	d := New(fc, "llava", "", 300)

	text, err := d.Describe(context.Background(), Request{Prompt: "What animal?", ImageB64: "QUJD", APIKey: "k"})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if text != "cat detected" {
		t.Errorf("Expected trimmed text, got %q", text)
	}
	if fc.got.Model != "llava" || fc.got.Prompt != "What animal?" || fc.got.APIKey != "k" || fc.got.MaxTokens != 300 {
		t.Errorf("Unexpected vision request %+v", fc.got)
	}
}

func TestDescribeDefaultPrompt(t *testing.T) {
	fc := &fakeClient{text: "ok"}

	New(fc, "m", "", 0).Describe(context.Background(), Request{Prompt: "   ", ImageB64: "QUJD"})
	if fc.got.Prompt != DetailedPrompt {
		t.Errorf("Expected detailed prompt, got %q", fc.got.Prompt)
	}

	New(fc, "m", "Describe briefly", 0).Describe(context.Background(), Request{ImageB64: "QUJD"})
	if fc.got.Prompt != "Describe briefly" {
		t.Errorf("Expected configured default prompt, got %q", fc.got.Prompt)
	}
}

func TestDescribeErrors(t *testing.T) {
	d := New(&fakeClient{text: "ok"}, "m", "", 0)
	if _, err := d.Describe(context.Background(), Request{}); err == nil {
		t.Error("Expected error without image")
	}

	d = New(&fakeClient{text: "   "}, "m", "", 0)
	if _, err := d.Describe(context.Background(), Request{ImageB64: "QUJD"}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}

	boom := errors.New("boom")
	d = New(&fakeClient{err: boom}, "m", "", 0)
	if _, err := d.Describe(context.Background(), Request{ImageB64: "QUJD"}); !errors.Is(err, boom) {
		t.Errorf("Expected client error, got %v", err)
	}
}
