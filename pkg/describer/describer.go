// Package describer turns a frame and a prompt into the text shown in the
// client's response log.
package describer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/menta2k/framecast/pkg/client"
	"github.com/menta2k/framecast/pkg/types"
)

// DefaultPrompt is what the capture client sends when the user leaves the prompt empty
const DefaultPrompt = "Analyze this frame"

// DetailedPrompt is the server-side prompt used when a request carries no prompt at all
const DetailedPrompt = `You are an expert in analyzing visual content. Please analyze the provided image for the following details:
1. Identify any text present in the image and provide a summary.
2. Describe the main objects and their arrangement.
3. Identify the context of the image (e.g., work environment, outdoor scene).
4. Provide any notable observations about lighting, colors, and overall composition.
Here is the image:`

// ErrEmptyResponse is returned when the model answers with no text
var ErrEmptyResponse = errors.New("empty response from vision model")

// Request is a single describe call
type Request struct {
	Prompt   string
	ImageB64 string
	APIKey   string
}

// Describer handles frame descriptions using vision models
type Describer struct {
	client        client.VisionClient
	model         string
	defaultPrompt string
	maxTokens     int
}

// New creates a describer for model. An empty defaultPrompt selects DetailedPrompt.
func New(client client.VisionClient, model, defaultPrompt string, maxTokens int) *Describer {
	if defaultPrompt == "" {
		defaultPrompt = DetailedPrompt
	}
	return &Describer{
		client:        client,
		model:         model,
		defaultPrompt: defaultPrompt,
		maxTokens:     maxTokens,
	}
}

// Model returns the configured model name
func (d *Describer) Model() string {
	return d.model
}

// Describe asks the model about the frame and returns its trimmed answer
func (d *Describer) Describe(ctx context.Context, req Request) (string, error) {
	if req.ImageB64 == "" {
		return "", fmt.Errorf("no image to describe")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = d.defaultPrompt
	}

	text, err := d.client.Query(ctx, types.VisionRequest{
		Model:     d.model,
		Prompt:    prompt,
		ImageB64:  req.ImageB64,
		APIKey:    req.APIKey,
		MaxTokens: d.maxTokens,
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
