package client

import (
	"context"

	"github.com/menta2k/framecast/pkg/types"
)

// VisionClient answers a prompt about a single image
type VisionClient interface {
	Query(ctx context.Context, req types.VisionRequest) (string, error)
}

// Embedder turns text into a vector embedding
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
