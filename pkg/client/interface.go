// Package client declares the contract shared by the vision model backends.
package client

import (
	"context"

	"github.com/menta2k/image-annotator/pkg/types"
)

// VisionClient queries a multimodal model about a base64 encoded image
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	DetectObjects(ctx context.Context, model, prompt, imgB64 string) (*types.DetectionResult, error)
}
