package suggest

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/llamacpp"
	"github.com/menta2k/image-annotator/pkg/ollama"
	"github.com/menta2k/image-annotator/pkg/saliency"
)

// Backend names accepted by NewClient
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendSaliency = "saliency"
)

// DefaultURL returns the usual local address of a backend
func DefaultURL(backend string) string {
	if backend == BackendLlamaCpp {
		return llamacpp.DefaultURL
	}
	return "http://localhost:11434"
}

// NewClient creates the vision client for backend, using its default URL when
// url is empty. The saliency backend runs locally and ignores url.
func NewClient(backend, url string, logger *zap.Logger) (client.VisionClient, error) {
	if url == "" {
		url = DefaultURL(backend)
	}
	switch backend {
	case BackendOllama:
		c, err := ollama.NewClient(url, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case BackendLlamaCpp:
		return llamacpp.NewClient(url, logger), nil
	case BackendSaliency:
		return saliency.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (use %q, %q or %q)", backend, BackendOllama, BackendLlamaCpp, BackendSaliency)
	}
}
