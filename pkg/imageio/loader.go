// Package imageio loads images from files and URLs and encodes them for
// export and for vision model backends.
package imageio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Image-Annotator/1.0"
	// DefaultMaxBytes caps downloaded image bodies
	DefaultMaxBytes = 64 << 20
)

// ErrUnknownFormat is returned when no registered decoder accepts the data
var ErrUnknownFormat = errors.New("image: unknown or unsupported format")

// LoadError reports a failed image load. The message includes the source.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader resolves local paths and http(s) URLs to decoded images
type Loader struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    *zap.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithHTTPClient replaces the HTTP client used for URLs
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithUserAgent sets the User-Agent header for URL requests
func WithUserAgent(ua string) LoaderOption {
	return func(l *Loader) { l.userAgent = ua }
}

// WithMaxBytes caps the size of downloaded images
func WithMaxBytes(n int64) LoaderOption {
	return func(l *Loader) { l.maxBytes = n }
}

// WithLogger sets the loader's logger
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a new image loader
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		maxBytes:  DefaultMaxBytes,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads an image from either a file path or an http(s) URL. Failures
// are returned as *LoadError.
func (l *Loader) Load(ctx context.Context, source string) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	if IsURL(source) {
		img, err = l.loadURL(ctx, source)
	} else {
		img, err = l.loadFile(source)
	}
	if err != nil {
		l.logger.Warn("Image load failed", zap.String("source", source), zap.Error(err))
		return nil, &LoadError{Source: source, Err: err}
	}

	b := img.Bounds()
	l.logger.Debug("Image loaded",
		zap.String("source", source),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()))
	return img, nil
}

// IsURL reports whether source is an http or https URL
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (l *Loader) loadURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("image larger than %d bytes", l.maxBytes)
	}

	return Decode(data)
}

func (l *Loader) loadFile(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode decodes image bytes with the registered decoders, falling back to
// the cgo WebP decoder for variants x/image cannot read.
func Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, ErrUnknownFormat
}
