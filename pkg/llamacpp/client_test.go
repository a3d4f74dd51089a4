package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, status int, content any, seen *ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != completionsPath {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if seen != nil {
			json.NewDecoder(r.Body).Decode(seen)
		}
		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectObjects(t *testing.T) {
	var req ChatCompletionRequest
	srv := completionServer(t, http.StatusOK, `{"objects":[{"label":"car","confidence":0.7,"box":{"x":0,"y":0,"w":1,"h":1}}]}`, &req)
	c := NewClient(srv.URL+"/", nil)

	result, err := c.DetectObjects(context.Background(), "qwen", "find", "QUJD")
	if err != nil {
		t.Fatalf("DetectObjects failed: %v", err)
	}
	if len(result.Objects) != 1 || result.Objects[0].Label != "car" {
		t.Errorf("Unexpected result %+v", result)
	}

	parts, ok := req.Messages[0].Content.([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %v", req.Messages[0].Content)
	}
	image := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(image, "data:image/jpeg;base64,QUJD") {
		t.Errorf("Unexpected image url %s", image)
	}
}

func TestSimpleQueryContentParts(t *testing.T) {
	srv := completionServer(t, http.StatusOK, []any{map[string]any{"type": "text", "text": "a car"}}, nil)
	c := NewClient(srv.URL, nil)

	got, err := c.SimpleQuery(context.Background(), "qwen", "describe", "")
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if got != "a car" {
		t.Errorf("Expected 'a car', got %q", got)
	}
}

func TestServerError(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, nil, nil)
	c := NewClient(srv.URL, nil)

	_, err := c.DetectObjects(context.Background(), "qwen", "find", "")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestEmptyContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "", nil)
	c := NewClient(srv.URL, nil)

	if _, err := c.SimpleQuery(context.Background(), "qwen", "describe", ""); err == nil {
		t.Error("Expected error for empty content")
	}
}

func TestDefaultURL(t *testing.T) {
	if c := NewClient("", nil); c.baseURL != DefaultURL {
		t.Errorf("Expected %s, got %s", DefaultURL, c.baseURL)
	}
}
