package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("Failed to decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "test",
			"message": map[string]any{"role": "assistant", "content": content},
			"done":    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientInvalidURL(t *testing.T) {
	if _, err := NewClient("not a url", nil); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}

func TestDetectObjects(t *testing.T) {
	var req map[string]any
	srv := newServer(t, "```json\n{\"objects\":[{\"label\":\"dog\",\"confidence\":0.8,\"box\":{\"x\":0.1,\"y\":0.1,\"w\":0.5,\"h\":0.5}}],}\n```", &req)

	c, err := NewClient(srv.URL+"/api/chat", nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	img := base64.StdEncoding.EncodeToString([]byte("fake"))
	result, err := c.DetectObjects(context.Background(), "minicpm-v4", "find", img)
	if err != nil {
		t.Fatalf("DetectObjects failed: %v", err)
	}
	if len(result.Objects) != 1 || result.Objects[0].Label != "dog" {
		t.Errorf("Unexpected result %+v", result)
	}

	if req["model"] != "minicpm-v4" {
		t.Errorf("Expected model in request, got %v", req["model"])
	}
	if opts, ok := req["options"].(map[string]any); !ok || opts["num_ctx"] != float64(4096) {
		t.Errorf("Expected minicpm options, got %v", req["options"])
	}
}

func TestDetectObjectsNonJSON(t *testing.T) {
	srv := newServer(t, "There is a dog.", nil)
	c, _ := NewClient(srv.URL, nil)

	result, err := c.DetectObjects(context.Background(), "llava", "find", "")
	if err != nil {
		t.Fatalf("Expected fallback, got error %v", err)
	}
	if len(result.Objects) != 0 {
		t.Errorf("Expected no objects, got %d", len(result.Objects))
	}
}

func TestSimpleQuery(t *testing.T) {
	srv := newServer(t, "A dog on grass.", nil)
	c, _ := NewClient(srv.URL, nil)

	got, err := c.SimpleQuery(context.Background(), "llava", "describe", "")
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if got != "A dog on grass." {
		t.Errorf("Expected response text, got %q", got)
	}
}

func TestInvalidBase64(t *testing.T) {
	c, _ := NewClient("http://127.0.0.1:1", nil)
	if _, err := c.SimpleQuery(context.Background(), "m", "p", "%%%"); err == nil {
		t.Error("Expected base64 error")
	}
}
