package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllamaClient(srv.URL+"/", "nomic-embed-text", time.Second)
}

func TestOllamaClient_Embed(t *testing.T) {
	var got embeddingsRequest
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	})

	vec, err := c.Embed(context.Background(), "hello notes")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("Embed() = %v", vec)
	}
	if got.Model != "nomic-embed-text" || got.Prompt != "hello notes" {
		t.Errorf("request body = %+v", got)
	}
}

func TestOllamaClient_EmbedFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad status", http.StatusInternalServerError, `{"error":"boom"}`, ErrBadStatus},
		{"missing field", http.StatusOK, `{"vector":[1,2]}`, ErrMalformedResponse},
		{"not numbers", http.StatusOK, `{"embedding":["a","b"]}`, ErrMalformedResponse},
		{"not an array", http.StatusOK, `{"embedding":42}`, ErrMalformedResponse},
		{"empty array", http.StatusOK, `{"embedding":[]}`, ErrMalformedResponse},
		{"not json", http.StatusOK, `<html>`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			vec, err := c.Embed(context.Background(), "x")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if vec != nil {
				t.Errorf("expected nil vector, got %v", vec)
			}
		})
	}
}

func TestOllamaClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewOllamaClient(url, "m", time.Second)
	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Embed err = %v, want ErrServiceUnavailable", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Ping err = %v, want ErrServiceUnavailable", err)
	}
}

func TestOllamaClient_PingAndModels(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/version":
			_, _ = w.Write([]byte(`{"version":"0.1.32"}`))
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"},{"model":"llama3:8b"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	models, err := c.Models(context.Background())
	if err != nil {
		t.Fatalf("Models: %v", err)
	}
	if len(models) != 2 || models[0] != "nomic-embed-text:latest" || models[1] != "llama3:8b" {
		t.Errorf("Models() = %v", models)
	}
}

func TestOllamaClient_Configure(t *testing.T) {
	c := NewOllamaClient("http://a:1", "m1", 0)
	c.Configure("http://b:2/", "m2")
	if c.BaseURL() != "http://b:2" || c.Model() != "m2" {
		t.Errorf("after Configure: %s %s", c.BaseURL(), c.Model())
	}
}
