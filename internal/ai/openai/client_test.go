package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/qpg-app/qpg/internal/ai"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-key", "gpt-4o-mini", "https://api.openai.com/v1/", 0, nil)

	if client == nil {
		t.Fatal("NewClient returned nil")
	}
	if client.apiKey != "test-key" {
		t.Errorf("Expected apiKey 'test-key', got '%s'", client.apiKey)
	}
	if client.baseURL != "https://api.openai.com/v1" {
		t.Errorf("Expected trailing slash trimmed, got '%s'", client.baseURL)
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout, got %v", client.httpClient.Timeout)
	}
}

func TestChat(t *testing.T) {
	var got struct {
		Model    string       `json:"model"`
		Messages []ai.Message `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"message\":\"ok\",\"command\":\"\"}"}}]}`))
	}))
	defer srv.Close()

	client := NewClient("key", "model-x", srv.URL, time.Second, nil)
	reply, err := client.Chat(context.Background(), []ai.Message{
		{Role: ai.RoleSystem, Content: "preamble"},
		{Role: ai.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != `{"message":"ok","command":""}` {
		t.Errorf("Unexpected reply %q", reply)
	}
	if got.Model != "model-x" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("Unexpected request: %+v", got)
	}
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }},
		{"no choices", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"choices":[]}`)) }},
		{"bad body", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`not json`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewClient("key", "model", srv.URL, time.Second, nil)
			if _, err := client.Chat(context.Background(), nil); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
