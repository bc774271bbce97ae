package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIClientCaptionImage(t *testing.T) {
	var got openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"A red mug"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", "", 300)
	client.endpoint = server.URL

	caption, err := client.CaptionImage(context.Background(), "https://i.imgur.com/abc.jpg")
	if err != nil {
		t.Fatalf("CaptionImage() error: %v", err)
	}
	if caption != "A red mug" {
		t.Errorf("caption = %q", caption)
	}

	if got.Model != openAIModel {
		t.Errorf("model = %q, want %q", got.Model, openAIModel)
	}
	if got.MaxTokens != 300 {
		t.Errorf("max_tokens = %d", got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[0].Content[0].Text != SystemPrompt {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	user := got.Messages[1]
	if len(user.Content) != 2 || user.Content[1].Type != "image_url" || user.Content[1].ImageURL.URL != "https://i.imgur.com/abc.jpg" {
		t.Errorf("image part not sent as URL: %+v", user.Content)
	}
}

func TestAzureOpenAIClientHeaders(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("api-key"); key != "azure-key" {
			t.Errorf("api-key = %q", key)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header should not be sent to Azure")
		}
		if !strings.HasSuffix(r.URL.Path, "/openai/deployments/NewOmni/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if v := r.URL.Query().Get("api-version"); v != "2023-12-01-preview" {
			t.Errorf("api-version = %q", v)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"choices":[{"message":{"content":"A cat"}}]}`))
	}))
	defer server.Close()

	client := NewAzureOpenAIClient(server.URL, "azure-key", "NewOmni", "2023-12-01-preview", 0)
	caption, err := client.CaptionImage(context.Background(), "https://example.com/x.jpg")
	if err != nil {
		t.Fatalf("CaptionImage() error: %v", err)
	}
	if caption != "A cat" {
		t.Errorf("caption = %q", caption)
	}
	if _, ok := body["model"]; ok {
		t.Error("model should be omitted for Azure deployments")
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("max_tokens should be omitted when zero")
	}
}

func TestOpenAIClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"Invalid API key","type":"auth"}}`, "Invalid API key"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no response"},
		{"non json error", http.StatusBadGateway, `bad gateway`, "status 502"},
		{"status without error body", http.StatusInternalServerError, `{}`, "status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOpenAIClient("k", "", 0)
			client.endpoint = server.URL

			_, err := client.CaptionImage(context.Background(), "https://example.com/x.jpg")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
