package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	openAIAPIURL = "https://api.openai.com/v1/chat/completions"
	openAIModel  = "gpt-4o"
)

// OpenAIClient captions images through the chat completions API, either on
// api.openai.com or on an Azure OpenAI deployment.
type OpenAIClient struct {
	endpoint   string
	model      string
	maxTokens  int
	authHeader string
	authValue  string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey, model string, maxTokens int) *OpenAIClient {
	if model == "" {
		model = openAIModel
	}
	return &OpenAIClient{
		endpoint:   openAIAPIURL,
		model:      model,
		maxTokens:  maxTokens,
		authHeader: "Authorization",
		authValue:  fmt.Sprintf("Bearer %s", apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewAzureOpenAIClient targets <endpoint>/openai/deployments/<deployment>.
// The deployment selects the model, so none is sent in the request.
func NewAzureOpenAIClient(endpoint, apiKey, deployment, apiVersion string, maxTokens int) *OpenAIClient {
	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(endpoint, "/"), url.PathEscape(deployment), url.QueryEscape(apiVersion))
	return &OpenAIClient{
		endpoint:   u,
		maxTokens:  maxTokens,
		authHeader: "api-key",
		authValue:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type openAIRequest struct {
	Model     string          `json:"model,omitempty"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) CaptionImage(ctx context.Context, imageURL string) (string, error) {
	reqBody := openAIRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openAIMessage{
			{
				Role:    "system",
				Content: []openAIContentPart{{Type: "text", Text: SystemPrompt}},
			},
			{
				Role: "user",
				Content: []openAIContentPart{
					{
						Type: "text",
						Text: CaptionPrompt,
					},
					{
						Type:     "image_url",
						ImageURL: &openAIImageURL{URL: imageURL},
					},
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(c.authHeader, c.authValue)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("OpenAI API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if openAIResp.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}

	if len(openAIResp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return openAIResp.Choices[0].Message.Content, nil
}
