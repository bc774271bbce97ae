package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const ImgurUploadURL = "https://api.imgur.com/3/image"

type ImgurClient struct {
	clientID   string
	endpoint   string
	httpClient *http.Client
}

func NewImgurClient(clientID string) *ImgurClient {
	return &ImgurClient{
		clientID: clientID,
		endpoint: ImgurUploadURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type imgurResponse struct {
	Success bool      `json:"success"`
	Status  int       `json:"status"`
	Data    imgurData `json:"data"`
}

type imgurData struct {
	ID         string          `json:"id"`
	Link       string          `json:"link"`
	DeleteHash string          `json:"deletehash"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Size       int64           `json:"size"`
	Error      json.RawMessage `json:"error,omitempty"`
}

// errorMessage extracts the host's error text, which Imgur sends either as a
// plain string or as an object with a message field.
func (d imgurData) errorMessage() string {
	if len(d.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(d.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(d.Error)
}

func (c *ImgurClient) Publish(ctx context.Context, imagePath string, meta Metadata) (*HostedImage, error) {
	data, err := readImage(imagePath, MaxImageSize)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(data))
	form.Set("type", "base64")
	if meta.Title != "" {
		form.Set("title", meta.Title)
	}
	if meta.Description != "" {
		form.Set("description", meta.Description)
	}
	if meta.Album != "" {
		form.Set("album", meta.Album)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Client-ID "+c.clientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result imgurResponse
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil {
			if m := result.Data.errorMessage(); m != "" {
				msg = m
			}
		}
		return nil, &HostError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if !result.Success {
		return nil, &HostError{StatusCode: result.Status, Message: result.Data.errorMessage()}
	}
	if result.Data.Link == "" {
		return nil, fmt.Errorf("%w: data.link", ErrMissingField)
	}

	log.Info().
		Str("link", result.Data.Link).
		Str("id", result.Data.ID).
		Msg("Image uploaded to Imgur")

	return &HostedImage{
		Link:       result.Data.Link,
		ID:         result.Data.ID,
		DeleteHash: result.Data.DeleteHash,
		Width:      result.Data.Width,
		Height:     result.Data.Height,
		Size:       result.Data.Size,
	}, nil
}
