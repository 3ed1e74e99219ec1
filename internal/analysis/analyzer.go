// Package analysis submits snapshots to an external plant-health service.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Analyzer calls the configured plant-health API with a photo and returns
// its textual assessment.
type Analyzer struct {
	url    string
	apiKey string
	client *http.Client
	log    zerolog.Logger
}

func New(url, apiKey string, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 60 * time.Second},
		log:    log,
	}
}

type analyzeRequest struct {
	ImageBase64 string `json:"image_base64"`
	CapturedAt  string `json:"captured_at"`
}

type analyzeResponse struct {
	Summary string `json:"summary"`
}

// AnalyzePhoto uploads the image at path and returns the service's summary.
func (a *Analyzer) AnalyzePhoto(ctx context.Context, path string) (string, error) {
	if a.url == "" {
		return "", fmt.Errorf("analysis URL not configured")
	}

	img, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading photo: %w", err)
	}

	body, err := json.Marshal(analyzeRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(img),
		CapturedAt:  time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("analysis request: status %d: %s", resp.StatusCode, payload)
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding analysis response: %w", err)
	}
	return result.Summary, nil
}
