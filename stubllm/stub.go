package stubllm

import (
	"context"
	"encoding/json"
)

// Client is a deterministic, no-network vision model stub intended for CI and
// local end-to-end tests. It returns schema-valid JSON so downstream parsing
// and DB writes exercise the full pipeline.
type Client struct {
	// Anomaly controls the verdict returned by AnalyzeImage.
	Anomaly bool
	// Reason is the verdict text; defaults to a fixed string when empty.
	Reason string
	// Err, when set, is returned instead of a response.
	Err error
}

func NewClient() *Client { return &Client{} }

func (c *Client) SourceName() string { return "Stub" }

func (c *Client) AnalyzeImage(ctx context.Context, imageData []byte, instruction string) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}

	reason := c.Reason
	if reason == "" {
		reason = "nothing unusual in view"
	}

	b, err := json.Marshal(map[string]any{
		"is_anomaly": c.Anomaly,
		"reason":     reason,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
