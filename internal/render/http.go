package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPRenderer talks to the external render engine over its REST API. The
// engine consumes a resolved, filtered query and returns the finished
// artifact bytes.
type HTTPRenderer struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewHTTPRenderer creates a renderer client.
func NewHTTPRenderer(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPRenderer {
	return &HTTPRenderer{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Render submits the input and returns the produced artifact.
func (r *HTTPRenderer) Render(ctx context.Context, input Input) (*Artifact, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer returned status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered artifact: %w", err)
	}

	name := resp.Header.Get("X-Artifact-Name")
	if name == "" {
		name = "out.mp4"
	}

	r.log.Info("Rendered artifact",
		zap.String("name", name),
		zap.Int("bytes", len(content)))

	return &Artifact{Name: name, Content: content}, nil
}
