package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"posterforge/internal/pkg/errors"
	"posterforge/internal/poster"
)

// HTTPRenderer posts render requests to a renderer service that shares the
// output filesystem with the workers. The request context carries the
// per-job deadline, so no separate client timeout is set.
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRenderer(baseURL string) *HTTPRenderer {
	return &HTTPRenderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

type renderRequest struct {
	Spec       poster.Spec `json:"spec"`
	OutputPath string      `json:"output_path"`
}

func (c *HTTPRenderer) Render(ctx context.Context, spec poster.Spec, destPath string) error {
	body, err := json.Marshal(renderRequest{Spec: spec, OutputPath: destPath})
	if err != nil {
		return errors.Wrap(err, "renderer.http", "failed to encode render request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "renderer.http", "failed to build render request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.RenderFailed(err.Error())
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, stderrTail))
		reason := fmt.Sprintf("renderer http %d", res.StatusCode)
		if len(detail) > 0 {
			reason = reason + ": " + strings.TrimSpace(string(detail))
		}
		return errors.RenderFailed(reason)
	}
	return nil
}
