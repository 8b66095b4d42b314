package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

const maxErrorBody = 512

// Client submits audio clips to a Shazam-compatible recognition endpoint. The
// endpoint accepts the raw audio bytes as the request body and answers with a
// discovery payload.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *log.Entry
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithFields(log.Fields{
			"module": "recognition",
		}),
	}
}

// Identify blocks until the service has answered for the clip at path. A
// response without a track is a successful Result with Found false.
func (c *Client) Identify(ctx context.Context, path string) (*Result, error) {
	span := sentry.StartSpan(ctx, "recognition.identify")
	span.Description = "Identify captured audio via recognition service"
	defer span.Finish()

	data, err := os.ReadFile(path)
	if err != nil {
		span.Status = sentry.SpanStatusInvalidArgument
		return nil, &RecognitionError{Err: fmt.Errorf("failed to read audio file: %w", err)}
	}

	resp, err := c.submit(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			span.Status = sentry.SpanStatusCanceled
			return nil, ctx.Err()
		}
		c.logger.Errorf("recognition request failed: %v", err)
		span.Status = sentry.SpanStatusInternalError
		return nil, &RecognitionError{Err: err}
	}

	result := resultFromResponse(resp)
	c.logger.WithField("found", result.Found).Debugf("recognition finished for %d bytes", len(data))

	span.Status = sentry.SpanStatusOK
	span.SetData("found", result.Found)
	return result, nil
}

func (c *Client) submit(ctx context.Context, data []byte) (*discoveryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "audio/mpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call recognition service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read recognition response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("recognition service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result discoveryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse recognition response: %w", err)
	}
	return &result, nil
}

func resultFromResponse(resp *discoveryResponse) *Result {
	if resp == nil || resp.Track == nil {
		return &Result{Found: false}
	}

	t := resp.Track
	return &Result{
		Found:  true,
		Title:  t.Title,
		Artist: t.Subtitle,
		Album:  albumFromSections(t.Sections),
	}
}

// albumFromSections reads the first metadata entry of the first section,
// which is where the song section usually lists the album. Any missing level
// yields nil.
func albumFromSections(sections []section) *string {
	if len(sections) == 0 || len(sections[0].Metadata) == 0 {
		return nil
	}
	return sections[0].Metadata[0].Text
}
