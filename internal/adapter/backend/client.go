// Package backend talks to the incident backend's HTTP API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/google/uuid"
)

// maxErrorBody caps how much of an error response is echoed into errors.
const maxErrorBody = 512

// Client implements livesync.Fetcher, wizard.Submitter, and dashboard.VerifySender.
type Client struct {
	baseURL      string
	mediaBaseURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a backend client. mediaBaseURL is the prefix uploaded
// evidence is served under.
func NewClient(baseURL, mediaBaseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		mediaBaseURL: mediaBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchIncidents returns the backend's full current incident set.
func (c *Client) FetchIncidents(ctx context.Context) ([]domain.Incident, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/incidents", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}

	var incidents []domain.Incident
	if err := json.NewDecoder(resp.Body).Decode(&incidents); err != nil {
		return nil, fmt.Errorf("decode incidents: %w", err)
	}
	if incidents == nil {
		// A JSON null is not a snapshot.
		return nil, fmt.Errorf("decode incidents: expected array")
	}
	return incidents, nil
}

// SubmitReport posts a new incident as multipart form data.
func (c *Client) SubmitReport(ctx context.Context, sub domain.Submission) error {
	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/report", body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	c.logger.Debug("report submitted", "request_id", requestID, "type", sub.Type, "severity", string(sub.Severity))
	return nil
}

// Verify asks the backend to mark an incident verified. The response body is
// not inspected.
func (c *Client) Verify(ctx context.Context, id domain.IncidentID) error {
	u := fmt.Sprintf("%s/api/verify/%s", c.baseURL, url.PathEscape(string(id)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("verify incident %s: %w", id, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("verify incident %s: %w", id, err)
	}
	return nil
}

// MediaURL resolves an incident's image_url against the media base path.
// It returns "" when the incident has no evidence.
func (c *Client) MediaURL(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	return c.mediaBaseURL + "/" + url.PathEscape(imageURL)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("backend error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}

// encodeSubmission builds the multipart body. latitude and longitude are sent
// as plain decimal strings.
func encodeSubmission(sub domain.Submission) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"type", sub.Type},
		{"latitude", strconv.FormatFloat(sub.Latitude, 'f', -1, 64)},
		{"longitude", strconv.FormatFloat(sub.Longitude, 'f', -1, 64)},
		{"severity", string(sub.Severity)},
		{"location", sub.Location},
	}
	if sub.Description != "" {
		fields = append(fields, struct{ name, value string }{"description", sub.Description})
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if ev := sub.Evidence; ev != nil && len(ev.Data) > 0 {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, ev.Filename))
		ct := ev.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(ev.Data); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
