// Package extract calls the document text-extraction service that turns an
// uploaded CV into draft suggestions.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if a service URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Extract uploads the document and returns the suggested draft items.
func (c *Client) Extract(ctx context.Context, filename, contentType string, data []byte) (*model.DraftPayload, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("extraction client not configured: missing url")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract/profile", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extraction service error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out model.DraftPayload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	return prune(&out), nil
}

// prune drops suggestions that would fail draft validation.
func prune(p *model.DraftPayload) *model.DraftPayload {
	out := &model.DraftPayload{
		Experiences: []model.Experience{},
		Educations:  []model.Education{},
		Skills:      []model.Skill{},
	}
	for _, v := range p.Experiences {
		if v.Validate() == nil {
			out.Experiences = append(out.Experiences, v)
		}
	}
	for _, v := range p.Educations {
		if v.Validate() == nil {
			out.Educations = append(out.Educations, v)
		}
	}
	for _, v := range p.Skills {
		if v.Validate() == nil {
			out.Skills = append(out.Skills, v)
		}
	}
	return out
}
