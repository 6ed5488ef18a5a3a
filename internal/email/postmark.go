package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type PostmarkClient struct {
	serverToken string
	fromEmail   string
	endpoint    string
	httpClient  *http.Client
}

type Option func(*PostmarkClient)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *PostmarkClient) {
		cl.httpClient = c
	}
}

func WithEndpoint(url string) Option {
	return func(cl *PostmarkClient) {
		cl.endpoint = url
	}
}

func NewPostmarkClient(serverToken, fromEmail string, opts ...Option) *PostmarkClient {
	c := &PostmarkClient{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		endpoint:    postmarkURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *PostmarkClient) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

func (c *PostmarkClient) Send(ctx context.Context, msg Message) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	body, err := json.Marshal(postmarkEmail{
		From:          c.fromEmail,
		To:            msg.To,
		Subject:       msg.Subject,
		HtmlBody:      msg.HTMLBody,
		TextBody:      msg.TextBody,
		MessageStream: "outbound",
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var pe struct {
			ErrorCode int    `json:"ErrorCode"`
			Message   string `json:"Message"`
		}
		json.NewDecoder(resp.Body).Decode(&pe)
		return fmt.Errorf("postmark API error: status %d: %s", resp.StatusCode, pe.Message)
	}
	return nil
}
