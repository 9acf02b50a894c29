// Package waha is a thin client for the external WAHA WhatsApp
// gateway. Every call is a single best-effort HTTP request; callers get
// a gateway error on transport failure or any non-2xx status.
package waha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/waconsole/waconsole/internal/apperr"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type Session struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type QRCode struct {
	Mimetype string `json:"mimetype"`
	Data     string `json:"data"` // base64 image payload
}

type SendResult struct {
	ID string `json:"id"`
}

func (c *Client) CreateSession(ctx context.Context, name string) (*Session, error) {
	body := map[string]interface{}{"name": name, "start": true}
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &s); err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = name
	}
	return &s, nil
}

func (c *Client) SessionStatus(ctx context.Context, name string) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+name, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) QRCode(ctx context.Context, session string) (*QRCode, error) {
	var qr QRCode
	err := c.do(ctx, http.MethodGet, "/api/"+session+"/auth/qr?format=image", nil, &qr)
	if err != nil {
		return nil, err
	}
	return &qr, nil
}

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

func (c *Client) SendText(ctx context.Context, session, chatID, text string) (*SendResult, error) {
	req := sendTextRequest{Session: session, ChatID: chatID, Text: text}
	var res SendResult
	if err := c.do(ctx, http.MethodPost, "/api/sendText", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) LogoutSession(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+name+"/logout", nil, nil)
}

func (c *Client) DeleteSession(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+name, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindGateway, "whatsapp gateway unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindGateway, "read gateway response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Newf(apperr.KindGateway,
			"whatsapp gateway returned %d: %s", resp.StatusCode, snippet(data))
	}

	if dest == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return apperr.Wrap(apperr.KindGateway, "decode gateway response", err)
	}
	return nil
}

func snippet(data []byte) string {
	const max = 200
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
