// Package client talks to the participant API on behalf of one participant.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vytor/assessment/internal/autosave"
	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/payload"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	language   string

	mu            sync.RWMutex
	token         string
	participantID string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAcceptLanguage sets the Accept-Language sent at login.
func WithAcceptLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type LoginResponse struct {
	Profile     models.Participant `json:"profile"`
	HasProgress bool               `json:"has_progress"`
	Language    models.Language    `json:"language"`
	Token       string             `json:"token"`
}

type CatalogResponse struct {
	Sections  []string           `json:"sections"`
	Questions []catalog.Question `json:"questions"`
	Total     int                `json:"total"`
}

// Answer is one recordAnswer call.
type Answer struct {
	QuestionID     int     `json:"question_id"`
	Section        string  `json:"section"`
	Answer         string  `json:"answer"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	CurrentIndex   int     `json:"current_index"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	log := logger.FromContext(ctx).WithPrefix("client").WithField("path", path)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		log.Error("failed to create request: %v", err)
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("request failed: %v", err)
		return err
	}
	defer resp.Body.Close()
	log.Debug("response received in %v, status=%d", time.Since(start), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Error("failed to decode response: %v", err)
		return err
	}
	return nil
}

func (c *Client) participantPath(suffix string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return "/api/participants/" + url.PathEscape(c.participantID) + suffix
}

// Login authenticates and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, participantID, pin string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"participant_id": participantID,
		"pin":            pin,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = out.Token
	c.participantID = out.Profile.ID
	c.mu.Unlock()
	return &out, nil
}

func (c *Client) Catalog(ctx context.Context) (*CatalogResponse, error) {
	var out CatalogResponse
	if err := c.do(ctx, http.MethodGet, "/api/catalog", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) State(ctx context.Context) (*models.FullState, error) {
	var out models.FullState
	if err := c.do(ctx, http.MethodGet, c.participantPath("/state"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartSession(ctx context.Context) (*models.Session, error) {
	var out models.Session
	if err := c.do(ctx, http.MethodPost, c.participantPath("/session"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetLanguage(ctx context.Context, lang models.Language) error {
	return c.do(ctx, http.MethodPut, c.participantPath("/language"), map[string]models.Language{"language": lang}, nil)
}

// RecordAnswer reports whether the server stored the answer.
func (c *Client) RecordAnswer(ctx context.Context, a Answer) (bool, error) {
	var out struct {
		Saved bool `json:"saved"`
	}
	if err := c.do(ctx, http.MethodPost, c.participantPath("/answers"), a, &out); err != nil {
		return false, err
	}
	return out.Saved, nil
}

func (c *Client) LogEvent(ctx context.Context, kind models.EventKind) error {
	return c.do(ctx, http.MethodPost, c.participantPath("/events"), map[string]models.EventKind{"kind": kind}, nil)
}

func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.participantPath("/heartbeat"), nil, nil)
}

func (c *Client) Complete(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.participantPath("/complete"), nil, nil)
}

// SaveFunc adapts RecordAnswer to the autosave contract.
func (c *Client) SaveFunc() autosave.SaveFunc {
	return func(ctx context.Context, snap autosave.Snapshot) error {
		_, err := c.RecordAnswer(ctx, Answer{
			QuestionID:     snap.QuestionID,
			Section:        snap.Section,
			Answer:         payload.Encode(snap.Value),
			ElapsedSeconds: snap.ElapsedSeconds,
			CurrentIndex:   snap.Index,
		})
		return err
	}
}

// KeepAlive sends a heartbeat every interval until ctx is done. Failures are
// logged and ignored.
func (c *Client) KeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Heartbeat(ctx); err != nil {
				logger.FromContext(ctx).WithPrefix("client").Debug("heartbeat failed: %v", err)
			}
		}
	}
}
