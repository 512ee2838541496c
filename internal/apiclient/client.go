// Package apiclient is a typed client for the irrigation backend HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"smart_irrigation/internal/apperr"
	"smart_irrigation/internal/logger"
	"smart_irrigation/internal/models"
)

const (
	LatestPath     = "/api/data/latest"
	HistoryPath    = "/api/data/history"
	WeatherPath    = "/api/weather/latest"
	CommandPath    = "/api/command"
	CommandLogPath = "/api/command/log"

	// RequestIDHeader carries the caller's request stamp.
	RequestIDHeader = "X-Request-ID"

	maxReplySize = 4 << 20
)

// Client talks to one backend. The session credential is attached by the
// transport the client was built with, not by Client itself.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// New builds a client for baseURL. transport is normally the session
// manager's bearer transport; nil uses http.DefaultTransport.
func New(baseURL string, transport http.RoundTripper, timeout time.Duration, log *logger.Logger) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: timeout},
		log:     logger.OrNop(log),
	}
}

type requestIDKey struct{}

// WithRequestID stamps every request issued under ctx with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the stamp carried by ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Latest fetches the newest device snapshot.
func (c *Client) Latest(ctx context.Context) (models.DeviceSnapshot, error) {
	var snap models.DeviceSnapshot
	err := c.do(ctx, http.MethodGet, LatestPath, nil, &snap)
	return snap, err
}

// History fetches the device history, ascending by timestamp. An empty or
// null body yields an empty, non-nil slice.
func (c *Client) History(ctx context.Context) ([]models.DeviceSnapshot, error) {
	var out []models.DeviceSnapshot
	if err := c.do(ctx, http.MethodGet, HistoryPath, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.DeviceSnapshot{}
	}
	return out, nil
}

// Weather fetches the current weather.
func (c *Client) Weather(ctx context.Context) (models.WeatherSnapshot, error) {
	var w models.WeatherSnapshot
	err := c.do(ctx, http.MethodGet, WeatherPath, nil, &w)
	return w, err
}

// SendCommand posts a pump command. A 2xx reply with success=false is
// returned as a result, not an error.
func (c *Client) SendCommand(ctx context.Context, action models.CommandAction) (models.CommandResult, error) {
	if !action.Valid() {
		return models.CommandResult{}, fmt.Errorf("%w: unknown action %q", apperr.ErrValidation, action)
	}
	var res models.CommandResult
	err := c.do(ctx, http.MethodPost, CommandPath, models.CommandRequest{Action: action}, &res)
	return res, err
}

// LogQuery narrows the pump command log. Zero fields are left out of the
// query.
type LogQuery struct {
	From   time.Time
	To     time.Time
	Action models.CommandAction
}

// CommandLog fetches the pump command log within [q.From, q.To].
func (c *Client) CommandLog(ctx context.Context, q LogQuery) ([]models.PumpEvent, error) {
	v := url.Values{}
	if !q.From.IsZero() {
		v.Set("from", q.From.UTC().Format(time.RFC3339Nano))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.UTC().Format(time.RFC3339Nano))
	}
	if q.Action != "" {
		v.Set("action", string(q.Action))
	}
	path := CommandLogPath
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var out []models.PumpEvent
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.PumpEvent{}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := RequestID(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &apperr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return &apperr.NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &apperr.StatusError{Code: resp.StatusCode, Message: replyMessage(data)}
		c.log.Debugw("api_status_error", "op", op, "status", resp.StatusCode, "request_id", RequestID(ctx))
		return serr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

// replyMessage extracts {"message"} or {"error"} from an error body.
func replyMessage(data []byte) string {
	var reply struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return ""
	}
	if reply.Message != "" {
		return reply.Message
	}
	return reply.Error
}
