// Package api is a thin client for the Slack Web API.
//
// Every method is a form-encoded POST to <base URL><method>. The client is stateless
// apart from its configuration and is meant to be built once and shared.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/pkg/constants"
	"github.com/sirupsen/logrus"
)

// Args are the arguments of one Web API call. Nil values are omitted; maps, slices
// and structs are sent JSON-encoded.
type Args map[string]any

// Client calls Slack Web API methods
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	formatting Formatting
	defaults   Args
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL (tests, proxies)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithFormatting sets the message formatting flags sent with chat.postMessage
func WithFormatting(f Formatting) Option {
	return func(c *Client) { c.formatting = f }
}

// WithPostDefaults sets extra arguments merged into every chat.postMessage call
func WithPostDefaults(args Args) Option {
	return func(c *Client) { c.defaults = args }
}

// New creates a client authenticated with token
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    constants.DefaultAPIURL,
		httpClient: &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Call invokes method and returns the raw JSON body of a successful response
func (c *Client) Call(ctx context.Context, method string, args Args) (json.RawMessage, error) {
	form, err := encodeArgs(args)
	if err != nil {
		return nil, fmt.Errorf("slack API call to %s: %w", method, err)
	}
	form.Set("token", c.token)

	logger.WithField("method", method).Debug("calling-slack-api")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("slack API call to %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack API call to %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("slack API call to %s: failed to read response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.WithFields(logrus.Fields{
			"method": method,
			"status": resp.StatusCode,
		}).Warn("slack-api-http-error")
		return nil, &HTTPError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Header:     resp.Header.Clone(),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("slack API call to %s: invalid JSON response: %w", method, err)
	}
	if !env.OK || env.Error != "" {
		code := env.Error
		if code == "" {
			code = "unknown_error"
		}
		return nil, &APIError{Method: method, Code: code}
	}

	return body, nil
}

// callInto calls method and decodes the response into out
func (c *Client) callInto(ctx context.Context, method string, args Args, out any) error {
	body, err := c.Call(ctx, method, args)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("slack API call to %s: failed to decode response: %w", method, err)
	}
	return nil
}

func encodeArgs(args Args) (url.Values, error) {
	form := url.Values{}
	for key, value := range args {
		encoded, ok, err := encodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", key, err)
		}
		if ok {
			form.Set(key, encoded)
		}
	}
	return form, nil
}

// encodeValue reports ok=false for values that must not be sent at all
func encodeValue(value any) (string, bool, error) {
	if value == nil {
		return "", false, nil
	}
	switch v := value.(type) {
	case string:
		return v, true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	case int:
		return strconv.Itoa(v), true, nil
	case int64:
		return strconv.FormatInt(v, 10), true, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case json.RawMessage:
		return string(v), true, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "", false, nil
		}
		return encodeValue(rv.Elem().Interface())
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return "", false, nil
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}
