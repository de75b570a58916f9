// Package probe provides the shared HTTP helpers every check uses to talk
// to the target (C4). There is a single client per process; no automatic
// retries are performed here — retry policy, if any, is the check's job.
package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorClass classifies a transport failure (§4.3).
type ErrorClass string

const (
	ErrorClassDNS      ErrorClass = "dns"
	ErrorClassConnect  ErrorClass = "connect"
	ErrorClassTLS      ErrorClass = "tls"
	ErrorClassTimeout  ErrorClass = "timeout"
	ErrorClassReset    ErrorClass = "reset"
	ErrorClassProtocol ErrorClass = "protocol"
	ErrorClassOther    ErrorClass = "other"
)

// Response is the result of a timed GET/POST (§4.3).
type Response struct {
	StatusCode     int
	Header         http.Header
	Body           []byte
	ElapsedMS      int64
	TransportError error
}

// Client is the shared, per-process HTTP client used by every check.
type Client struct {
	http      *http.Client
	userAgent string
}

// Options configures the shared client.
type Options struct {
	DefaultTimeout  time.Duration
	FollowRedirects bool
	UserAgent       string
}

// NewClient builds the shared client (C4). Redirects are not followed
// unless explicitly enabled, matching §4.3.
func NewClient(opts Options) *Client {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "veris-sentinel/1.0"
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.DefaultTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   opts.DefaultTimeout,
		ResponseHeaderTimeout: opts.DefaultTimeout,
	}
	hc := &http.Client{
		Transport: transport,
		Timeout:   opts.DefaultTimeout,
	}
	if !opts.FollowRedirects {
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &Client{http: hc, userAgent: opts.UserAgent}
}

// TimedGet issues a GET against baseURL+path, honoring timeout, and
// returns the elapsed time regardless of success (§4.3).
func (c *Client) TimedGet(ctx context.Context, url string, timeout time.Duration, headers map[string]string) Response {
	return c.timedDo(ctx, http.MethodGet, url, nil, timeout, headers)
}

// TimedPost issues a POST with a JSON body against url (§4.3).
func (c *Client) TimedPost(ctx context.Context, url string, body any, timeout time.Duration, headers map[string]string) Response {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Response{TransportError: err}
		}
		reader = bytes.NewReader(b)
	}
	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return c.timedDo(ctx, http.MethodPost, url, reader, timeout, headers)
}

func (c *Client) timedDo(ctx context.Context, method, url string, body io.Reader, timeout time.Duration, headers map[string]string) Response {
	if timeout <= 0 {
		timeout = c.http.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Response{TransportError: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return Response{ElapsedMS: elapsed, TransportError: err}
	}
	defer resp.Body.Close()
	b, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return Response{StatusCode: resp.StatusCode, Header: resp.Header, ElapsedMS: elapsed, TransportError: readErr}
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b, ElapsedMS: elapsed}
}

// ParseJSON decodes body into v.
func ParseJSON(body []byte, v any) error {
	if len(body) == 0 {
		return errors.New("probe: empty body")
	}
	return json.Unmarshal(body, v)
}

// ClassifyError maps a transport error into one of the classes in §4.3.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorClassDNS
	}
	var tlsErr *tls.RecordHeaderError
	if errors.As(err, &tlsErr) {
		return ErrorClassTLS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return ErrorClassConnect
		}
		if isResetError(opErr.Err) {
			return ErrorClassReset
		}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ErrorClassProtocol
	}
	return ErrorClassOther
}

func isResetError(err error) bool {
	return err != nil && (errors.Is(err, net.ErrClosed) || containsResetString(err.Error()))
}

func containsResetString(s string) bool {
	for _, needle := range []string{"connection reset", "broken pipe", "reset by peer"} {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
