package metha

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Communicator issues a verb+parameters request against a remote OAI-PMH
// repository and returns a parsed response tree, or a TransportError if the
// request could not be completed or the body could not be parsed as XML.
// Communicator never inspects a well-formed response's <error> child; that
// is the Harvester's job.
type Communicator interface {
	Request(verb Verb, params Params) (*ResponseEnvelope, error)
}

// Client is the default Communicator: an HTTP GET transport with optional
// basic auth, on top of encoding/xml unmarshaling.
type Client struct {
	BaseURL  string
	Username string
	Password string

	httpClient *http.Client
	maxRetries int
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithTimeout bounds every HTTP round trip. The Harvester itself imposes no
// timeout of its own; that is purely a transport-layer concern.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxIdempotentRetries bounds how many times the transport retries a
// failed attempt (connection failure, non-success status, or unparsable
// body) before surfacing a TransportError. OAI-PMH GETs are idempotent, so a
// small retry budget at this layer is safe; it is separate from the driver,
// which never retries. The default budget is zero.
func WithMaxIdempotentRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient builds a Client for the given repository base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request implements Communicator.
func (c *Client) Request(verb Verb, params Params) (*ResponseEnvelope, error) {
	reqURL, err := c.buildURL(verb, params)
	if err != nil {
		return nil, &TransportError{Verb: string(verb), Err: err}
	}

	var lastErr error
	attempts := c.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		env, err := c.doOnce(reqURL)
		if err == nil {
			return env, nil
		}
		lastErr = err
		if attempt < attempts-1 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	return nil, &TransportError{Verb: string(verb), Err: lastErr}
}

func (c *Client) doOnce(reqURL string) (*ResponseEnvelope, error) {
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if c.Username != "" || c.Password != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env ResponseEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}
	if env.Identify.Granularity != "" || env.Identify.EarliestDatestamp != "" || env.Identify.RepositoryName != "" {
		env.Identify.ResponseDate = env.ResponseDate
	}
	return &env, nil
}

func (c *Client) buildURL(verb Verb, params Params) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("verb", string(verb))
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PrependSchema prepends http:// to a bare host:path base URL, if missing.
func PrependSchema(s string) string {
	if !strings.HasPrefix(s, "http") {
		return fmt.Sprintf("http://%s", s)
	}
	return s
}
