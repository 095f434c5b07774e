// Package insurer talks to the insurer's FHIR API: patient lookup,
// eligibility, claim submission and claim listing.
package insurer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const fhirJSON = "application/fhir+json"

// ErrPatientNotFound is returned when the insurer has no patient for an
// identifier.
var ErrPatientNotFound = errors.New("patient not found at insurer")

// StatusError is an unexpected HTTP status from the insurer.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("insurer %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Username   string
	Password   string
	RemoteUser string
	Timeout    time.Duration
	RetryMax   int
}

// Client is a FHIR client with retries on transport errors and 5xx.
type Client struct {
	base string
	opts Options
	http *retryablehttp.Client
	log  zerolog.Logger
}

// New returns a Client for opts.BaseURL.
func New(opts Options, log zerolog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{log: log}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	return &Client{
		base: strings.TrimRight(opts.BaseURL, "/"),
		opts: opts,
		http: rc,
		log:  log,
	}
}

// PatientByIdentifier looks up the patient bundle for an insurance number.
func (c *Client) PatientByIdentifier(ctx context.Context, identifier string) (*Bundle, error) {
	var b Bundle
	status, err := c.do(ctx, http.MethodGet, "/Patient/?identifier="+url.QueryEscape(identifier), nil, &b)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	if b.Total == 0 || len(b.Entry) == 0 || b.Entry[0].Resource.ID == "" {
		return nil, ErrPatientNotFound
	}
	return &b, nil
}

// Eligibility requests the benefit position of a patient by insurer UUID.
func (c *Client) Eligibility(ctx context.Context, patientUUID string) (*Eligibility, error) {
	body := map[string]any{
		"resourceType": "EligibilityRequest",
		"patient":      Reference{Reference: "Patient/" + patientUUID},
	}
	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodPost, "/EligibilityRequest/", body, &raw); err != nil {
		return nil, err
	}
	return ParseEligibility(raw)
}

// SubmitClaim posts a FHIR Claim and returns the insurer's response.
func (c *Client) SubmitClaim(ctx context.Context, claim *Claim) (*ClaimResponse, error) {
	var resp ClaimResponse
	if _, err := c.do(ctx, http.MethodPost, "/Claim/", claim, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListOptions filters ListClaims.
type ListOptions struct {
	Page              int
	PageSize          int
	Status            string
	PatientIdentifier string
}

// ListClaims returns one page of the insurer's claim bundle.
func (c *Client) ListClaims(ctx context.Context, opts ListOptions) (json.RawMessage, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	q := url.Values{}
	q.Set("_count", strconv.Itoa(opts.PageSize))
	q.Set("_page", strconv.Itoa(opts.Page))
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.PatientIdentifier != "" {
		q.Set("patient.identifier", opts.PatientIdentifier)
	}
	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, "/Claim/?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", fhirJSON)
	if in != nil {
		req.Header.Set("Content-Type", fhirJSON)
	}
	if c.opts.Username != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}
	if c.opts.RemoteUser != "" {
		req.Header.Set("remote-user", c.opts.RemoteUser)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("insurer %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("insurer request")

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return resp.StatusCode, &StatusError{Op: method + " " + path, StatusCode: resp.StatusCode, Body: truncate(string(payload), 512)}
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.event(l.log.Error(), msg, kv) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.event(l.log.Warn(), msg, kv) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.event(l.log.Debug(), msg, kv) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.event(l.log.Debug(), msg, kv) }

func (l leveledLogger) event(e *zerolog.Event, msg string, kv []any) {
	e.Fields(kv).Msg(msg)
}

var _ retryablehttp.LeveledLogger = leveledLogger{}
