package endpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tbxark/actionblock/types"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 1 << 20

// Client calls the backend function endpoints over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	schemas map[string]*jsonschema.Schema
}

var _ Backend = (*Client)(nil)

type clientOptions struct {
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	rps        float64
	burst      int
}

type ClientOption func(*clientOptions)

func WithAPIKey(key string) ClientOption {
	return func(o *clientOptions) {
		o.apiKey = key
	}
}

func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithRateLimit caps outgoing calls per second. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(o *clientOptions) {
		o.rps = rps
		o.burst = burst
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("missing backend base url")
	}
	options := clientOptions{
		timeout: 15 * time.Second,
		rps:     5,
		burst:   5,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if options.rps > 0 {
		if options.burst <= 0 {
			options.burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.rps), options.burst)
	}
	schemas := make(map[string]*jsonschema.Schema, len(descriptors))
	for name, d := range descriptors {
		schema, err := d.compileResponse()
		if err != nil {
			return nil, err
		}
		schemas[name] = schema
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  options.apiKey,
		http:    httpClient,
		limiter: limiter,
		schemas: schemas,
	}, nil
}

func (c *Client) call(ctx context.Context, name string, req, resp any) error {
	d, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("unknown endpoint %q", name)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &types.ActionError{Kind: types.KindNetwork, Endpoint: name, Err: err}
	}
	body, err := sonic.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, d.Method, c.baseURL+d.Path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	slog.Debug("Calling backend", "endpoint", name)
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return &types.ActionError{Kind: types.KindNetwork, Endpoint: name, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return &types.ActionError{Kind: types.KindNetwork, Endpoint: name, Status: httpResp.StatusCode, Err: err}
	}
	if httpResp.StatusCode >= http.StatusInternalServerError {
		return &types.ActionError{Kind: types.KindUnavailable, Endpoint: name, Status: httpResp.StatusCode}
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return &types.ActionError{
			Kind:     types.KindRejected,
			Endpoint: name,
			Status:   httpResp.StatusCode,
			Message:  backendMessage(raw),
		}
	}
	if resp == nil {
		return nil
	}

	var doc any
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return &types.ActionError{Kind: types.KindRejected, Endpoint: name, Status: httpResp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if schema := c.schemas[name]; schema != nil {
		if err := schema.Validate(doc); err != nil {
			slog.Warn("Backend response failed schema", "endpoint", name, "error", err)
			return &types.ActionError{Kind: types.KindRejected, Endpoint: name, Status: httpResp.StatusCode, Err: err}
		}
	}
	if err := sonic.Unmarshal(raw, resp); err != nil {
		return &types.ActionError{Kind: types.KindRejected, Endpoint: name, Status: httpResp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// backendMessage extracts a human readable message from an error body.
func backendMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func (c *Client) LookupCar(ctx context.Context, plate string) (*Car, error) {
	var car Car
	if err := c.call(ctx, CarLookup, map[string]string{"license_plate": plate}, &car); err != nil {
		return nil, err
	}
	return &car, nil
}

func (c *Client) LookupAddress(ctx context.Context, postcode, houseNumber string) (*Address, error) {
	var addr Address
	req := map[string]string{"postcode": postcode, "house_number": houseNumber}
	if err := c.call(ctx, AddressLookup, req, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

func (c *Client) ListServices(ctx context.Context, category string) ([]Service, error) {
	var resp struct {
		Services []Service `json:"services"`
	}
	if err := c.call(ctx, Services, map[string]string{"category": category}, &resp); err != nil {
		return nil, err
	}
	return resp.Services, nil
}

func (c *Client) ListDeliveryWindows(ctx context.Context, addressID, proposalSlug string) ([]Window, error) {
	var resp struct {
		Windows []Window `json:"windows"`
	}
	req := map[string]string{"address_id": addressID, "proposal_slug": proposalSlug}
	if err := c.call(ctx, DeliveryWindow, req, &resp); err != nil {
		return nil, err
	}
	return resp.Windows, nil
}

func (c *Client) SendPhoneCode(ctx context.Context, phone string) error {
	var resp struct {
		Sent bool `json:"sent"`
	}
	return c.call(ctx, PhoneSend, map[string]string{"phone": phone}, &resp)
}

func (c *Client) VerifyPhoneCode(ctx context.Context, phone, code string) (bool, error) {
	var resp struct {
		Verified bool `json:"verified"`
	}
	if err := c.call(ctx, PhoneVerify, map[string]string{"phone": phone, "code": code}, &resp); err != nil {
		return false, err
	}
	return resp.Verified, nil
}

func (c *Client) CreateBooking(ctx context.Context, booking Booking) (*BookingResult, error) {
	var resp BookingResult
	if err := c.call(ctx, BookingCreate, booking, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateBooking(ctx context.Context, booking Booking) (*BookingResult, error) {
	if booking.ID == "" {
		return nil, types.Validation("booking id is required")
	}
	var resp BookingResult
	if err := c.call(ctx, BookingUpdate, booking, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
