package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/quantleap/brokerage/internal/api/auth"
	"github.com/quantleap/brokerage/internal/types"
)

// ErrUnavailable tags a connection-level failure reaching the auth service.
// Only this error triggers the local fallback path; an application-level
// rejection never does.
var ErrUnavailable = errors.New("auth service unreachable")

// ErrRejected matches any application-level rejection from the auth service.
var ErrRejected = errors.New("rejected by auth service")

// RejectedError carries the server's status and message for a rejected
// request. errors.Is(err, ErrRejected) matches it.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Credentials is a token plus the user summary it was issued for.
type Credentials struct {
	Token string
	User  types.UserSummary
}

// Client is the transport to the auth service. Every result is tagged: a
// successful response, a *RejectedError, or an error wrapping ErrUnavailable.
type Client interface {
	Signup(ctx context.Context, email, username, password, confirmPassword string) (*Credentials, error)
	Login(ctx context.Context, email, password string) (*Credentials, error)
	Verify(ctx context.Context, token string) (*types.UserSummary, error)
}

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks JSON over HTTP to the auth service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the auth service at baseURL, e.g.
// "http://localhost:3002". No request timeout is set; callers bound requests
// through ctx if they need to.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (c *HTTPClient) Signup(ctx context.Context, email, username, password, confirmPassword string) (*Credentials, error) {
	body := auth.SignupRequest{
		Email:           email,
		Username:        username,
		Password:        password,
		ConfirmPassword: confirmPassword,
	}
	var resp auth.TokenResponse
	if err := c.postJSON(ctx, "/api/auth/signup", body, &resp); err != nil {
		return nil, err
	}
	return &Credentials{Token: resp.Token, User: resp.User}, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*Credentials, error) {
	body := auth.LoginRequest{Email: email, Password: password}
	var resp auth.TokenResponse
	if err := c.postJSON(ctx, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return &Credentials{Token: resp.Token, User: resp.User}, nil
}

func (c *HTTPClient) Verify(ctx context.Context, token string) (*types.UserSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/verify", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify: %w: %w", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, rejection(httpResp)
	}

	var resp auth.VerifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("verify: failed to decode response: %w", err)
	}
	return &resp.User, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body, dst interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", path, ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return rejection(httpResp)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", path, err)
	}
	return nil
}

// rejection turns a non-success HTTP response into a *RejectedError carrying
// the server's message.
func rejection(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return &RejectedError{Status: resp.StatusCode, Message: body.Message}
}
