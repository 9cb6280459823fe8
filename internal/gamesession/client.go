package gamesession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized covers every negative outcome of session validation:
// a rejecting verdict, a garbled response, a transport failure. The
// caller is told the session is no good, nothing more.
var ErrUnauthorized = errors.New("session rejected")

// Identity is what the game platform asserts about a session. Device
// tokens are attached by the caller from the request, not by the
// platform.
type Identity struct {
	UID             string
	Name            string
	Avatar          string
	IOSDeviceID     string
	AndroidDeviceID string
}

// Validator verifies a session triple against the game platform.
type Validator interface {
	Validate(ctx context.Context, sessionKey, sessionValue, authDeviceID string) (Identity, error)
}

// Client is an HTTP client for the game platform's session endpoint.
// One instance lives for the whole process.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a Client with a bounded per-call timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// externalID tolerates both number and string shapes: the platform
// emits "user_id":42 or "user_id":"42" depending on code path.
type externalID string

func (e *externalID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*e = externalID(s)
	return nil
}

type verdict struct {
	ClientAuth bool       `json:"client_auth"`
	UserID     externalID `json:"user_id"`
	Name       string     `json:"u_name"`
	Surname    string     `json:"u_surname"`
	Login      string     `json:"u_login"`
	Avatar     string     `json:"u_ava"`
	IsGuest    bool       `json:"is_guest"`
}

// Validate performs a single attempt against the platform. Any failure,
// timeout or negative verdict maps to ErrUnauthorized.
func (c *Client) Validate(ctx context.Context, sessionKey, sessionValue, authDeviceID string) (Identity, error) {
	q := url.Values{}
	q.Set("sessionKey", sessionKey)
	q.Set("sessionValue", sessionValue)
	q.Set("authDeviceId", authDeviceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session/check?"+q.Encode(), nil)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	v, err := decodeVerdict(body)
	if err != nil {
		return Identity{}, err
	}

	uid := string(v.UserID)
	return Identity{
		UID:    uid,
		Name:   displayName(v, uid),
		Avatar: v.Avatar,
	}, nil
}

// decodeVerdict parses the platform's response. The endpoint sometimes
// prepends a UTF-8 BOM and wraps the JSON in parentheses, a JSONP
// leftover; both are stripped before decoding.
func decodeVerdict(body []byte) (verdict, error) {
	body = bytes.TrimPrefix(body, []byte{0xEF, 0xBB, 0xBF})
	body = bytes.TrimSpace(body)
	if len(body) >= 2 && body[0] == '(' && body[len(body)-1] == ')' {
		body = body[1 : len(body)-1]
	}

	var v verdict
	if err := json.Unmarshal(body, &v); err != nil {
		return verdict{}, fmt.Errorf("%w: bad verdict payload", ErrUnauthorized)
	}

	if !v.ClientAuth || v.UserID == "" || v.UserID == "0" {
		return verdict{}, ErrUnauthorized
	}
	if v.Name == "" && v.Surname == "" && v.Login == "" && !v.IsGuest {
		return verdict{}, ErrUnauthorized
	}
	return v, nil
}

func displayName(v verdict, uid string) string {
	switch {
	case v.Name != "" && v.Surname != "":
		return v.Name + " " + v.Surname
	case v.Name != "":
		return v.Name
	case v.Login != "":
		return v.Login
	default:
		return "Guest " + uid
	}
}
