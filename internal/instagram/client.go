package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result carries the outcome of a Graph API call. Failures keep the raw
// error body; a network-level failure has StatusCode 0.
type Result struct {
	OK         bool
	StatusCode int
	Body       string
	// ExternalID is the id Instagram assigned to the created object
	// (reply comment id, message id), empty on failure.
	ExternalID string
}

// RefreshResult is the decoded response of a long-lived token refresh.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Client talks to the Instagram Graph API. Implementations must be safe for
// concurrent use.
type Client interface {
	ReplyToComment(ctx context.Context, accessToken, commentID, message string) Result
	SendDM(ctx context.Context, accessToken, recipientID, text string) Result
	RefreshToken(ctx context.Context, accessToken string) (RefreshResult, error)
}

type client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

func NewClient(baseURL, apiVersion string) Client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *client) endpoint(path string) string {
	return c.baseURL + "/" + c.apiVersion + path
}

func (c *client) ReplyToComment(ctx context.Context, accessToken, commentID, message string) Result {
	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/"+commentID+"/replies"), strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) SendDM(ctx context.Context, accessToken, recipientID, text string) Result {
	payload := map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Body: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/me/messages")+"?access_token="+url.QueryEscape(accessToken),
		strings.NewReader(string(body)))
	if err != nil {
		return Result{Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) RefreshToken(ctx context.Context, accessToken string) (RefreshResult, error) {
	q := url.Values{}
	q.Set("grant_type", "ig_refresh_token")
	q.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/refresh_access_token?"+q.Encode(), nil)
	if err != nil {
		return RefreshResult{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RefreshResult{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return RefreshResult{}, fmt.Errorf("token refresh failed: status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return RefreshResult{}, fmt.Errorf("token refresh failed: decode response: %w", err)
	}
	if decoded.AccessToken == "" {
		return RefreshResult{}, fmt.Errorf("token refresh failed: empty access_token in response")
	}
	return RefreshResult{
		AccessToken: decoded.AccessToken,
		ExpiresIn:   time.Duration(decoded.ExpiresIn) * time.Second,
	}, nil
}

func (c *client) do(req *http.Request) Result {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Body: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	res := Result{
		StatusCode: resp.StatusCode,
		Body:       truncate(string(body), 1024),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res
	}

	res.OK = true
	var created struct {
		ID string `json:"id"`
		// /me/messages returns message_id instead of id.
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(body, &created); err == nil {
		res.ExternalID = created.ID
		if res.ExternalID == "" {
			res.ExternalID = created.MessageID
		}
	}
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
