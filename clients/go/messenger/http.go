package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/enot3481-eng/messenger-app/internal/models"
	"github.com/enot3481-eng/messenger-app/internal/presence"
)

// UserResult is a directory profile with its presence, as served by
// the relay's HTTP fallback endpoints.
type UserResult struct {
	models.Profile
	Presence presence.Status `json:"presence"`
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// LookupTag resolves a tag to a profile over plain HTTP. It works
// whether or not the realtime stream is up, and is the fallback path
// when it is not.
func (c *Client) LookupTag(ctx context.Context, tag string) (UserResult, bool, error) {
	endpoint := c.opts.ServerURL + "/users/tag/" + url.PathEscape(models.NormalizeTag(tag))

	var out UserResult
	status, err := c.getJSON(ctx, endpoint, &out)
	if err != nil {
		return UserResult{}, false, err
	}
	if status == http.StatusNotFound {
		return UserResult{}, false, nil
	}
	if status != http.StatusOK {
		return UserResult{}, false, fmt.Errorf("lookup tag: HTTP %d", status)
	}
	return out, true, nil
}

// SearchHTTP runs a substring tag search over plain HTTP.
func (c *Client) SearchHTTP(ctx context.Context, query string) ([]UserResult, error) {
	endpoint := c.opts.ServerURL + "/users/search/" + url.PathEscape(query)

	var out []UserResult
	status, err := c.getJSON(ctx, endpoint, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search: HTTP %d", status)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
