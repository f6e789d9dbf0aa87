// Package wordpress publishes content items through the WordPress REST API.
package wordpress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ekaya-inc/content-engine/pkg/config"
)

const postsPath = "/wp-json/wp/v2/posts"

// Post is the subset of a WordPress post the client sends.
type Post struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
	Excerpt string `json:"excerpt,omitempty"`
}

// PublishedPost is the part of the WordPress response that is stored.
type PublishedPost struct {
	ID     int64  `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

// Publisher creates posts.
type Publisher interface {
	Publish(ctx context.Context, post Post) (*PublishedPost, error)
}

// Client talks to one WordPress site using an application password.
type Client struct {
	http       *resty.Client
	postStatus string
}

var _ Publisher = (*Client)(nil)

// NewClient returns nil when publishing is not configured.
func NewClient(cfg *config.WordPressConfig) *Client {
	if cfg == nil || !cfg.IsConfigured() {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	status := cfg.PostStatus
	if status == "" {
		status = "publish"
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetBasicAuth(cfg.Username, cfg.AppPassword).
		SetHeader("User-Agent", "content-engine-wordpress/1.0").
		SetTimeout(timeout)
	return &Client{http: rc, postStatus: status}
}

// IsEnabled reports whether the client can publish.
func (c *Client) IsEnabled() bool {
	return c != nil && c.http != nil
}

// Publish creates a post. An empty post.Status uses the configured default.
func (c *Client) Publish(ctx context.Context, post Post) (*PublishedPost, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("wordpress client is not configured")
	}
	if post.Status == "" {
		post.Status = c.postStatus
	}

	var out PublishedPost
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(post).
		SetResult(&out).
		Post(postsPath)
	if err != nil {
		return nil, fmt.Errorf("wordpress request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("wordpress error (%d): %s", resp.StatusCode(), truncate(resp.String(), 300))
	}
	if out.ID == 0 {
		return nil, fmt.Errorf("wordpress response did not include a post id")
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
