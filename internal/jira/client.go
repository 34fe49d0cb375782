package jira

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnauthorized is returned on 401/403 responses.
	ErrUnauthorized = errors.New("jira: authentication failed")
	// ErrRateLimited is returned on 429 responses.
	ErrRateLimited = errors.New("jira: rate limit exceeded")
	// ErrNotFound is returned on 404 responses.
	ErrNotFound = errors.New("jira: resource not found")
)

// Client is the interface for interacting with Jira.
type Client interface {
	SearchIssues(ctx context.Context, jql string, startAt int, maxResults int) (*SearchResponse, error)
	GetChangelog(ctx context.Context, issueKey string, startAt int, maxResults int) (*ChangelogPage, error)
}

// Config holds the authentication and connection settings for Jira.
type Config struct {
	BaseURL string

	// API token auth. With Email set the token is sent as basic auth (Cloud),
	// otherwise as a bearer Personal Access Token (Data Center).
	Email string
	Token string

	// Data Center Cookies
	XsrfToken  string
	SessionID  string
	RememberMe string

	// Load Balancer Cookies
	GCILB string
	GCLB  string

	// Custom field IDs requested alongside the standard fields.
	ExtraFields []string

	RequestDelay time.Duration
}

// NewClient creates a new Jira client based on the provided configuration.
func NewClient(cfg Config) Client {
	return NewDataCenterClient(cfg)
}
