package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const baseFields = "issuetype,status,assignee,created,updated,labels"

type dcClient struct {
	cfg        Config
	httpClient *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time
}

func NewDataCenterClient(cfg Config) Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &dcClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// throttle spaces consecutive requests by RequestDelay across all workers.
func (c *dcClient) throttle(ctx context.Context) error {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Debug().Dur("wait", wait).Msg("Throttling Jira request")
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *dcClient) authenticateRequest(req *http.Request) {
	// 1. API token: basic auth when an email is present, PAT otherwise
	if c.cfg.Token != "" {
		if c.cfg.Email != "" {
			req.SetBasicAuth(c.cfg.Email, c.cfg.Token)
			return
		}
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.Token))
		return
	}

	// 2. Fallback to session cookies
	cookies := []struct {
		name  string
		value string
	}{
		{"atlassian.xsrf.token", c.cfg.XsrfToken},
		{"JSESSIONID", c.cfg.SessionID},
		{"seraph.rememberme.cookie", c.cfg.RememberMe},
		{"GCILB", c.cfg.GCILB},
		{"GCLB", c.cfg.GCLB},
	}

	var cookiePairs []string
	for _, cookie := range cookies {
		if cookie.value != "" {
			// Built manually: net/http's RFC 6265 validation drops GCLB cookies containing double quotes.
			cookiePairs = append(cookiePairs, fmt.Sprintf("%s=%s", cookie.name, cookie.value))
		}
	}

	if len(cookiePairs) > 0 {
		req.Header.Set("Cookie", strings.Join(cookiePairs, "; "))
	}
}

func (c *dcClient) SearchIssues(ctx context.Context, jql string, startAt int, maxResults int) (*SearchResponse, error) {
	fields := baseFields
	for _, f := range c.cfg.ExtraFields {
		if f != "" {
			fields += "," + f
		}
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("fields", fields)

	searchURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.cfg.BaseURL, params.Encode())
	log.Debug().Str("jql", jql).Int("startAt", startAt).Msg("Requesting issues from Jira")

	var result SearchResponse
	if err := c.get(ctx, searchURL, &result); err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}

	log.Debug().Int("count", len(result.Issues)).Int("total", result.Total).Msg("Jira search successful")
	return &result, nil
}

func (c *dcClient) GetChangelog(ctx context.Context, issueKey string, startAt int, maxResults int) (*ChangelogPage, error) {
	params := url.Values{}
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))

	changelogURL := fmt.Sprintf("%s/rest/api/2/issue/%s/changelog?%s", c.cfg.BaseURL, url.PathEscape(issueKey), params.Encode())
	log.Debug().Str("key", issueKey).Int("startAt", startAt).Msg("Requesting changelog from Jira")

	var page ChangelogPage
	if err := c.get(ctx, changelogURL, &page); err != nil {
		return nil, fmt.Errorf("changelog for %s: %w", issueKey, err)
	}
	return &page, nil
}

func (c *dcClient) get(ctx context.Context, target string, out any) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.authenticateRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusTooManyRequests:
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				return fmt.Errorf("%w, retry after %s seconds", ErrRateLimited, retryAfter)
			}
			return ErrRateLimited
		default:
			return fmt.Errorf("jira API returned status %d", resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode Jira response: %w", err)
	}
	return nil
}
