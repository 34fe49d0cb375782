package stats

import "strings"

// normalize is the lookup key used for status and health names.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ExtractProjectKey extracts the project key portion from a Jira issue key (e.g., "PROJ" from "PROJ-123").
func ExtractProjectKey(key string) string {
	if i := strings.IndexByte(key, '-'); i >= 0 {
		return key[:i]
	}
	return key
}
