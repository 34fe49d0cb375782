package jira

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SearchResponse is the top-level container for Jira search results.
type SearchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue in the Jira search response.
type IssueDTO struct {
	Key    string    `json:"key"`
	Fields FieldsDTO `json:"fields"`
}

// FieldsDTO contains the fields the tracker cares about. Custom fields
// (health, complexity, archived) are kept in Raw and looked up by ID or name.
type FieldsDTO struct {
	IssueType struct {
		Name    string `json:"name"`
		Subtask bool   `json:"subtask"`
	} `json:"issuetype"`
	Status   Status   `json:"status"`
	Assignee *UserDTO `json:"assignee"`
	Created  string   `json:"created"`
	Updated  string   `json:"updated"`
	Labels   []string `json:"labels"`

	Raw map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the raw payload for custom field lookups.
func (f *FieldsDTO) UnmarshalJSON(data []byte) error {
	type plain FieldsDTO
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FieldsDTO(p)
	f.Raw = raw
	return nil
}

// FieldString returns the display value of a custom field. Select fields
// ({"value": ...}), user fields ({"displayName": ...}) and plain strings or
// numbers are supported. Missing or null fields yield "".
func (f FieldsDTO) FieldString(id string) string {
	if id == "" || f.Raw == nil {
		return ""
	}
	msg, ok := f.Raw[id]
	if !ok {
		return ""
	}
	return rawString(msg)
}

// FieldBool reports whether a custom field holds a truthy value.
func (f FieldsDTO) FieldBool(id string) bool {
	switch strings.ToLower(f.FieldString(id)) {
	case "", "false", "0", "no":
		return false
	}
	return true
}

func rawString(msg json.RawMessage) string {
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return fmt.Sprintf("%t", t)
	case float64:
		return fmt.Sprintf("%g", t)
	case map[string]any:
		for _, k := range []string{"value", "name", "displayName"} {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
	case []any:
		if len(t) > 0 {
			b, _ := json.Marshal(t[0])
			return rawString(b)
		}
	}
	return ""
}

// Status is an embedded status object.
type Status struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	StatusCategory struct {
		Key string `json:"key"`
	} `json:"statusCategory"`
}

// UserDTO is the subset of a Jira user the tracker records.
type UserDTO struct {
	AccountID   string `json:"accountId,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName"`
}

// ChangelogPage is one page of the paginated changelog endpoint.
type ChangelogPage struct {
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      int          `json:"total"`
	IsLast     bool         `json:"isLast"`
	Values     []HistoryDTO `json:"values"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	ID      string    `json:"id"`
	Author  *UserDTO  `json:"author,omitempty"`
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId,omitempty"`
	FieldType  string `json:"fieldtype,omitempty"`
	ToString   string `json:"toString"`
	FromString string `json:"fromString"`
	To         string `json:"to"`
	From       string `json:"from"`
}

// Matches reports whether the item changes the field identified by id or display name.
func (i ItemDTO) Matches(field string) bool {
	if field == "" {
		return false
	}
	return i.FieldID == field || strings.EqualFold(i.Field, field)
}

// ParseTime is a helper for the strict Jira time format.
func ParseTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000-0700", s)
}
