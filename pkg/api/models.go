package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Counter is a non-negative statistic. Decoding is lenient: numbers,
// numeric strings, and null are accepted; negatives and anything else
// coerce to zero instead of failing the whole payload.
type Counter int64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Counter) UnmarshalJSON(b []byte) error {
	*c = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return nil
	}
	// float64(MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 {
		*c = Counter(math.MaxInt64)
		return nil
	}
	*c = Counter(int64(f))
	return nil
}

// ID is a resource identifier. The backend may send strings or numbers;
// both normalise to their string form.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Stats is the aggregate counter snapshot returned by GET /stats.
type Stats struct {
	Users         Counter `json:"users"`
	Platforms     Counter `json:"platforms"`
	Workspaces    Counter `json:"workspaces"`
	Messages      Counter `json:"messages"`
	Conversations Counter `json:"conversations"`
}

// StatField names one counter in display order.
type StatField struct {
	Key   string
	Label string
}

// StatFields lists the counters in the order they are displayed.
var StatFields = []StatField{
	{Key: "users", Label: "Users"},
	{Key: "platforms", Label: "Platforms"},
	{Key: "workspaces", Label: "Workspaces"},
	{Key: "messages", Label: "Messages"},
	{Key: "conversations", Label: "Conversations"},
}

// Value returns the counter for key, or 0 for unknown keys.
func (s Stats) Value(key string) int64 {
	switch key {
	case "users":
		return int64(s.Users)
	case "platforms":
		return int64(s.Platforms)
	case "workspaces":
		return int64(s.Workspaces)
	case "messages":
		return int64(s.Messages)
	case "conversations":
		return int64(s.Conversations)
	default:
		return 0
	}
}

// Platform is a connected AI platform.
type Platform struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled bool   `json:"is_enabled"`
}

// Workspace is a user workspace.
type Workspace struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Public      bool   `json:"is_public"`
}

// Publication is a document referenced by an analysis.
type Publication struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// AnalysisResult is the payload of a successful analysis.
type AnalysisResult struct {
	Summary      string        `json:"summary"`
	Publications []Publication `json:"publications"`
}

// StatsEnvelope wraps GET /stats.
type StatsEnvelope struct {
	Success bool   `json:"success"`
	Stats   *Stats `json:"stats,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListEnvelope wraps list endpoints such as GET /platforms.
type ListEnvelope[T any] struct {
	Success bool   `json:"success"`
	Data    []T    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// AnalysisEnvelope wraps POST /m23m/analyze.
type AnalysisEnvelope struct {
	Success bool            `json:"success"`
	Data    *AnalysisResult `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// AnalyzeRequest is the POST body for an analysis.
type AnalyzeRequest struct {
	Query string `json:"query"`
}
