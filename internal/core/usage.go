package core

import "time"

const ProviderClaudeCode = "claude_code"

// UsageRow is one assistant turn of a session, deduplicated by message id.
type UsageRow struct {
	SessionID         string    `json:"session_id"`
	Provider          string    `json:"provider"`
	Model             string    `json:"model"`
	MessageID         string    `json:"message_id"`
	InputTokens       int64     `json:"input_tokens"`
	OutputTokens      int64     `json:"output_tokens"`
	CacheReadTokens   *int64    `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens  *int64    `json:"cache_write_tokens,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	SessionModifiedAt time.Time `json:"session_modified_at"`
	ProjectPath       string    `json:"project_path,omitempty"`
	DisplayName       string    `json:"display_name,omitempty"`
}

func (r UsageRow) TotalTokens() int64 {
	total := r.InputTokens + r.OutputTokens
	if r.CacheReadTokens != nil {
		total += *r.CacheReadTokens
	}
	if r.CacheWriteTokens != nil {
		total += *r.CacheWriteTokens
	}
	return total
}

// ActivityDelta is emitted once per token-bearing record appended to a session log.
type ActivityDelta struct {
	SessionID        string    `json:"session_id"`
	MessageID        string    `json:"message_id"`
	Model            string    `json:"model"`
	InputTokens      int64     `json:"input_tokens"`
	OutputTokens     int64     `json:"output_tokens"`
	CacheReadTokens  *int64    `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens *int64    `json:"cache_write_tokens,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

type ActivityHandler func(ActivityDelta)

const DefaultScanLimit = 100

type ScanQuery struct {
	SessionID string
	Limit     int
	Since     time.Time
}

// Normalized fills the default limit.
func (q ScanQuery) Normalized() ScanQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultScanLimit
	}
	return q
}
