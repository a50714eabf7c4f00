package claude_code

import (
	"encoding/json"
	"math"
	"strings"
)

// TokenRecord is the narrowed view of an assistant JSONL line that carries
// token usage.
type TokenRecord struct {
	MessageID           string
	Model               string
	Timestamp           string
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
}

// ParseTokenRecord reports whether v, a value decoded from one JSONL line, is
// a token-bearing assistant record. Both the batch scan and the activity
// stream call this; it never panics on arbitrary input.
func ParseTokenRecord(v any) (TokenRecord, bool) {
	root, ok := v.(map[string]any)
	if !ok {
		return TokenRecord{}, false
	}
	if kind, _ := root["type"].(string); kind != "assistant" {
		return TokenRecord{}, false
	}
	message, ok := root["message"].(map[string]any)
	if !ok {
		return TokenRecord{}, false
	}
	model, ok := message["model"].(string)
	if !ok || strings.TrimSpace(model) == "" {
		return TokenRecord{}, false
	}
	usage, ok := message["usage"].(map[string]any)
	if !ok {
		return TokenRecord{}, false
	}

	input, ok := jsonNumber(usage["input_tokens"])
	if !ok || input <= 0 {
		return TokenRecord{}, false
	}
	output, ok := jsonNumber(usage["output_tokens"])
	if !ok {
		return TokenRecord{}, false
	}
	cacheRead, ok := jsonNumber(usage["cache_read_input_tokens"])
	if !ok {
		return TokenRecord{}, false
	}
	cacheCreation, ok := jsonNumber(usage["cache_creation_input_tokens"])
	if !ok {
		return TokenRecord{}, false
	}

	id, ok := message["id"].(string)
	if !ok || id == "" {
		return TokenRecord{}, false
	}

	timestamp, _ := root["timestamp"].(string)
	return TokenRecord{
		MessageID:           id,
		Model:               model,
		Timestamp:           timestamp,
		InputTokens:         input,
		OutputTokens:        output,
		CacheReadTokens:     cacheRead,
		CacheCreationTokens: cacheCreation,
	}, true
}

// jsonNumber accepts only JSON numbers that are whole and fit in int64;
// numeric-looking strings, fractions and out-of-range values are rejected.
func jsonNumber(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return wholeInt64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return wholeInt64(f)
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func wholeInt64(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	if v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

func topLevelString(v any, key string) string {
	root, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := root[key].(string)
	return s
}
