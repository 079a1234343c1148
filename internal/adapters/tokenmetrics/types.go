package tokenmetrics

import (
	"encoding/json"
	"fmt"
	"time"
)

// TokenQuery filters the /tokens listing
type TokenQuery struct {
	Symbols  []string
	TokenIDs []int64
	Category string
	Exchange string
	Limit    int
	Page     int
}

// SignalQuery filters /trading-signals. Zero dates fall back to the default window.
type SignalQuery struct {
	Symbols   []string
	TokenIDs  []int64
	Category  string
	StartDate time.Time
	EndDate   time.Time
	// Signal restricts rows to 1, -1 or 0 when set
	Signal *int
	Limit  int
	Page   int
}

// GradeQuery filters /trader-grades. Zero dates fall back to the default window.
type GradeQuery struct {
	Symbols   []string
	TokenIDs  []int64
	Category  string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Page      int
}

// PriceQuery selects prices by token id, or by symbol resolved through /tokens
type PriceQuery struct {
	TokenIDs []int64
	Symbols  []string
}

// MetricsQuery filters /market-metrics. Zero dates fall back to the default window.
type MetricsQuery struct {
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Page      int
}

// envelope is the response wrapper used by every v2 endpoint
type envelope[T any] struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Data    []T    `json:"data"`
}

type agentMessage struct {
	User string `json:"user"`
}

type agentRequest struct {
	Messages []agentMessage `json:"messages"`
}

// AgentAnswer is the raw reply of the AI agent endpoint
type AgentAnswer = json.RawMessage

// APIError is a non-2xx reply from the analytics API
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("token metrics api: status %d: %s", e.StatusCode, e.Message)
}
