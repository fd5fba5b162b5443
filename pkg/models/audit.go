package models

import "time"

// AuditConfig controls the request audit log.
type AuditConfig struct {
	Enabled       bool     `yaml:"enabled"`
	RetentionDays int      `yaml:"retention_days"`
	MaxBodySize   int      `yaml:"max_body_size"`
	Include       []string `yaml:"include"` // "prompts", "responses"
}

// AuditEntry records one proxied request.
type AuditEntry struct {
	RequestID        string    `json:"request_id"`
	Route            string    `json:"route"`
	Model            string    `json:"model,omitempty"`
	RemoteHost       string    `json:"remote_host,omitempty"`
	RequestBody      string    `json:"request_body,omitempty"`
	ResponseBody     string    `json:"response_body,omitempty"`
	StatusCode       int       `json:"status_code"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
	TotalTokens      int       `json:"total_tokens,omitempty"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditQueryOpts filters audit queries.
type AuditQueryOpts struct {
	RequestID string
	Route     string
	Model     string
	Since     time.Time
	Limit     int
}

// AuditStat is an aggregate count per route and day.
type AuditStat struct {
	Route string `json:"route"`
	Day   string `json:"day"`
	Count int64  `json:"count"`
}
