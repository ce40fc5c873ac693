package webui

import (
	"time"

	"codeagent/internal/tools"
)

// APIResponse is the envelope of every JSON response under /api.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// ChatResponse carries the final answer of one turn.
type ChatResponse struct {
	Answer     string   `json:"answer"`
	Memories   []string `json:"memories,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// ToolsListResponse lists the registered tools.
type ToolsListResponse struct {
	Tools []tools.Definition `json:"tools"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Busy      bool      `json:"busy"`
}
