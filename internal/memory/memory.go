// Package memory is a thin client for the per-user semantic memory store.
// It either talks to a remote mem0 service or keeps an embedded chromem-go
// vector collection on disk.
package memory

import (
	"context"
	"errors"
	"net/http"
	"strings"

	agenterrors "codeagent/internal/errors"

	chromem "github.com/philippgille/chromem-go"
)

const (
	DefaultUserID = "default_user"
	DefaultLimit  = 3

	ProviderNone  = "none"
	ProviderMem0  = "mem0"
	ProviderLocal = "local"
)

// ErrDisabled is returned by New when the provider is "none".
var ErrDisabled = errors.New("memory is disabled (memory.provider is none)")

// Entry is one remembered fact as returned by a search.
type Entry struct {
	ID       string         `json:"id"`
	Memory   string         `json:"memory"`
	UserID   string         `json:"user_id,omitempty"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Message is one conversation message handed to Add.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client searches and records memories scoped by user.
type Client interface {
	Search(ctx context.Context, query, userID string, limit int) ([]Entry, error)
	Add(ctx context.Context, messages []Message, userID string) error
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIBase  string
	APIKey   string

	PersistPath      string
	Collection       string
	EmbeddingModel   string
	EmbeddingAPIBase string
	EmbeddingAPIKey  string

	HTTPClient *http.Client
	// Embed overrides the embedding function of the local store.
	Embed chromem.EmbeddingFunc
}

// New builds the client for cfg.Provider.
func New(cfg Config) (Client, error) {
	switch provider := strings.ToLower(strings.TrimSpace(cfg.Provider)); provider {
	case "", ProviderNone:
		return nil, ErrDisabled
	case ProviderMem0:
		client, err := NewMem0(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderLocal:
		store, err := NewLocal(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, agenterrors.Invalidf("memory", "provider", "Unsupported memory provider '%s'. Use 'mem0', 'local' or 'none'.", cfg.Provider)
	}
}

func userOrDefault(userID string) string {
	if strings.TrimSpace(userID) == "" {
		return DefaultUserID
	}
	return userID
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
