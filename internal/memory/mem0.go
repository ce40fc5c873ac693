package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	agenterrors "codeagent/internal/errors"
	"codeagent/internal/httpclient"
)

const mem0ResponseLimit = 1 << 20

// Mem0Client talks to the mem0 REST API.
type Mem0Client struct {
	base   string
	apiKey string
	http   *http.Client
}

// NewMem0 validates cfg and returns a mem0 client.
func NewMem0(cfg Config) (*Mem0Client, error) {
	var missing []string
	if strings.TrimSpace(cfg.APIBase) == "" {
		missing = append(missing, "api_base")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return nil, agenterrors.MissingFields("memory", missing...)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(0, nil)
	}
	return &Mem0Client{
		base:   strings.TrimRight(cfg.APIBase, "/"),
		apiKey: cfg.APIKey,
		http:   client,
	}, nil
}

type mem0SearchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

type mem0AddRequest struct {
	Messages []Message `json:"messages"`
	UserID   string    `json:"user_id"`
}

// Search returns up to limit memories of userID relevant to query.
func (c *Mem0Client) Search(ctx context.Context, query, userID string, limit int) ([]Entry, error) {
	body := mem0SearchRequest{Query: query, UserID: userOrDefault(userID), Limit: limitOrDefault(limit)}
	raw, err := c.post(ctx, "/v1/memories/search/", body)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	if len(entries) > body.Limit {
		entries = entries[:body.Limit]
	}
	return entries, nil
}

// Add records the messages for userID.
func (c *Mem0Client) Add(ctx context.Context, messages []Message, userID string) error {
	if len(messages) == 0 {
		return nil
	}
	if _, err := c.post(ctx, "/v1/memories/", mem0AddRequest{Messages: messages, UserID: userOrDefault(userID)}); err != nil {
		return fmt.Errorf("memory add: %w", err)
	}
	return nil
}

func (c *Mem0Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := httpclient.ReadBody(resp.Body, mem0ResponseLimit)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mem0 returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// decodeEntries accepts either a bare list or {"results": [...]}.
func decodeEntries(raw []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return entries, nil
	}
	var wrapped struct {
		Results []Entry `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapped.Results, nil
}
