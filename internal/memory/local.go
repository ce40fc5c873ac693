package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	agenterrors "codeagent/internal/errors"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

const (
	defaultCollection     = "memories"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultEmbeddingBase  = "https://api.openai.com/v1"
)

// LocalStore keeps memories in an embedded chromem-go collection. Every
// message becomes one document tagged with its user and role.
type LocalStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewLocal opens (or creates) the collection. An empty PersistPath keeps
// everything in memory.
func NewLocal(cfg Config) (*LocalStore, error) {
	embed := cfg.Embed
	if embed == nil {
		key := strings.TrimSpace(cfg.EmbeddingAPIKey)
		if key == "" {
			return nil, agenterrors.MissingFields("memory", "embedding_api_key")
		}
		base := strings.TrimRight(cfg.EmbeddingAPIBase, "/")
		if base == "" {
			base = defaultEmbeddingBase
		}
		model := cfg.EmbeddingModel
		if model == "" {
			model = defaultEmbeddingModel
		}
		embed = chromem.NewEmbeddingFuncOpenAICompat(base, key, model, nil)
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("open memory store at %s: %w", cfg.PersistPath, err)
		}
	} else {
		db = chromem.NewDB()
	}

	name := cfg.Collection
	if name == "" {
		name = defaultCollection
	}
	collection, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open memory collection %s: %w", name, err)
	}
	return &LocalStore{db: db, collection: collection}, nil
}

// Search returns the memories of userID most similar to query.
func (s *LocalStore) Search(ctx context.Context, query, userID string, limit int) ([]Entry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	n := limitOrDefault(limit)
	if total := s.collection.Count(); total == 0 {
		return nil, nil
	} else if n > total {
		n = total
	}

	user := userOrDefault(userID)
	results, err := s.collection.Query(ctx, query, n, map[string]string{"user_id": user}, nil)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		entries = append(entries, Entry{
			ID:       r.ID,
			Memory:   r.Content,
			UserID:   user,
			Score:    float64(r.Similarity),
			Metadata: metadata,
		})
	}
	return entries, nil
}

// Add stores every non-empty message as a document.
func (s *LocalStore) Add(ctx context.Context, messages []Message, userID string) error {
	user := userOrDefault(userID)
	created := time.Now().UTC().Format(time.RFC3339)
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		doc := chromem.Document{
			ID:      uuid.NewString(),
			Content: msg.Content,
			Metadata: map[string]string{
				"user_id":    user,
				"role":       msg.Role,
				"created_at": created,
			},
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("memory add: %w", err)
		}
	}
	return nil
}

// Count returns the number of stored documents across all users.
func (s *LocalStore) Count() int {
	return s.collection.Count()
}
