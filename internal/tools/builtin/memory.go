package builtin

import (
	"context"
	"fmt"
	"strings"

	"codeagent/internal/memory"
	"codeagent/internal/tools"
)

type memorySearch struct {
	client      memory.Client
	defaultUser string
}

// NewMemorySearch returns the memory_search tool. An empty defaultUser
// falls back to memory.DefaultUserID.
func NewMemorySearch(client memory.Client, defaultUser string) tools.Executor {
	return &memorySearch{client: client, defaultUser: userOr(defaultUser)}
}

type memorySearchArgs struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

func (t *memorySearch) Execute(ctx context.Context, call tools.Call) *tools.Result {
	args := memorySearchArgs{UserID: t.defaultUser, Limit: memory.DefaultLimit}
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}
	entries, err := t.client.Search(ctx, args.Query, userOr(args.UserID), args.Limit)
	if err != nil {
		return tools.Fail(tools.FailureNetwork, "Error searching memory: %v", err)
	}
	items := make([]string, 0, len(entries))
	for _, entry := range entries {
		if text := strings.TrimSpace(entry.Memory); text != "" {
			items = append(items, text)
		}
	}
	return tools.Items(items)
}

func (t *memorySearch) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindMemorySearch,
		Name:        string(tools.KindMemorySearch),
		Description: "Searches the long-term memories stored for a user and returns the most relevant ones.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"query":   {Type: "string", Description: "What to look for."},
				"user_id": {Type: "string", Description: "Whose memories to search.", Default: t.defaultUser, Nullable: true},
				"limit":   {Type: "integer", Description: "Maximum number of memories.", Default: memory.DefaultLimit, Nullable: true},
			},
			Required: []string{"query"},
		},
		Output: tools.OutputList,
	}
}

type memoryAdd struct {
	client      memory.Client
	defaultUser string
}

// NewMemoryAdd returns the memory_add tool.
func NewMemoryAdd(client memory.Client, defaultUser string) tools.Executor {
	return &memoryAdd{client: client, defaultUser: userOr(defaultUser)}
}

type memoryAddArgs struct {
	Content string `json:"content"`
	UserID  string `json:"user_id"`
}

func (t *memoryAdd) Execute(ctx context.Context, call tools.Call) *tools.Result {
	args := memoryAddArgs{UserID: t.defaultUser}
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}
	if strings.TrimSpace(args.Content) == "" {
		return tools.Fail(tools.FailureInvalidArgument, "Error: content must not be empty.")
	}
	user := userOr(args.UserID)
	if err := t.client.Add(ctx, []memory.Message{{Role: "user", Content: args.Content}}, user); err != nil {
		return tools.Fail(tools.FailureNetwork, "Error adding memory: %v", err)
	}
	return tools.Success(fmt.Sprintf("Memory stored for user '%s'.", user))
}

func (t *memoryAdd) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindMemoryAdd,
		Name:        string(tools.KindMemoryAdd),
		Description: "Stores a fact in the user's long-term memory.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"content": {Type: "string", Description: "The fact to remember."},
				"user_id": {Type: "string", Description: "Whose memory to write.", Default: t.defaultUser, Nullable: true},
			},
			Required: []string{"content"},
		},
		Output: tools.OutputString,
	}
}

func userOr(userID string) string {
	if strings.TrimSpace(userID) == "" {
		return memory.DefaultUserID
	}
	return userID
}
