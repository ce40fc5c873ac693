package builtin

import (
	"context"
	"errors"
	"io"
	"strings"

	"codeagent/internal/tools"
)

// Prompter asks the human operator a question and returns the reply.
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, question string) (string, error)

func (f PrompterFunc) Ask(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

type userInput struct {
	prompter Prompter
}

// NewUserInput returns the user_input tool. With a nil prompter every call
// fails as unsupported.
func NewUserInput(prompter Prompter) tools.Executor {
	return &userInput{prompter: prompter}
}

type userInputArgs struct {
	Question string `json:"question"`
}

func (t *userInput) Execute(ctx context.Context, call tools.Call) *tools.Result {
	var args userInputArgs
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}
	if t.prompter == nil {
		return tools.Fail(tools.FailureUnsupported, "Error: No interactive user is available to answer questions.")
	}
	answer, err := t.prompter.Ask(ctx, args.Question)
	switch {
	case errors.Is(err, io.EOF):
		return tools.Fail(tools.FailureUnsupported, "Error: The user closed the input stream.")
	case err != nil:
		return tools.Fail(tools.FailureInternal, "Error reading user input: %v", err)
	}
	return tools.Success(strings.TrimSpace(answer))
}

func (t *userInput) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindUserInput,
		Name:        string(tools.KindUserInput),
		Description: "Asks for user's input on a specific question.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"question": {Type: "string", Description: "The question to ask the user."},
			},
			Required: []string{"question"},
		},
		Output: tools.OutputString,
	}
}
