package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"codeagent/internal/agent"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	chatBanner  = "Type your message (or 'exit' to quit):"
	chatGoodbye = "Exiting agent session."
	chatPrompt  = "> "
)

type turnRunner interface {
	Turn(ctx context.Context, userID, message string) (*agent.Reply, error)
}

// lineReader is the part of *readline.Instance the loop needs.
type lineReader interface {
	Readline() (string, error)
}

func newChatCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the agent in the terminal",
		Long:  "Starts an interactive session. With a message argument, answers it once and exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, args)
		},
	}
	cmd.Flags().Int("max-steps", 0, "maximum agent steps per turn, overrides agent.max_steps")
	return cmd
}

func (a *app) runChat(cmd *cobra.Command, args []string) error {
	runner, err := a.container.Runner()
	if err != nil {
		return err
	}
	cfg, err := a.container.Config()
	if err != nil {
		return err
	}
	render := plainRender
	if md, err := newMarkdownRenderer(); err == nil {
		render = md.Render
	}

	loop := &chatLoop{
		out:    cmd.OutOrStdout(),
		runner: runner,
		userID: cfg.Agent.UserID,
		render: render,
	}

	if len(args) > 0 {
		return loop.turn(cmd.Context(), strings.Join(args, " "))
	}

	home, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          chatPrompt,
		HistoryFile:     filepath.Join(home, ".codeagent_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           readline.NewCancelableStdin(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	a.prompter.attach(rl)
	defer a.prompter.attach(nil)

	loop.in = rl
	loop.out = rl.Stdout()
	return loop.run(cmd.Context())
}

// chatLoop is the read-eval-print loop behind `codeagent chat`.
type chatLoop struct {
	in     lineReader
	out    io.Writer
	runner turnRunner
	userID string
	render func(string) string
}

// run reads lines until exit, quit, end of input or an interrupt. Turn
// errors are printed and the loop continues.
func (l *chatLoop) run(ctx context.Context) error {
	fmt.Fprintln(l.out, chatBanner)
	for {
		line, err := l.in.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(l.out, "\n"+chatGoodbye)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		message := strings.TrimSpace(line)
		switch strings.ToLower(message) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(l.out, chatGoodbye)
			return nil
		}
		if err := l.turn(ctx, message); err != nil {
			fmt.Fprintln(l.out, red("Error: "+err.Error()))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (l *chatLoop) turn(ctx context.Context, message string) error {
	ctx = agent.WithListener(ctx, l.printEvent)
	reply, err := l.runner.Turn(ctx, l.userID, message)
	if err != nil {
		return err
	}
	fmt.Fprintln(l.out, bold("Agent result:"))
	fmt.Fprintln(l.out, l.render(reply.Answer))
	fmt.Fprintln(l.out, gray(fmt.Sprintf("(%s)", reply.Duration.Round(time.Millisecond))))
	return nil
}

func (l *chatLoop) printEvent(ev agent.Event) {
	switch ev.Type {
	case agent.EventToolStart:
		fmt.Fprintln(l.out, gray("-> "+ev.Tool+" "+preview(ev.Input, 100)))
	case agent.EventToolEnd:
		if ev.Failure != "" {
			fmt.Fprintln(l.out, yellow("<- "+ev.Tool+" ["+ev.Failure+"] "+preview(ev.Output, 100)))
			return
		}
		fmt.Fprintln(l.out, gray("<- "+ev.Tool+" "+preview(ev.Output, 100)))
	}
}

// consolePrompter answers user_input from the active readline session.
// Without one, questions fail as end of input.
type consolePrompter struct {
	mu sync.Mutex
	rl *readline.Instance
}

func (p *consolePrompter) attach(rl *readline.Instance) {
	p.mu.Lock()
	p.rl = rl
	p.mu.Unlock()
}

func (p *consolePrompter) Ask(_ context.Context, question string) (string, error) {
	p.mu.Lock()
	rl := p.rl
	p.mu.Unlock()
	if rl == nil {
		return "", io.EOF
	}
	fmt.Fprintln(rl.Stdout(), green(question))
	rl.SetPrompt("? ")
	defer rl.SetPrompt(chatPrompt)
	answer, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return answer, err
}
