package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"codeagent/internal/di"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// app holds process-wide CLI state shared by the subcommands.
type app struct {
	configPath  string
	promptsPath string
	envFile     string
	workDir     string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	prompter  *consolePrompter
	container *di.Container
	// newContainer is replaced in tests.
	newContainer func(di.Options) *di.Container
}

func newApp() *app {
	return &app{
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		prompter:     &consolePrompter{},
		newContainer: di.New,
	}
}

// flagKeys maps command-line flags onto dotted configuration keys.
var flagKeys = map[string]string{
	"log-level": "logging.level",
	"model":     "llm.model",
	"max-steps": "agent.max_steps",
	"user":      "agent.user_id",
	"host":      "web.host",
	"port":      "web.port",
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "codeagent",
		Short: "AI coding assistant with file, shell, web and memory tools",
		Long: `codeagent runs a tool-using coding agent against an OpenAI-compatible model.

  codeagent                         # interactive chat (default)
  codeagent chat "explain main.go"  # single message
  codeagent web                     # browser UI
  codeagent sandbox run             # run the agent inside docker
  codeagent tools list              # show registered tools`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, args)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "configuration file (default $CODEAGENT_CONFIG_PATH or config/config.yaml)")
	flags.StringVar(&a.promptsPath, "prompts", "", "prompt template file (default $CODEAGENT_PROMPTS_PATH or prompts/prompts.yaml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	flags.StringVar(&a.workDir, "workdir", "", "host directory mounted into the sandbox (default current directory)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("model", "", "model name, overrides llm.model")
	flags.String("user", "", "memory user id, overrides agent.user_id")

	root.AddCommand(
		newChatCommand(a),
		newWebCommand(a),
		newSandboxCommand(a),
		newToolsCommand(a),
		newConfigCommand(a),
	)
	return root
}

// setup loads the dotenv file and builds the service container.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.loadEnvFile(cmd); err != nil {
		return err
	}
	bound := make(map[string]*pflag.Flag)
	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			bound[key] = flag
		}
	}
	a.container = a.newContainer(di.Options{
		ConfigPath:  a.configPath,
		PromptsPath: a.promptsPath,
		Flags:       bound,
		WorkDir:     a.workDir,
		Prompter:    a.prompter,
	})
	return nil
}

func (a *app) loadEnvFile(cmd *cobra.Command) error {
	path := strings.TrimSpace(a.envFile)
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file")) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// cleanup flushes telemetry and closes log files; safe to call when setup
// never ran.
func (a *app) cleanup() error {
	if a.container == nil {
		return nil
	}
	return a.container.Cleanup()
}
