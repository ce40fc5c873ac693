package main

import (
	"github.com/spf13/cobra"
)

func newSandboxCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run the agent inside a docker container",
	}

	run := &cobra.Command{
		Use:   "run [-- command...]",
		Short: "Build the image if needed and run a command in a fresh container",
		Long: `Runs the configured agent command (docker.agent_command) in a new container.
The working directory is mounted read-only and ./data read-write.
Arguments after -- replace the agent command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.container.Sandbox()
			if err != nil {
				return err
			}
			return runner.Run(cmd.Context(), args)
		},
	}

	build := &cobra.Command{
		Use:   "build",
		Short: "Build the sandbox image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := a.container.Sandbox()
			if err != nil {
				return err
			}
			return runner.Rebuild(cmd.Context())
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Report whether the sandbox image exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := a.container.Sandbox()
			if err != nil {
				return err
			}
			state, err := runner.State(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("%s: %s\n", runner.Config().ImageName, state)
			return nil
		},
	}

	cmd.AddCommand(run, build, status)
	return cmd
}
