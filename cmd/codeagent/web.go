package main

import (
	"os"
	"os/signal"

	"codeagent/internal/di"
	"codeagent/internal/logging"
	"codeagent/internal/webui"

	"github.com/spf13/cobra"
)

func newWebCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the browser chat UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.container.Config()
			if err != nil {
				return err
			}
			runner, err := a.container.Runner()
			if err != nil {
				return err
			}
			registry, err := a.container.Tools()
			if err != nil {
				return err
			}
			metrics, err := a.container.Metrics()
			if err != nil {
				return err
			}

			opts := []webui.Option{webui.WithLogger(logging.NewComponentLogger("WebUI"))}
			if metrics.Enabled() {
				opts = append(opts, webui.WithMetricsHandler(metrics.Handler()))
			}
			server := webui.NewServer(webui.Config{
				Host:           cfg.Web.Host,
				Port:           cfg.Web.Port,
				Debug:          cfg.Web.Debug,
				AllowedOrigins: cfg.Web.AllowedOrigins,
				UserID:         cfg.Agent.UserID,
				Version:        di.Version,
			}, runner, registry.List(), opts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			cmd.Printf("Serving web UI on http://%s\n", server.Addr())
			return server.Run(ctx)
		},
	}
	cmd.Flags().String("host", "", "listen host, overrides web.host")
	cmd.Flags().Int("port", 0, "listen port, overrides web.port")
	return cmd
}
