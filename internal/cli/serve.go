package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/persona/internal/metrics"
	"github.com/ppiankov/persona/internal/pipeline"
	"github.com/ppiankov/persona/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve persona generation over HTTP",
	Long: `Serve runs an HTTP server exposing:
  POST /v1/personas/{username}   generate a persona (JSON, or ?format=text)
  POST /v1/personas              {"identity": "<username or profile URL>"}
  GET  /healthz                  liveness
  GET  /metrics                  Prometheus metrics

Personas are returned, not written to disk.

Example:
  persona serve
  persona serve --addr :9090 --provider ollama --model llama3.1`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	p, err := pipeline.FromConfig(cfg, pipeline.BuildOptions{Metrics: m, Logger: logger})
	if err != nil {
		return err
	}

	srv := server.New(p, m, logger.With("component", "server"), cfg.Server.RequestTimeout)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
