package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const defaultHealthcheckPort = "3000"

// NewRootCommand はidgateのルートコマンドを生成する。
// サブコマンド省略時はserveと同じ動作をする。
func NewRootCommand(w io.Writer) *cobra.Command {
	var opts serveOptions

	root := &cobra.Command{
		Use:           "idgate",
		Short:         "Google sign-in backend with stateless session tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, w, opts)
		},
	}
	root.Flags().BoolVar(&opts.migrate, "migrate", true, "apply pending migrations before serving")

	root.AddCommand(newServeCommand(w))
	root.AddCommand(newMigrateCommand(w))
	root.AddCommand(newHealthcheckCommand())
	return root
}

func newServeCommand(w io.Writer) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, w, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runMigrate(cfg)
		},
	}
}

// newHealthcheckCommand はdistroless環境向けのヘルスチェックコマンドを生成する。
// 軽量サブコマンドのため、フル初期化をスキップする。
func newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port := os.Getenv("PORT")
			if port == "" {
				port = defaultHealthcheckPort
			}
			return runHealthcheck(cmd.Context(), port)
		},
	}
}

func serve(cmd *cobra.Command, w io.Writer, opts serveOptions) error {
	cfg, err := Init(w)
	if err != nil {
		return err
	}

	slog.Info("starting application",
		slog.String("command", "serve"),
		slog.String("port", cfg.Port),
		slog.Bool("migrate", opts.migrate),
	)
	return runServe(cmd.Context(), cfg, opts)
}
