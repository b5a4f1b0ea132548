package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/curiohq/curio/internal/seed"
	"github.com/curiohq/curio/internal/server"
	"github.com/curiohq/curio/internal/service"
	"github.com/curiohq/curio/internal/store"
)

const banner = `
  ___ _   _ ___ ___ ___
 / __| | | | _ \_ _/ _ \
| (__| |_| |   /| | (_) |
 \___|\___/|_|_\___\___/
`

// sweepInterval is how often expired tokens and keys are reaped.
const sweepInterval = time.Hour

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Curio API server",
		Long:  "Start the HTTP server that exposes the gallery API and the admin endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	st, err := store.Open(resolveDataDir())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store opened", "path", resolveDataDir())

	authSvc := service.NewAuthService(st, logger)
	policy := service.NewPolicy(
		viper.GetStringSlice("categories.admin_only"),
		viper.GetStringSlice("categories.percentage_controlled"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := seed.IfEmpty(ctx, st, viper.GetString("seed.path"), logger); err != nil {
		logger.Warn("seeding failed", "error", err)
	}

	authSvc.StartSweeper(ctx, sweepInterval)

	cfg := server.Config{
		Host:             viper.GetString("server.host"),
		Port:             viper.GetInt("server.port"),
		ShutdownTimeout:  30 * time.Second,
		CORSOrigins:      viper.GetStringSlice("server.cors_origins"),
		UploadsDir:       viper.GetString("server.uploads_dir"),
		GeneralRateLimit: viper.GetInt("ratelimit.general"),
		AuthRateLimit:    viper.GetInt("ratelimit.auth"),
	}

	srv := server.New(cfg, st, authSvc, policy, logger)
	return srv.ListenAndServe()
}
