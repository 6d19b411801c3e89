package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/sprechwerk/internal/wittgenstein/server"
	"github.com/msto63/sprechwerk/pkg/core/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Startet das Voice Gateway",
	Long: `Startet das Wittgenstein Voice Gateway.

Das Gateway nimmt WebSocket-Verbindungen auf /voice/stream entgegen
und treibt die Pipeline Spracherkennung -> Sprachmodell -> Synthese.

Beispiele:
  swk serve
  swk serve --config ./configs/config.toml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Konfiguration konnte nicht geladen werden", err)
		cfg = config.Default()
	}

	deps, store, err := buildGatewayDeps(cfg)
	if err != nil {
		return fmt.Errorf("provider setup failed: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	srv, err := server.New(gatewayServerConfig(cfg), deps)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}

	if err := srv.StartAsync(); err != nil {
		return fmt.Errorf("server start failed: %w", err)
	}

	fmt.Printf("Wittgenstein Voice Gateway läuft auf %s\n", srv.Address())
	fmt.Println("Beenden mit Ctrl+C")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

// loadConfig resolves the configuration from --config or the default
// locations
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadFromEnv()
}
