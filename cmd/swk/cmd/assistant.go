package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msto63/sprechwerk/internal/voiceassistant"
	"github.com/msto63/sprechwerk/internal/voiceassistant/audio"
	"github.com/msto63/sprechwerk/internal/voiceassistant/vad"
	"github.com/msto63/sprechwerk/pkg/core/config"
)

var (
	assistantServer string
	assistantDevice string
)

var assistantCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Startet den Sprachassistent-Client",
	Long: `Startet den Sprachassistenten mit Mikrofon und Lautsprecher.

Der Client verbindet sich mit dem Wittgenstein Voice Gateway, erkennt
Sprache per VAD und spielt die synthetisierte Antwort ab. Sprechen
während der Wiedergabe unterbricht die Antwort (Barge-in).

Beispiele:
  swk assistant
  swk assistant --server ws://localhost:8090/voice/stream
  swk assistant --device "USB Microphone"`,
	RunE: runAssistant,
}

func init() {
	rootCmd.AddCommand(assistantCmd)
	assistantCmd.Flags().StringVar(&assistantServer, "server", "", "Gateway-URL (überschreibt die Konfiguration)")
	assistantCmd.Flags().StringVar(&assistantDevice, "device", "", "Name des Eingabegeräts")
}

func runAssistant(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Konfiguration konnte nicht geladen werden", err)
		cfg = config.Default()
	}

	aCfg := assistantConfig(cfg)
	if assistantServer != "" {
		aCfg.ServerURL = assistantServer
	}
	if assistantDevice != "" {
		aCfg.InputDevice = assistantDevice
	}

	assistant, err := voiceassistant.New(aCfg)
	if err != nil {
		return fmt.Errorf("assistant setup failed: %w", err)
	}
	defer assistant.Close()

	assistant.OnTranscript(func(text string) {
		fmt.Printf("\nDu: %s\n", text)
	})
	assistant.OnToken(func(token string) {
		fmt.Print(token)
	})
	assistant.OnError(func(e string) {
		fmt.Fprintf(os.Stderr, "\nGateway-Fehler: %s\n", e)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Printf("Verbinde mit %s ...\n", aCfg.ServerURL)
	fmt.Println("Sprich einfach los. Beenden mit Ctrl+C")

	return assistant.Run(ctx)
}

// assistantConfig maps the file configuration onto the client
func assistantConfig(cfg *config.Config) voiceassistant.Config {
	aCfg := voiceassistant.DefaultAssistantConfig()
	if cfg.Assistant.ServerURL != "" {
		aCfg.ServerURL = cfg.Assistant.ServerURL
	}
	aCfg.Token = cfg.Assistant.Token
	if cfg.Assistant.SampleRate > 0 {
		aCfg.SampleRate = cfg.Assistant.SampleRate
	}
	if cfg.Assistant.ChunkMillis > 0 {
		aCfg.ChunkMillis = cfg.Assistant.ChunkMillis
	}
	aCfg.InputDevice = cfg.Assistant.InputDevice

	vadCfg := vad.DefaultConfig()
	if cfg.Assistant.VADEngine != "" {
		vadCfg.Engine = cfg.Assistant.VADEngine
	}
	if cfg.Assistant.VADThreshold > 0 {
		vadCfg.Threshold = cfg.Assistant.VADThreshold
	}
	vadCfg.SampleRate = aCfg.SampleRate
	aCfg.VAD = vadCfg

	playCfg := audio.DefaultPlaybackConfig()
	if cfg.TTS.SampleRate > 0 {
		playCfg.SampleRate = float64(cfg.TTS.SampleRate)
	}
	aCfg.Playback = playCfg

	return aCfg
}
