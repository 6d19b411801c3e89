package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "swk",
	Short: "sprechWERK - Echtzeit-Sprachassistent",
	Long: `sprechWERK ist ein lokal betriebener Sprachassistent mit
Streaming-Pipeline für Spracherkennung, Sprachmodell und Sprachsynthese.

Komponenten:
  wittgenstein - Voice Gateway (WebSocket :8090)
  assistant    - Sprachassistent-Client (Mikrofon und Lautsprecher)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config-Datei (default: ./configs/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose Output")
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Fehler: %s: %v\n", msg, err)
}
