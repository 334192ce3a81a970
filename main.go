package main

import (
	"os"

	"github.com/Dannidrenovci/myriad-slides/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath    string
	listenAddress string
	logLevel      string

	// cfg is loaded once before any command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "myriad-slides",
	Short: "Myriad Slides presentation server",
	Long: `Myriad Slides turns uploaded PowerPoint decks into editable slides.

Run "myriad-slides serve" to start the HTTP and socket.io server.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file.")
	rootCmd.PersistentFlags().StringVar(&listenAddress, "listen", "", "The address to listen on.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "", "The log level (debug, info, warn, error).")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddress != "" {
		c.Listen = listenAddress
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	cfg = c
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
