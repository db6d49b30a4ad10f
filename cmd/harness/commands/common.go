package commands

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/airchains-network/dualledger-harness/config"
	"github.com/airchains-network/dualledger-harness/journal"
)

func newLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
	})
	log.SetLevel(level)
	return log
}

// configPath returns the --config flag or the default location.
func configPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the config and returns it with the directory it lives in.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	path, err := configPath(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, filepath.Dir(path), nil
}

func openJournal(cfg config.Config, dir string, log *logrus.Logger) (*journal.Journal, error) {
	return journal.Open(cfg.JournalPath(dir), log)
}
