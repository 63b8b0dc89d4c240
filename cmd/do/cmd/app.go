package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/templui/bullseye/internal/app"
	"github.com/templui/bullseye/internal/config"
	"github.com/templui/bullseye/internal/logger"
)

// operator is recorded as SettledBy on receipts produced from the CLI.
const operator = "operator"

func loadConfig() *config.Config {
	cfg := config.Load()
	logger.Init(logger.Options{
		Dev:       cfg.IsDevelopment(),
		SentryDSN: cfg.SentryDSN,
		Env:       cfg.AppEnv,
		Service:   "do",
	})
	return cfg
}

// withApp wires the full application for one command and tears it down after.
func withApp(fn func(a *app.App) error) error {
	cfg := loadConfig()
	defer logger.Flush()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
