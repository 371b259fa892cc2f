package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/luvo/internal/app"
	"github.com/dokzlo13/luvo/internal/config"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	token := flag.String("token", "", "API token (overrides config and "+config.TokenEnv+")")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, app.Usage)
	}
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *token != "" {
		cfg.Cloud.Token = *token
	}
	level := cfg.Log.GetLevel()
	if *verbose {
		level = "debug"
	}

	// Setup logging
	setupLogging(level, cfg.Log.UseJSON, cfg.Log.Colors)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	ctx := app.SignalContext()
	runErr := application.Run(ctx, flag.Args(), os.Stdout)

	if err := application.Close(); err != nil {
		log.Warn().Err(err).Msg("Error during shutdown")
	}

	if runErr != nil {
		if errors.Is(runErr, app.ErrUsage) {
			fmt.Fprintln(os.Stderr, runErr)
			fmt.Fprintln(os.Stderr, app.Usage)
			os.Exit(2)
		}
		log.Error().Err(runErr).Msg("Command failed")
		os.Exit(1)
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
