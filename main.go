// Package main runs an HTTP server with one rate limited route per
// configured limiter.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	ratelimiter "learn.admission/api"
)

// main parses flags, loads configuration, initializes rate limiters, sets
// up HTTP routes with middleware, and starts the HTTP server.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	port := flag.Int("p", 8080, "Port to run the HTTP server on")
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	logLevelStr := flag.String("log-level", "info", "Logging level (trace, debug, info, warn, error, fatal, panic)")
	flag.Parse()

	logLevel, err := zerolog.ParseLevel(*logLevelStr)
	if err != nil {
		log.Fatal().Err(err).Str("log_level", *logLevelStr).Msg("Invalid log level provided")
	}
	zerolog.SetGlobalLevel(logLevel)

	log.Info().Str("config_path", *configPath).Msg("Starting application initialization")

	limiters, limiterConfigs, closer, err := ratelimiter.NewLimitersFromConfigPath(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *configPath).Msg("Application startup failed: Error initializing rate limiters from config")
	}
	defer closer.Close()

	mux := newMux(limiters, limiterConfigs)

	addr := fmt.Sprintf(":%d", *port)
	log.Info().Str("address", addr).Int("limiters", len(limiters)).Msg("Starting HTTP server")
	log.Fatal().Err(http.ListenAndServe(addr, mux)).Str("address", addr).Msg("HTTP server stopped")
}
