package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cascadegame/cascade/pkg/server"
)

const (
	tcpAddressKey     = "tcp_address"
	httpAddressKey    = "http_address"
	highScorePathKey  = "high_score_path"
	trustedProxiesKey = "trusted_proxies"
	logLevelKey       = "log_level"
)

func serveCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Long: `Run the game server.

Listens for raw TCP connections and serves the websocket endpoint,
health check and Prometheus metrics over HTTP. Settings come from
flags, environment variables (prefix CASCADE_) or a YAML config file,
in that order of precedence.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cfgFile); err != nil {
				return err
			}
			setupLogging(viper.GetString(logLevelKey))

			config := server.DefaultServerConfig().
				WithTCPAddress(viper.GetString(tcpAddressKey)).
				WithHTTPAddress(viper.GetString(httpAddressKey)).
				WithHighScorePath(viper.GetString(highScorePathKey)).
				WithTrustedProxies(viper.GetStringSlice(trustedProxiesKey))

			srv := server.New(config, prometheus.DefaultRegisterer)
			return srv.Run()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default cascade.yaml in the working directory)")
	flags.String("tcp-address", ":12345", "address for raw TCP connections")
	flags.String("http-address", ":54321", "address for websocket, health and metrics")
	flags.String("high-score-path", "cascade_high_scores.txt", "path of the high score file")
	flags.StringSlice("trusted-proxy", nil, "trusted reverse proxy IP or CIDR (repeatable)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	viper.BindPFlag(tcpAddressKey, flags.Lookup("tcp-address"))
	viper.BindPFlag(httpAddressKey, flags.Lookup("http-address"))
	viper.BindPFlag(highScorePathKey, flags.Lookup("high-score-path"))
	viper.BindPFlag(trustedProxiesKey, flags.Lookup("trusted-proxy"))
	viper.BindPFlag(logLevelKey, flags.Lookup("log-level"))

	return cmd
}

func loadConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("cascade")
	}

	viper.SetEnvPrefix("CASCADE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
