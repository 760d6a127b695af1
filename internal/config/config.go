// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Data        DataConfig
	Server      ServerConfig
	Auth        AuthConfig
	Sessions    SessionsConfig
	Leaderboard LeaderboardConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	BasePath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes)
	AccessTokenKey []byte
}

// SessionsConfig holds reading session lifecycle configuration.
type SessionsConfig struct {
	// StaleAfter is how long a session can go without a heartbeat before
	// the sweeper force-closes it (default: 24h).
	StaleAfter time.Duration
	// SweepInterval is how often the sweeper scans for stale sessions (default: 1h).
	SweepInterval time.Duration
	// HeartbeatMinInterval throttles per-session progress writes (default: 10s).
	HeartbeatMinInterval time.Duration
}

// LeaderboardConfig holds weekly leaderboard settlement configuration.
type LeaderboardConfig struct {
	// SettleCheckInterval is how often the settlement worker checks whether
	// the previous week still needs settling (default: 15m).
	SettleCheckInterval time.Duration
	// TopN caps how many entries a single leaderboard response carries
	// (default: 100). Settlement always persists the full ranking.
	TopN int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for data storage")
	serverName := flag.String("server-name", "", "Name for the server")

	// Auth flags
	accessTokenKey := flag.String("access-token-key", "", "Hex-encoded PASETO v4 symmetric key (64 hex chars)")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Session lifecycle flags
	staleAfter := flag.String("session-stale-after", "", "Force-close sessions without a heartbeat for this long (default: 24h)")
	sweepInterval := flag.String("session-sweep-interval", "", "How often to sweep for stale sessions (default: 1h)")
	heartbeatMinInterval := flag.String("heartbeat-min-interval", "", "Minimum interval between persisted heartbeats per session (default: 10s)")

	// Leaderboard flags
	settleCheckInterval := flag.String("settle-check-interval", "", "How often to check for unsettled weeks (default: 15m)")
	leaderboardTopN := flag.String("leaderboard-top-n", "", "Entries returned per leaderboard response (default: 100)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "ReadMark Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Leaderboard: LeaderboardConfig{
			TopN: getIntConfigValue(*leaderboardTopN, "LEADERBOARD_TOP_N", 100),
		},
	}

	// Parse the access token key if provided; otherwise main generates one.
	keyHex := getConfigValue(*accessTokenKey, "ACCESS_TOKEN_KEY", "")
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid access token key: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("access token key must be 32 bytes, got %d", len(key))
		}
		cfg.Auth.AccessTokenKey = key
	}

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	// Parse session lifecycle durations.
	staleAfterStr := getConfigValue(*staleAfter, "SESSION_STALE_AFTER", "24h")
	staleAfterDuration, err := time.ParseDuration(staleAfterStr)
	if err != nil {
		return nil, fmt.Errorf("invalid session stale-after %q: %w", staleAfterStr, err)
	}
	cfg.Sessions.StaleAfter = staleAfterDuration

	sweepIntervalStr := getConfigValue(*sweepInterval, "SESSION_SWEEP_INTERVAL", "1h")
	sweepIntervalDuration, err := time.ParseDuration(sweepIntervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid session sweep interval %q: %w", sweepIntervalStr, err)
	}
	cfg.Sessions.SweepInterval = sweepIntervalDuration

	heartbeatMinStr := getConfigValue(*heartbeatMinInterval, "HEARTBEAT_MIN_INTERVAL", "10s")
	heartbeatMinDuration, err := time.ParseDuration(heartbeatMinStr)
	if err != nil {
		return nil, fmt.Errorf("invalid heartbeat min interval %q: %w", heartbeatMinStr, err)
	}
	cfg.Sessions.HeartbeatMinInterval = heartbeatMinDuration

	settleCheckStr := getConfigValue(*settleCheckInterval, "SETTLE_CHECK_INTERVAL", "15m")
	settleCheckDuration, err := time.ParseDuration(settleCheckStr)
	if err != nil {
		return nil, fmt.Errorf("invalid settle check interval %q: %w", settleCheckStr, err)
	}
	cfg.Leaderboard.SettleCheckInterval = settleCheckDuration

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Leaderboard.TopN <= 0 {
		return fmt.Errorf("leaderboard top-n must be positive, got %d", c.Leaderboard.TopN)
	}

	if c.Sessions.StaleAfter <= 0 {
		return errors.New("session stale-after must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "ReadMark", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
