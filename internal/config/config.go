// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all simulation, snapshot, session,
// and server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"time"

	"afps-server/internal/sim"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimFromEnv returns the physics tuning with environment variable overrides
// layered on top of sim.DefaultConfig's literal defaults.
func SimFromEnv() sim.Config {
	cfg := sim.DefaultConfig()

	if v := getEnvFloat("AFPS_MOVE_SPEED", -1); v >= 0 {
		cfg.MoveSpeed = v
	}
	if v := getEnvFloat("AFPS_GRAVITY", -1); v >= 0 {
		cfg.Gravity = v
	}
	if v := getEnvFloat("AFPS_JUMP_VELOCITY", -1); v >= 0 {
		cfg.JumpVelocity = v
	}
	if v := getEnvFloat("AFPS_ARENA_HALF_SIZE", -1); v >= 0 {
		cfg.ArenaHalfSize = v
	}
	if path := os.Getenv("AFPS_COLLISION_MESH_PATH"); path != "" {
		CollisionMeshPath = path
	}

	return cfg
}

// CollisionMeshPath is the optional override for the (out-of-scope)
// collision-mesh registry loader, named per spec.md §6's environment
// variable.
var CollisionMeshPath string

// =============================================================================
// SNAPSHOT CONFIGURATION
// =============================================================================

// SnapshotConfig controls tick and snapshot cadence, fixed per spec.md §6's
// protocol constants but kept as plain fields so tests can vary them.
type SnapshotConfig struct {
	TickRate           int
	SnapshotRate       int
	KeyframeInterval   int
}

// DefaultSnapshotConfig returns the protocol-mandated cadence.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		TickRate:         60,
		SnapshotRate:     20,
		KeyframeInterval: 5,
	}
}

// TickDuration is the fixed simulation step implied by TickRate.
func (c SnapshotConfig) TickDuration() time.Duration {
	if c.TickRate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / float64(c.TickRate))
}

// =============================================================================
// SESSION CONFIGURATION
// =============================================================================

// SessionConfig controls handshake, session, and queue bounds.
type SessionConfig struct {
	SessionTTL          time.Duration
	OfferTimeout        time.Duration
	MaxClientHelloAttempts int
	MaxPendingInputs    int
	MaxInvalidInputs    int
	MaxRateLimitDrops   int
	InputMaxTokens      float64
	InputRefillPerSecond float64
}

// DefaultSessionConfig returns production-reasonable session bounds.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SessionTTL:             900 * time.Second,
		OfferTimeout:           10 * time.Second,
		MaxClientHelloAttempts: 3,
		MaxPendingInputs:       128,
		MaxInvalidInputs:       5,
		MaxRateLimitDrops:      20,
		InputMaxTokens:         40,
		InputRefillPerSecond:   30,
	}
}

// SessionFromEnv layers environment overrides onto DefaultSessionConfig.
func SessionFromEnv() SessionConfig {
	cfg := DefaultSessionConfig()
	if v := getEnvInt("AFPS_SESSION_TTL_SECONDS", 0); v > 0 {
		cfg.SessionTTL = time.Duration(v) * time.Second
	}
	if v := getEnvInt("AFPS_OFFER_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.OfferTimeout = time.Duration(v) * time.Second
	}
	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port       int
	BearerToken string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 8080,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	cfg.BearerToken = os.Getenv("AFPS_BEARER_TOKEN")

	return cfg
}

// =============================================================================
// RATE LIMIT CONFIGURATION
// =============================================================================

// RateLimitConfig holds HTTP front-door limiter settings, separate from the
// per-connection unreliable-channel limiter carried in SessionConfig. Load
// fills it, but api.NewServer builds its limiter from api.DefaultRateLimitConfig
// and does not read this value.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultRateLimit returns conservative HTTP front-door limits.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim       sim.Config
	Snapshot  SnapshotConfig
	Session   SessionConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:       SimFromEnv(),
		Snapshot:  DefaultSnapshotConfig(),
		Session:   SessionFromEnv(),
		Server:    ServerFromEnv(),
		RateLimit: DefaultRateLimit(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
