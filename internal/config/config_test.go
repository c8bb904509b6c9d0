package config

import (
	"os"
	"testing"
	"time"

	"afps-server/internal/sim"
)

func TestSimFromEnvDefaultsWhenUnset(t *testing.T) {
	os.Unsetenv("AFPS_MOVE_SPEED")
	os.Unsetenv("AFPS_GRAVITY")

	cfg := SimFromEnv()
	def := sim.DefaultConfig()

	if cfg.MoveSpeed != def.MoveSpeed {
		t.Errorf("expected default MoveSpeed %v, got %v", def.MoveSpeed, cfg.MoveSpeed)
	}
	if cfg.Gravity != def.Gravity {
		t.Errorf("expected default Gravity %v, got %v", def.Gravity, cfg.Gravity)
	}
}

func TestSimFromEnvOverridesApplied(t *testing.T) {
	os.Setenv("AFPS_MOVE_SPEED", "12.5")
	defer os.Unsetenv("AFPS_MOVE_SPEED")

	cfg := SimFromEnv()
	if cfg.MoveSpeed != 12.5 {
		t.Errorf("expected MoveSpeed 12.5, got %v", cfg.MoveSpeed)
	}
}

func TestSessionFromEnvInvalidValueIgnored(t *testing.T) {
	os.Setenv("AFPS_SESSION_TTL_SECONDS", "not-a-number")
	defer os.Unsetenv("AFPS_SESSION_TTL_SECONDS")

	cfg := SessionFromEnv()
	if cfg.SessionTTL != DefaultSessionConfig().SessionTTL {
		t.Errorf("expected default TTL on invalid env value, got %v", cfg.SessionTTL)
	}
}

func TestSessionFromEnvOverrideApplied(t *testing.T) {
	os.Setenv("AFPS_SESSION_TTL_SECONDS", "45")
	defer os.Unsetenv("AFPS_SESSION_TTL_SECONDS")

	cfg := SessionFromEnv()
	if cfg.SessionTTL != 45*time.Second {
		t.Errorf("expected 45s TTL, got %v", cfg.SessionTTL)
	}
}

func TestServerFromEnvBearerToken(t *testing.T) {
	os.Setenv("AFPS_BEARER_TOKEN", "secret-token")
	defer os.Unsetenv("AFPS_BEARER_TOKEN")

	cfg := ServerFromEnv()
	if cfg.BearerToken != "secret-token" {
		t.Errorf("expected bearer token to be read from env, got %q", cfg.BearerToken)
	}
}

func TestServerFromEnvPortDefaultsWhenZeroOrUnset(t *testing.T) {
	os.Unsetenv("PORT")
	cfg := ServerFromEnv()
	if cfg.Port != DefaultServer().Port {
		t.Errorf("expected default port %d, got %d", DefaultServer().Port, cfg.Port)
	}

	os.Setenv("PORT", "0")
	defer os.Unsetenv("PORT")
	cfg = ServerFromEnv()
	if cfg.Port != DefaultServer().Port {
		t.Errorf("expected default port %d for PORT=0, got %d", DefaultServer().Port, cfg.Port)
	}
}

func TestSnapshotConfigTickDuration(t *testing.T) {
	cfg := SnapshotConfig{TickRate: 60}
	want := time.Second / 60
	if cfg.TickDuration() != want {
		t.Errorf("expected tick duration %v, got %v", want, cfg.TickDuration())
	}
}

func TestSnapshotConfigTickDurationZeroRateFallsBackToOneSecond(t *testing.T) {
	cfg := SnapshotConfig{TickRate: 0}
	if cfg.TickDuration() != time.Second {
		t.Errorf("expected 1s fallback for zero tick rate, got %v", cfg.TickDuration())
	}
}
