package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"afps-server/internal/api"
	"afps-server/internal/config"
	"afps-server/internal/ratelimit"
	"afps-server/internal/sim"
	"afps-server/internal/signaling"
	"afps-server/internal/tickloop"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found, using environment variables only")
		}
	} else {
		log.Println("loaded environment from ../.env")
	}

	log.Println("================================")
	log.Println("🎮 AFPS GAME SERVER")
	log.Println("================================")

	appConfig := config.Load()

	log.Printf("config: tick=%dHz snapshot=%dHz keyframe every %d, arena half-size=%.1f",
		appConfig.Snapshot.TickRate, appConfig.Snapshot.SnapshotRate, appConfig.Snapshot.KeyframeInterval, appConfig.Sim.ArenaHalfSize)

	// Collision mesh asset loading is an out-of-scope external collaborator
	// per spec.md §3; no loader is wired, so the world is always empty (arena
	// bounds only), even when a mesh path is configured.
	world := sim.NewCollisionWorld(nil)
	if config.CollisionMeshPath != "" {
		log.Printf("collision mesh path configured (%s) but no loader is wired; using arena bounds only", config.CollisionMeshPath)
	}

	allowedCharacterIDs := parseAllowedCharacterIDs(os.Getenv("AFPS_ALLOWED_CHARACTER_IDS"))

	store := signaling.New(signaling.Config{
		SessionTTL:             appConfig.Session.SessionTTL,
		OfferTimeout:           appConfig.Session.OfferTimeout,
		InputMaxTokens:         appConfig.Session.InputMaxTokens,
		InputRefillPerSecond:   appConfig.Session.InputRefillPerSecond,
		MaxInvalidInputs:       appConfig.Session.MaxInvalidInputs,
		MaxRateLimitDrops:      appConfig.Session.MaxRateLimitDrops,
		MaxClientHelloAttempts: appConfig.Session.MaxClientHelloAttempts,
		MaxPendingInputs:       appConfig.Session.MaxPendingInputs,
		AllowedCharacterIDs:    allowedCharacterIDs,
	})

	inputLimiter := ratelimit.New(appConfig.Session.InputMaxTokens, appConfig.Session.InputRefillPerSecond)
	loop := tickloop.New(
		store,
		appConfig.Snapshot.TickRate,
		appConfig.Snapshot.SnapshotRate,
		appConfig.Snapshot.KeyframeInterval,
		appConfig.Sim,
		world,
		inputLimiter,
	)

	debugCfg := api.DefaultObservabilityConfig()
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("debug server disabled: %v", err)
		}
	}

	if appConfig.Server.BearerToken == "" {
		log.Println("⚠️  AFPS_BEARER_TOKEN not set, signaling endpoints are unauthenticated")
	}

	server := api.NewServer(store, appConfig.Server.BearerToken)

	loop.Start()
	log.Println("🎮 tick loop started")

	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		log.Printf("📡 signaling server on http://localhost%s", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("%+v", errors.Wrap(err, "start signaling server"))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("🌐 server ready, press ctrl+c to stop")
	<-quit

	log.Println("shutting down...")
	loop.Stop()
	server.Stop()
	log.Println("goodbye")
}

// parseAllowedCharacterIDs splits a comma-separated env var into the
// allowlist set normalizeCharacterID checks against; an empty/unset env var
// means "allow any syntactically valid character id", per spec.md §4.F.
func parseAllowedCharacterIDs(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = true
		}
	}
	return out
}
