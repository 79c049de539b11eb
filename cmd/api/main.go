package main

import (
	"context"
	"log"

	"eventify-backend/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	// Refuse to start without a signing key; a defaulted secret would
	// make every admin token forgeable.
	codec, err := core.NewTokenCodec(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("JWT_SECRET must be set: %v", err)
	}

	policy := core.DefaultAccessPolicy()
	if cfg.PolicyFile != "" {
		policy, err = core.LoadAccessPolicy(cfg.PolicyFile)
		if err != nil {
			log.Fatalf("failed to load access policy %s: %v", cfg.PolicyFile, err)
		}
		log.Printf("access policy loaded from %s", cfg.PolicyFile)
	}

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	adminRepo := core.NewPgAdminRepository(db)
	if err := core.BootstrapAdmin(ctx, adminRepo, cfg); err != nil {
		log.Fatalf("failed to bootstrap admin: %v", err)
	}

	authService := core.NewRepositoryAuthService(adminRepo)
	storage := core.NewHTTPStorageClient(cfg.StorageURL, cfg.StorageServiceKey, cfg.StorageBucket)

	r := core.NewRouter(cfg, codec, policy, authService, adminRepo, db, redisClient, storage)
	log.Printf("api listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
