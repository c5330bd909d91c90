package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/campusmerch/api/internal/cart"
	"github.com/campusmerch/api/internal/config"
	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/kv"
	"github.com/campusmerch/api/internal/router"
	"github.com/campusmerch/api/internal/storage"
	"github.com/campusmerch/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	queries := database.New(pool)
	sessions := cart.NewManager(kv.NewMemoryStore(), queries, queries)
	uploads := storage.NewDiskStore(cfg.UploadDir, cfg.PublicBaseURL)

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, queries, pool, sessions, uploads, hub)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
