// Command migrate provisions a PostgreSQL instance with the application
// schema and seed rows, the same sequence the server runs when it falls
// back to the local backend. Useful for preparing an instance ahead of
// time or inspecting what a bootstrap produced.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/driftsec/phishdeck/internal/config"
	"github.com/driftsec/phishdeck/internal/store/postgres"
)

func main() {
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		}
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		dsn = cfg.Database.LocalDSN()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	if listOnly {
		rows, err := db.QueryContext(ctx,
			"SELECT tablename FROM pg_tables WHERE schemaname='public' ORDER BY tablename")
		if err != nil {
			log.Fatal(err)
		}
		defer rows.Close()
		n := 0
		for rows.Next() {
			var t string
			rows.Scan(&t)
			fmt.Println(" ", t)
			n++
		}
		fmt.Printf("Total: %d tables\n", n)
		return
	}

	seed := postgres.SeedOptions{
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
	if err := postgres.EnsureSchema(ctx, db, seed); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	log.Println("Schema and seed rows in place")
}
