package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"medbridge/config"
	"medbridge/internal/repository"
	"medbridge/internal/services"
	"medbridge/pkg/database"

	"github.com/spf13/pflag"
)

const usage = `
MedBridge - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create or update all tables and triggers
  status      Show database connection and table status
  seed-dev    Seed development users and print access tokens for them
  truncate    Truncate all tables (DANGEROUS)

Flags:
`

func main() {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	tokenTTL := flags.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by seed-dev")
	yes := flags.BoolP("yes", "y", false, "confirm destructive commands")
	flags.Usage = func() {
		fmt.Print(usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if flags.NArg() < 1 {
		flags.Usage()
		os.Exit(1)
	}

	command := flags.Arg(0)

	cfg := config.LoadConfig()
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	case "seed-dev":
		runSeedDevelopment(cfg, *tokenTTL)
	case "truncate":
		runTruncate(*yes)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flags.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("🚀 Running migrations UP...")

	if err := database.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus() {
	log.Println("🔍 Checking database status...")

	if err := database.Ping(); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	for _, table := range repository.TableNames() {
		exists, err := database.TableExists(table)
		if err != nil {
			log.Printf("⚠️  Error checking table %s: %v", table, err)
			continue
		}
		if exists {
			count, _ := database.GetTableCount(table)
			log.Printf("✅ Table %-26s exists (%d rows)", table, count)
		} else {
			log.Printf("❌ Table %-26s does not exist", table)
		}
	}
}

func runSeedDevelopment(cfg *config.Config, ttl time.Duration) {
	log.Println("🌱 Seeding database (development mode)...")

	users, err := database.SeedDevelopment(database.DB, database.DefaultDevUsers())
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	auth := services.NewAuthService(cfg.JWTSecret)
	log.Println("📊 Dev users and tokens:")
	for _, u := range users {
		token, err := auth.IssueToken(u.ID, u.Role, ttl)
		if err != nil {
			log.Fatalf("❌ Token signing failed for %s: %v", u.ID, err)
		}
		fmt.Printf("%-16s %-10s %s\n", u.ID, u.Role, token)
	}
	log.Println("✅ Development seeding completed!")
}

func runTruncate(confirmed bool) {
	if !confirmed {
		log.Fatalf("⚠️  truncate deletes every row; re-run with --yes to confirm")
	}
	log.Println("⚠️  WARNING: This will TRUNCATE all tables!")

	if err := database.TruncateAllTables(); err != nil {
		log.Fatalf("❌ Truncate failed: %v", err)
	}

	log.Println("✅ All tables truncated!")
}
