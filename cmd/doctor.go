package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/leadpulsehq/leadpulse/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("leadpulse doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Engine:")
	fmt.Printf("    %-16s %s\n", "Org:", cfg.Engine.OrgID)
	fmt.Printf("    %-16s %s\n", "Debounce:", cfg.DebounceDelay())
	fmt.Printf("    %-16s %s\n", "Lock TTL:", cfg.LockTTL())
	fmt.Printf("    %-16s %s\n", "Dedup TTL:", cfg.DedupTTL())

	fmt.Println()
	fmt.Println("  Reply:")
	if cfg.Reply.APIKey != "" {
		fmt.Printf("    %-16s llm (%s)\n", "Generator:", cfg.Reply.Model)
	} else {
		fmt.Printf("    %-16s deterministic rules\n", "Generator:")
	}

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.Database.PostgresDSN == "" {
		fmt.Printf("    %-16s in-memory (standalone)\n", "Mode:")
		return
	}
	fmt.Printf("    %-16s postgres (managed)\n", "Mode:")

	db, err := sql.Open("pgx", cfg.Database.PostgresDSN)
	if err != nil {
		fmt.Printf("    %-16s FAILED: %s\n", "Connection:", err)
		return
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fmt.Printf("    %-16s FAILED: %s\n", "Connection:", err)
		return
	}
	fmt.Printf("    %-16s OK\n", "Connection:")

	var version int64
	var dirty bool
	err = db.QueryRowContext(ctx,
		`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	switch {
	case err == sql.ErrNoRows, err != nil:
		fmt.Printf("    %-16s not applied (run: leadpulse migrate up)\n", "Migrations:")
	case dirty:
		fmt.Printf("    %-16s version %d (DIRTY)\n", "Migrations:", version)
	default:
		fmt.Printf("    %-16s version %d\n", "Migrations:", version)
	}
}
