// Package main is the moderation tool. It talks to the backend's Postgres
// directly to verify workers, change tiers and reset usage counters.
package main

import (
	"cmp"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/gigmarket/gigmarket/internal/config"
	"github.com/gigmarket/gigmarket/internal/db"
	"github.com/gigmarket/gigmarket/internal/logger"
	"github.com/gigmarket/gigmarket/internal/models"
	"github.com/gigmarket/gigmarket/internal/repository"
	"github.com/gigmarket/gigmarket/internal/service"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

// Moderator is what the commands need from the moderation service.
type Moderator interface {
	PendingWorkers(ctx context.Context, limit int) ([]models.Profile, error)
	Verify(ctx context.Context, id string, verified bool) error
	ChangeTier(ctx context.Context, id string, tier models.Tier) error
	ResetUsage(ctx context.Context, ids []string) (int64, error)
}

type command struct {
	name  string
	id    string
	tier  string
	limit int
}

// run executes cmd against m and writes the outcome to out.
func run(ctx context.Context, m Moderator, cmd command, out io.Writer) error {
	switch cmd.name {
	case "list":
		workers, err := m.PendingWorkers(ctx, cmd.limit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(workers)
	case "verify", "unverify":
		if cmd.id == "" {
			return fmt.Errorf("please provide -id")
		}
		verified := cmd.name == "verify"
		if err := m.Verify(ctx, cmd.id, verified); err != nil {
			return err
		}
		state := "unverified"
		if verified {
			state = "verified"
		}
		fmt.Fprintf(out, "%s: %s\n", cmd.id, state)
	case "tier":
		if cmd.id == "" || cmd.tier == "" {
			return fmt.Errorf("please provide -id and -tier")
		}
		if err := m.ChangeTier(ctx, cmd.id, models.Tier(cmd.tier)); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: tier %s\n", cmd.id, cmd.tier)
	case "reset-usage":
		var ids []string
		for _, id := range strings.Split(cmd.id, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return fmt.Errorf("please provide -id=a,b,c")
		}
		n, err := m.ResetUsage(ctx, ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "reset usage of %d profiles\n", n)
	default:
		return fmt.Errorf("unknown command: %s", cmd.name)
	}
	return nil
}

func main() {
	var (
		cmd     command
		showVer bool
	)

	fs := flag.CommandLine
	fs.StringVar(&cmd.name, "cmd", "", "command: list | verify | unverify | tier | reset-usage")
	fs.StringVar(&cmd.id, "id", "", "profile id (comma separated for reset-usage)")
	fs.StringVar(&cmd.tier, "tier", "", "subscription tier: free | basic | pro")
	fs.IntVar(&cmd.limit, "limit", service.DefaultPendingLimit, "max rows for list")
	fs.BoolVar(&showVer, "version", false, "show build version and date")

	ctx := context.Background()
	options, err := config.Load(ctx, fs, os.Args[1:], envconfig.OsLookuper())
	if err != nil {
		log.Fatal(err)
	}

	if showVer {
		fmt.Printf("gigmarket admin\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	lg := logger.New()
	defer func() { _ = lg.Log.Sync() }()
	if err := lg.Init(options.LogLevel); err != nil {
		log.Fatal(err)
	}
	zapLogger := lg.Log

	if options.DatabaseDSN == "" {
		zapLogger.Fatal("database DSN is required (-d or GIG_DATABASE_DSN)")
	}
	postgresDB, err := db.OpenPostgres(ctx, options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	svc := service.NewModerationService(repository.NewPostgresProfileRepository(postgresDB))
	if err := run(ctx, svc, cmd, os.Stdout); err != nil {
		zapLogger.Error("command failed", zap.String("cmd", cmd.name), zap.Error(err))
		os.Exit(1)
	}
}
