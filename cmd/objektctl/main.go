package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"objektbetreuer-backend/internal/application/live"
	"objektbetreuer-backend/internal/application/maintenance"
	"objektbetreuer-backend/internal/application/properties"
	"objektbetreuer-backend/internal/config"
	"objektbetreuer-backend/internal/infrastructure/database"
	"objektbetreuer-backend/internal/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "objektctl",
	Short: "Maintenance tasks for the Objektbetreuer portal",
	Long: `objektctl runs one-off maintenance against the portal database.
Connection settings come from the environment (.env is read if present).`,
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update all tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := connect(false)
		if err != nil {
			return err
		}
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		fmt.Println("Migration complete.")
		return nil
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire-invitations",
	Short: "Mark pending invitations past their expiry as expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service()
		if err != nil {
			return err
		}
		n, err := svc.ExpireInvitations(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Expired %d invitation(s).\n", n)
		return nil
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize-job-status",
	Short: "Rewrite legacy job statuses to the current vocabulary",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service()
		if err != nil {
			return err
		}
		counts, err := svc.NormalizeJobStatuses(cmd.Context())
		if err != nil {
			return err
		}
		legacy := make([]string, 0, len(counts))
		for s := range counts {
			legacy = append(legacy, s)
		}
		sort.Strings(legacy)
		for _, s := range legacy {
			fmt.Printf("%-12s %d\n", s, counts[s])
		}
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge-properties",
	Short: "Hard-delete a company's properties that were deactivated long ago",
	Long: `Hard-delete properties of one company that have been inactive for longer
than --older-than.

Example:
  objektctl purge-properties --company 6f1c... --older-than 2160h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("company")
		companyID, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("--company must be a company id: %w", err)
		}
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		svc, err := service()
		if err != nil {
			return err
		}
		n, err := svc.PurgeInactiveProperties(cmd.Context(), companyID, olderThan)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d propert(y/ies).\n", n)
		return nil
	},
}

// connect opens the database and, when withRedis is set, Redis.
func connect(withRedis bool) (*gorm.DB, *redis.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.IsProduction())
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("no database URL configured for APP_ENV=%s", cfg.Env)
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if !withRedis || cfg.RedisURL == "" {
		return db, nil, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return db, redis.NewClient(opt), nil
}

// service builds the maintenance service. Changes are published over Redis so
// running API instances refresh their live feeds.
func service() (*maintenance.Service, error) {
	db, rdb, err := connect(true)
	if err != nil {
		return nil, err
	}
	var changes live.Publisher
	if rdb != nil {
		changes = &live.RedisBridge{Rdb: rdb, Hub: live.NewHub()}
	} else {
		log.Warn().Msg("REDIS_URL not set, connected clients will not see maintenance changes until they reload")
	}
	return &maintenance.Service{
		DB:         db,
		Properties: &properties.Service{DB: db, Changes: changes},
		Changes:    changes,
	}, nil
}

func init() {
	purgeCmd.Flags().String("company", "", "Company id whose properties are purged (required)")
	purgeCmd.Flags().Duration("older-than", 90*24*time.Hour, "Minimum time since deactivation")
	_ = purgeCmd.MarkFlagRequired("company")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(purgeCmd)
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
