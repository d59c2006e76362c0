// Command adminhash provisions an admin access hash directly against the
// database, for bootstrapping a deployment that has none yet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	adminservice "trialgate/internal/admin/service"
	adminstore "trialgate/internal/admin/store"
	"trialgate/internal/platform/config"
	"trialgate/internal/platform/database"
	"trialgate/internal/platform/logger"
	"trialgate/migrations"
	auditpostgres "trialgate/pkg/platform/audit/store/postgres"
	"trialgate/pkg/platform/audit/publisher"
	"trialgate/pkg/platform/tx"
)

type output struct {
	AccessHash  string    `json:"accessHash"`
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func main() {
	description := flag.String("description", "bootstrap", "Label stored with the hash")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if err := run(*description, *asJSON); err != nil {
		fmt.Fprintln(os.Stderr, "adminhash:", err)
		os.Exit(1)
	}
}

func run(description string, asJSON bool) error {
	cfg := config.FromEnv()
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required; in-memory hashes would vanish with this process")
	}
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.New(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, nil)
	if err != nil {
		return err
	}
	defer pool.Close() //nolint:errcheck // process exits next
	if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
		return err
	}

	db := pool.DB()
	svc := adminservice.New(adminstore.NewPostgres(db),
		adminservice.WithLogger(log),
		adminservice.WithTx(tx.NewPostgres(db)),
		adminservice.WithAuditPublisher(publisher.New(auditpostgres.New(db))),
	)
	a, err := svc.Create(ctx, description)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(output{AccessHash: a.Hash, ID: a.ID.String(), Description: a.Description, CreatedAt: a.CreatedAt})
	}
	fmt.Printf("Admin access hash: %s\n", a.Hash)
	fmt.Println("Save this hash securely. Send it in the X-Admin-Hash header to reach admin endpoints.")
	return nil
}
