// Command stockroom-admin runs operator tasks against the stockroom stores:
// creating users, exporting parts and printing the dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	accountstore "github.com/tilsley/stockroom/apps/server/internal/accounts/store"
	"github.com/tilsley/stockroom/apps/server/internal/accounts/store/pgmigrations"
	"github.com/tilsley/stockroom/apps/server/internal/config"
	"github.com/tilsley/stockroom/apps/server/internal/ghdb"
	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	invstore "github.com/tilsley/stockroom/apps/server/internal/inventory/store"
	ghplatform "github.com/tilsley/stockroom/apps/server/internal/platform/github"
	"github.com/tilsley/stockroom/apps/server/internal/platform/logger"
	pgplatform "github.com/tilsley/stockroom/apps/server/internal/platform/postgres"
)

func main() {
	a := &app{out: os.Stdout}
	a.openAccounts = a.postgresAccounts
	a.openInventory = a.githubInventory

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// postgresAccounts opens the accounts service on the configured database.
// CreateUser and ListUsers never touch sessions, so they stay in memory.
func (a *app) postgresAccounts(ctx context.Context, cfg *config.Config) (*accounts.Service, func(), error) {
	if cfg.Postgres.URL == "" {
		return nil, nil, fmt.Errorf("postgres.url (POSTGRES_URL) is required")
	}
	pool, err := pgplatform.New(ctx, cfg.Postgres.URL, pgmigrations.FS)
	if err != nil {
		return nil, nil, err
	}
	users := accountstore.NewPGStore(pool)
	svc := accounts.NewService(users, users, accountstore.NewMemStore(), accounts.NewTokens(cfg.Auth.JWTSecret), cfg.Auth.SessionTTL, logger.New(cfg.Log))
	return svc, pool.Close, nil
}

// githubInventory opens the inventory service on the configured repository.
func (a *app) githubInventory(_ context.Context, cfg *config.Config) (*inventory.Service, error) {
	gh, err := ghplatform.NewClient(ghplatform.Credentials{
		Token:          cfg.GitHub.Token,
		AppID:          cfg.GitHub.AppID,
		InstallationID: cfg.GitHub.InstallationID,
		PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
		BaseURL:        cfg.GitHub.APIURL,
	})
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log)
	repo, err := ghdb.New(gh, ghdb.Config{
		Owner:            cfg.RepoOwner(),
		Repo:             cfg.RepoName(),
		Branch:           cfg.GitHub.Branch,
		CommitterName:    cfg.GitHub.CommitterName,
		CommitterEmail:   cfg.GitHub.CommitterEmail,
		MaxAttempts:      cfg.GitHub.MaxAttempts,
		FetchConcurrency: cfg.GitHub.FetchConcurrency,
	}, log)
	if err != nil {
		return nil, err
	}
	return inventory.NewService(invstore.NewGitHubStore(repo, log), nil, nil, log), nil
}
