package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/todokeeper/internal/server/config"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/todokeeper/internal/server/services"
)

// Run connects to the configured database, applies pending migrations and
// runs the interactive create-user flow.
func Run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	identity := services.NewIdentityService(db, rm, cfg)
	_, err = CreateUser(ctx, identity, bufio.NewReader(in), out)
	return err
}
