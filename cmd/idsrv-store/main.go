package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/idsrv-docstore/internal/config"
	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/indexes"
	"github.com/alexjbarnes/idsrv-docstore/internal/logging"
	"github.com/alexjbarnes/idsrv-docstore/internal/metrics"
	"github.com/alexjbarnes/idsrv-docstore/internal/migration"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
	"github.com/alexjbarnes/idsrv-docstore/internal/registration"
)

var Version = "dev"

const usage = `usage: idsrv-store <command> [arguments]

commands:
  migrate <snapshot.yaml>   import clients and resources into the configuration store
  grants list [filter]      print persisted grants matching the filter
  grants purge <filter>     remove persisted grants matching the filter
  indexes                   save index definitions and wait until they are built
  version                   print the version

filter flags: -subject, -session, -client, -type

Stores are configured through the environment (CONFIG_STORE_URLS,
CONFIG_STORE_DATABASE, OPERATIONAL_STORE_URLS, OPERATIONAL_STORE_DATABASE).`

var errUsage = errors.New("invalid arguments")

func main() {
	args := os.Args[1:]

	// Handle version before config loading.
	if len(args) > 0 && args[0] == "version" {
		fmt.Println(Version)
		return
	}

	if err := run(args, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
		}

		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLoggerWithLevel(cfg.Environment, cfg.LogLevel)
	logger.Info("idsrv-store starting",
		slog.String("version", Version),
		slog.String("command", args[0]),
		slog.Bool("configuration_store", cfg.HasConfigurationStore()),
		slog.Bool("operational_store", cfg.HasOperationalStore()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := register(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	svc := b.Services()

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, svc, args[1:], logger)
	case "grants":
		return runGrants(ctx, svc, args[1:], out)
	case "indexes":
		return runIndexes(ctx, cfg, svc, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// register opens the configured store families.
func register(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*registration.Builder, error) {
	b := registration.New(logger, registration.WithMetrics(metrics.New(prometheus.NewRegistry())))

	if cfg.HasConfigurationStore() {
		configure, err := cfg.ConfigurationStore()
		if err != nil {
			return nil, err
		}

		if err := b.AddConfigurationStore(ctx, configure); err != nil {
			return nil, fmt.Errorf("opening configuration store: %w", err)
		}

		if cfg.CacheEnabled() {
			if err := b.AddConfigurationStoreCache(cfg.CacheExpiration, cfg.CacheSize); err != nil {
				b.Close()
				return nil, err
			}
		}
	}

	if cfg.HasOperationalStore() {
		configure, err := cfg.OperationalStore()
		if err != nil {
			b.Close()
			return nil, err
		}

		if err := b.AddOperationalStore(ctx, configure); err != nil {
			b.Close()
			return nil, fmt.Errorf("opening operational store: %w", err)
		}
	}

	return b, nil
}

func runMigrate(ctx context.Context, svc registration.Services, args []string, logger *slog.Logger) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: migrate takes one snapshot file", errUsage)
	}

	if svc.Configuration == nil {
		return errors.New("migrate needs CONFIG_STORE_URLS and CONFIG_STORE_DATABASE")
	}

	data, err := migration.LoadSnapshot(args[0])
	if err != nil {
		return err
	}

	store := svc.Configuration.DocumentStore()
	if err := migration.Run(ctx, logger, data, store); err != nil {
		return err
	}

	return store.WaitForIndexing(ctx, time.Minute)
}

func parseFilter(name string, args []string) (models.PersistedGrantFilter, error) {
	var f models.PersistedGrantFilter

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.SubjectID, "subject", "", "subject id")
	fs.StringVar(&f.SessionID, "session", "", "session id")
	fs.StringVar(&f.ClientID, "client", "", "client id")
	fs.StringVar(&f.Type, "type", "", "grant type")

	if err := fs.Parse(args); err != nil {
		return f, fmt.Errorf("%w: %v", errUsage, err)
	}

	return f, nil
}

func runGrants(ctx context.Context, svc registration.Services, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: grants needs list or purge", errUsage)
	}

	if svc.PersistedGrantStore == nil {
		return errors.New("grants needs OPERATIONAL_STORE_URLS and OPERATIONAL_STORE_DATABASE")
	}

	filter, err := parseFilter("grants "+args[0], args[1:])
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		grants, err := svc.PersistedGrantStore.GetAll(ctx, filter)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(out)
		for _, g := range grants {
			if err := enc.Encode(g); err != nil {
				return err
			}
		}

		return nil
	case "purge":
		// Purging with no filter would remove every grant.
		if err := filter.Validate(); err != nil {
			return err
		}

		return svc.PersistedGrantStore.RemoveAll(ctx, filter)
	default:
		return fmt.Errorf("%w: unknown grants command %q", errUsage, args[0])
	}
}

func runIndexes(ctx context.Context, cfg *config.Config, svc registration.Services, out io.Writer) error {
	type family struct {
		store *docdb.DocumentStore
		defs  []docdb.IndexDefinition
	}

	var families []family

	if svc.Configuration != nil {
		families = append(families, family{svc.Configuration.DocumentStore(), indexes.Configuration()})
	}

	if svc.Operational != nil {
		families = append(families, family{svc.Operational.DocumentStore(), indexes.Operational()})
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, f := range families {
		g.Go(func() error {
			if err := f.store.ExecuteIndexes(gctx, f.defs...); err != nil {
				return err
			}

			return f.store.WaitForIndexing(gctx, max(cfg.IndexWaitTimeout, time.Minute))
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, f := range families {
		for _, def := range f.defs {
			stale, err := f.store.IsStale(def.Name)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s\t%s\tstale=%t\n", f.store.Database(), def.Name, stale)
		}
	}

	return nil
}
