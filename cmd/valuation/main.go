package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	valuationapp "github.com/erp/valuation/internal/application/valuation"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/infrastructure/config"
	"github.com/erp/valuation/internal/infrastructure/event"
	"github.com/erp/valuation/internal/infrastructure/logger"
	"github.com/erp/valuation/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// reconcileParallelism bounds concurrent product audits
const reconcileParallelism = 4

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the JSON result, logs go to stderr
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	db, err := persistence.Open(&cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t := newTool(cfg, db, log)
	defer t.close()

	result, err := t.run(ctx, command, args)
	if errors.Is(err, errUnknownCommand) {
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal("Command failed", zap.String("command", command), zap.Error(err))
	}
	if err := writeResult(os.Stdout, result); err != nil {
		log.Fatal("Failed to write result", zap.Error(err))
	}
}

var errUnknownCommand = errors.New("unknown command")

// tool carries what the maintenance commands share. Every valuation event
// they raise goes through bus to the audit log.
type tool struct {
	cfg *config.Config
	db  *persistence.Database
	log *zap.Logger
	bus *event.InMemoryEventBus
}

func newTool(cfg *config.Config, db *persistence.Database, log *zap.Logger) *tool {
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(valuationapp.NewAuditLogHandler(log))
	return &tool{cfg: cfg, db: db, log: log, bus: bus}
}

func (t *tool) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.bus.Stop(ctx); err != nil {
		t.log.Error("Error stopping event bus", zap.Error(err))
	}
}

func (t *tool) run(ctx context.Context, command string, args []string) (any, error) {
	switch command {
	case "backfill":
		return t.backfill(ctx, args)
	case "reconcile":
		return t.reconcile(ctx, args)
	case "balance":
		return t.balance(ctx, args)
	}
	return nil, fmt.Errorf("%w: %q", errUnknownCommand, command)
}

// writeResult prints the command result as indented JSON
func writeResult(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func (t *tool) backfill(ctx context.Context, args []string) (*valuationapp.BackfillResult, error) {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report what would be created without writing")
	owner := fs.String("owner", "", "Restrict to one owner (default: all owners)")
	policy := fs.String("policy", t.cfg.Valuation.BackfillCostPolicy, "Cost policy: cost_or_price, cost_only")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := valuationapp.BackfillOptions{DryRun: *dryRun}
	if *owner != "" {
		id, err := uuid.Parse(*owner)
		if err != nil {
			return nil, fmt.Errorf("invalid -owner: %w", err)
		}
		opts.OwnerID = &id
	}

	svc, err := valuationapp.NewBackfillService(
		persistence.NewGormProductStockRepository(t.db.DB),
		persistence.NewGormTransactionScope(t.db.DB, t.cfg.Valuation.LockTimeout),
		t.log,
		valuationapp.BackfillConfig{
			Policy:    valuation.CostPolicy(*policy),
			Reference: t.cfg.Valuation.BackfillReference,
		},
	)
	if err != nil {
		return nil, err
	}
	svc.SetEventPublisher(t.bus)
	return svc.Backfill(ctx, opts)
}

func (t *tool) reconcile(ctx context.Context, args []string) ([]*valuationapp.ReconciliationReport, error) {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	owner := fs.String("owner", "", "Owner ID (required)")
	products := fs.String("products", "", "Comma-separated product IDs; empty audits the owner-level chain")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	ownerID, err := uuid.Parse(*owner)
	if err != nil {
		return nil, fmt.Errorf("invalid -owner: %w", err)
	}
	productIDs, err := parseProductIDs(*products)
	if err != nil {
		return nil, err
	}

	svc := valuationapp.NewReconciliationService(
		persistence.NewGormCostLayerRepository(t.db.DB),
		persistence.NewGormConsumptionRepository(t.db.DB),
		persistence.NewGormLedgerRepository(t.db.DB),
		t.log,
	)

	reports := make([]*valuationapp.ReconciliationReport, len(productIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileParallelism)
	for i, productID := range productIDs {
		g.Go(func() error {
			report, err := svc.Reconcile(gctx, ownerID, productID)
			if err != nil {
				return fmt.Errorf("product %s: %w", productID, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inconsistent := 0
	for _, r := range reports {
		if !r.Consistent() {
			inconsistent++
		}
	}
	t.log.Info("Reconciliation finished",
		zap.Int("products", len(reports)),
		zap.Int("inconsistent", inconsistent),
	)
	return reports, nil
}

func (t *tool) balance(ctx context.Context, args []string) (*valuationapp.BalanceResponse, error) {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	owner := fs.String("owner", "", "Owner ID (required)")
	product := fs.String("product", "", "Product ID; empty reads the owner-level chain")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	ownerID, err := uuid.Parse(*owner)
	if err != nil {
		return nil, fmt.Errorf("invalid -owner: %w", err)
	}
	productID := uuid.Nil
	if *product != "" {
		if productID, err = uuid.Parse(*product); err != nil {
			return nil, fmt.Errorf("invalid -product: %w", err)
		}
	}

	svc := valuationapp.NewValuationService(
		persistence.NewGormTransactionScope(t.db.DB, t.cfg.Valuation.LockTimeout),
		persistence.NewGormCostLayerRepository(t.db.DB),
		persistence.NewGormLedgerRepository(t.db.DB),
		t.log,
		valuationapp.DefaultServiceConfig(),
	)
	return svc.CurrentBalance(ctx, ownerID, productID)
}

// parseProductIDs splits a comma-separated list. An empty list selects the
// owner-level chain only.
func parseProductIDs(s string) ([]uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return []uuid.UUID{uuid.Nil}, nil
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid product ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printUsage() {
	fmt.Println(`Valuation maintenance tool

Usage:
  valuation <command> [flags]

Commands:
  backfill   [-dry-run] [-owner <id>] [-policy cost_or_price|cost_only]
             Create opening cost layers for stocked products that have none
  reconcile  -owner <id> [-products <id,id,...>]
             Audit ledger chains against cost layers
  balance    -owner <id> [-product <id>]
             Print the current running balance

Results are printed to stdout as JSON.`)
}
