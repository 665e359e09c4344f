package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/config"
	"github.com/billslocker/backend/internal/logging"
	"github.com/billslocker/backend/internal/models"
	"github.com/billslocker/backend/internal/services"
)

// app is built lazily by commands that need storage.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	items    services.ItemStore
	receipts *services.ReceiptService
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "lockerctl",
		Short:        "Maintenance tasks for the Warranty & Bills Locker",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file")

	open := func(cmd *cobra.Command) (*app, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, err
		}
		logger, err := logging.New(cfg.LogLevel, "console")
		if err != nil {
			return nil, err
		}
		items, err := services.OpenItemStore(cmd.Context(), services.StoreOptions{
			Driver:        cfg.StoreDriver,
			MongoURI:      cfg.MongoURI,
			MongoDatabase: cfg.MongoDatabase,
			SQLitePath:    cfg.SQLitePath,
			DataDir:       cfg.DataDir,
		}, logger)
		if err != nil {
			return nil, err
		}
		receipts, err := services.NewReceiptService(cfg.UploadDir, cfg.MaxUploadBytes)
		if err != nil {
			items.Close(cmd.Context())
			return nil, err
		}
		return &app{cfg: cfg, logger: logger, items: items, receipts: receipts}, nil
	}

	root.AddCommand(newOrphansCmd(open), newItemsCmd(open))
	return root
}

type opener func(cmd *cobra.Command) (*app, error)

// errVolatileStore is returned when the orphan commands would run against a
// memory store with no snapshot. Such a store is private to the server
// process, so every receipt would look unreferenced.
var errVolatileStore = errors.New("lockerctl cannot see the server's volatile memory store: set DATA_DIR or use the mongo or sqlite driver")

// scanner refuses stores whose contents lockerctl cannot observe.
func (a *app) scanner(minAge time.Duration) (*services.OrphanScanner, error) {
	if a.cfg.StoreDriver == services.DriverMemory && a.cfg.DataDir == "" {
		return nil, errVolatileStore
	}
	return services.NewOrphanScanner(a.items, a.receipts, a.logger).WithMinAge(minAge), nil
}

func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	a.items.Close(ctx)
	a.logger.Sync()
}

func newOrphansCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Find or remove receipt files no item references",
	}
	var minAge time.Duration
	cmd.PersistentFlags().DurationVar(&minAge, "min-age", services.DefaultOrphanMinAge,
		"ignore files modified more recently than this")

	scan := &cobra.Command{
		Use:   "scan",
		Short: "List orphaned receipt files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			scanner, err := a.scanner(minAge)
			if err != nil {
				return err
			}
			report, err := scanner.Scan(cmd.Context())
			if err != nil {
				return err
			}
			printOrphans(cmd.OutOrStdout(), report, "orphaned")
			return nil
		},
	}

	var dryRun bool
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete orphaned receipt files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			scanner, err := a.scanner(minAge)
			if err != nil {
				return err
			}
			report, err := scanner.Prune(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			printOrphans(cmd.OutOrStdout(), report, verb)
			return nil
		},
	}
	prune.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be deleted")

	cmd.AddCommand(scan, prune)
	return cmd
}

func newItemsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect stored items",
	}

	var search, category string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			items, err := a.items.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), models.FilterItems(items, search, category))
			return nil
		},
	}
	list.Flags().StringVarP(&search, "q", "q", "", "case-insensitive search over title and description")
	list.Flags().StringVar(&category, "category", models.CategoryAll, "category to show, or all")

	cmd.AddCommand(list)
	return cmd
}

func printOrphans(w io.Writer, report *models.OrphanReport, verb string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, o := range report.Orphans {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Name, o.Size, o.ModTime)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d of %d receipt files %s\n", len(report.Orphans), report.Scanned, verb)
	if report.Recent > 0 {
		fmt.Fprintf(w, "%d unreferenced files skipped as too recent\n", report.Recent)
	}
}

func printItems(w io.Writer, items []models.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPURCHASED\tEXPIRES\tPRICE\tRECEIPT")
	for _, it := range items {
		expires, price := "-", "-"
		if it.ExpiryDate != nil {
			expires = it.ExpiryDate.Format("2006-01-02")
		}
		if it.Price != nil {
			price = it.Price.StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.Title, it.Category, it.PurchaseDate.Format("2006-01-02"), expires, price, it.ReceiptPath)
	}
	tw.Flush()
}
