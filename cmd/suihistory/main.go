package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/suihistory/internal/api"
	"github.com/mtlprog/suihistory/internal/config"
	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/export"
	"github.com/mtlprog/suihistory/internal/portfolio"
	"github.com/mtlprog/suihistory/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "suihistory",
		Usage: "reconstruct Sui portfolio value history",
		Commands: []*cli.Command{
			serveCommand(),
			historyCommand(),
			exportCommand(),
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("suihistory: %v", err)
	}
}

var (
	accountFlag = &cli.StringFlag{
		Name:     "account",
		Aliases:  []string{"a"},
		Usage:    "Sui address",
		Required: true,
	}
	timeframeFlag = &cli.StringFlag{
		Name:    "timeframe",
		Aliases: []string{"t"},
		Usage:   "day, week, month or year",
		Value:   string(domain.TimeframeWeek),
	}
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and background workers",
		Action: func(c *cli.Context) error {
			return serve(c.Context, config.Load())
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.QuoteWorkerInterval > 0 {
		go worker.NewQuoteWorker(a.prices, cfg.QuoteWorkerInterval, cfg.UpstreamTimeout).Run(ctx)
	}
	if a.cache != nil {
		go worker.NewCacheJanitor(a.cache, cfg.PriceCacheTTL).Run(ctx)
	}

	var snapshots *api.SnapshotHandler
	if a.snapshots != nil {
		for _, addr := range cfg.SnapshotAccounts {
			if err := a.snapshots.Track(ctx, addr, ""); err != nil {
				return fmt.Errorf("tracking %s: %w", addr, err)
			}
		}
		if cfg.SnapshotInterval > 0 {
			go worker.NewSnapshotWorker(a.snapshots, cfg.SnapshotInterval).Run(ctx)
		}
		snapshots = api.NewSnapshotHandler(a.snapshots)
	}

	if cfg.APIKey == "" {
		slog.Warn("API_KEY not set, API endpoints are unprotected")
	}

	handler := api.NewHandler(a.portfolio, a.prices, cfg.ReferenceCurrency)
	srv := api.NewServer(cfg.HTTPPort, handler, snapshots, cfg.APIKey)

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "print the value history of an account as JSON",
		Flags: []cli.Flag{
			accountFlag,
			timeframeFlag,
			&cli.StringFlag{
				Name:  "balance",
				Usage: "current balance override, in whole units (defaults to the on-chain balance)",
			},
		},
		Action: func(c *cli.Context) error {
			tf, err := domain.ParseTimeframe(c.String("timeframe"))
			if err != nil {
				return err
			}

			a, err := newApp(c.Context, config.Load())
			if err != nil {
				return err
			}
			defer a.Close()

			var h portfolio.History
			if v := c.String("balance"); v != "" {
				balance, perr := decimal.NewFromString(v)
				if perr != nil {
					return fmt.Errorf("%w: balance %q", domain.ErrInvalidInput, v)
				}
				h, err = a.portfolio.GetPortfolioHistory(c.Context, c.String("account"), balance, tf)
			} else {
				h, err = a.portfolio.GetAccountHistory(c.Context, c.String("account"), tf)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(h)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the value history of an account to a spreadsheet",
		Flags: []cli.Flag{
			accountFlag,
			timeframeFlag,
			&cli.StringFlag{Name: "xlsx", Usage: "write to a local .xlsx `FILE`"},
			&cli.BoolFlag{Name: "sheet", Usage: "write to the Google spreadsheet GOOGLE_SPREADSHEET_ID"},
		},
		Action: func(c *cli.Context) error {
			tf, err := domain.ParseTimeframe(c.String("timeframe"))
			if err != nil {
				return err
			}
			cfg := config.Load()

			var writer export.SheetWriter
			switch {
			case c.String("xlsx") != "" && c.Bool("sheet"):
				return errors.New("--xlsx and --sheet are mutually exclusive")
			case c.String("xlsx") != "":
				writer = export.NewXLSXWriter(c.String("xlsx"))
			case c.Bool("sheet"):
				if cfg.GoogleSpreadsheetID == "" || cfg.GoogleCredentialsJSON == "" {
					return errors.New("GOOGLE_SPREADSHEET_ID and GOOGLE_CREDENTIALS_JSON are required for --sheet")
				}
				sw, err := export.NewSheetsWriter(c.Context, cfg.GoogleSpreadsheetID, cfg.GoogleCredentialsJSON)
				if err != nil {
					return err
				}
				writer = sw
			default:
				return errors.New("one of --xlsx or --sheet is required")
			}

			a, err := newApp(c.Context, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := export.NewService(a.portfolio, writer).Export(c.Context, c.String("account"), tf)
			if err != nil {
				return err
			}
			slog.Info("history exported", "account", h.Account, "timeframe", tf,
				"sheet", export.SheetName(tf), "points", len(h.Points))
			return nil
		},
	}
}
