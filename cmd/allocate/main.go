/*
main.go - One-shot monthly run

PURPOSE:
  Runs a single work month against the SQLite store without starting the
  HTTP server. Prints a per-worker summary and optionally writes the run
  spreadsheet. Intended for cron jobs and for reviewing a month before
  publishing it.

COMMAND-LINE FLAGS:
  -month     Work month to run, "2006-01" (default: two months ago)
  -config    YAML configuration file (default: $PRODUCAO_CONFIG)
  -db        SQLite database path, overrides the configuration
  -forecast  Use forecast revenue instead of realized revenue
  -publish   Publish draft bills (default: false, dry run)
  -xlsx      Write the run spreadsheet to this path

EXIT CODES:
  0  success
  1  configuration or data quality error
  2  some documents failed to publish

SEE ALSO:
  - payroll/runner.go: The run itself
  - export/xlsx.go: Spreadsheet layout
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/librecode/producao/config"
	"github.com/librecode/producao/export"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/metrics"
	"github.com/librecode/producao/payroll"
	"github.com/librecode/producao/store/sqlite"
)

func main() {
	month := flag.String("month", "", "Work month to run (2006-01)")
	configPath := flag.String("config", "", "YAML configuration file")
	dbPath := flag.String("db", "", "SQLite database path (overrides configuration)")
	forecast := flag.Bool("forecast", false, "Use forecast revenue")
	publish := flag.Bool("publish", false, "Publish draft bills")
	xlsxPath := flag.String("xlsx", "", "Write the run spreadsheet to this path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.WithError(err).Fatal("invalid log configuration")
	}
	metrics.Init()

	runCfg, err := cfg.Run.Payroll()
	if err != nil {
		logger.WithError(err).Fatal("invalid run configuration")
	}
	if *forecast {
		runCfg.ForecastMode = true
	}

	period := generic.MonthOf(time.Now()).Previous().Previous()
	if *month != "" {
		if period, err = generic.ParseMonth(*month); err != nil {
			logger.WithError(err).Fatal("invalid month")
		}
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("failed to open database")
	}
	defer store.Close()

	var publisher payroll.Publisher
	if *publish {
		publisher = store
	}
	runner := payroll.NewRunner(store, generic.MultiCalendar{generic.BrazilianHolidays{}, store}, publisher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, runner, period, runCfg, *xlsxPath, logger))
}

func run(ctx context.Context, runner *payroll.Runner, period generic.Period, cfg payroll.Config, xlsxPath string, logger logrus.FieldLogger) int {
	res, err := runner.Run(ctx, period, cfg)
	var partial *generic.PartialWriteError
	if err != nil && !errors.As(err, &partial) {
		var dq *generic.DataQualityError
		if errors.As(err, &dq) {
			for _, issue := range dq.Issues {
				fmt.Fprintf(os.Stderr, "%s\t%s\n", issue.Code, issue.Message)
			}
		}
		logger.WithError(err).Error("run failed")
		return 1
	}

	printSummary(res)

	if xlsxPath != "" {
		data, err := export.BuildRunXLSX(res)
		if err != nil {
			logger.WithError(err).Error("building spreadsheet")
			return 1
		}
		if err := os.WriteFile(xlsxPath, data, 0o644); err != nil {
			logger.WithError(err).Error("writing spreadsheet")
			return 1
		}
		logger.WithField("path", xlsxPath).Info("spreadsheet written")
	}

	if partial != nil {
		for _, f := range partial.Failures {
			logger.WithFields(logrus.Fields{
				"worker": f.WorkerID,
				"kind":   f.Kind,
			}).WithError(f.Err).Error("publish failed")
		}
		return 2
	}
	return 0
}

func printSummary(res *payroll.RunResult) {
	fmt.Printf("Run %s  month %s  mode %s  payment %s\n\n",
		res.RunID, res.Period.Key(), res.Mode, res.PaymentDate.Date.Format("2006-01-02"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Worker\tKind\tBase\tINSS\tIRPF\tAdvances\tNet\t")
	for _, s := range res.Snapshots {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.WorkerID, s.Kind,
			generic.RoundCurrency(s.Base).StringFixed(2),
			generic.RoundCurrency(s.Contribution).StringFixed(2),
			generic.RoundCurrency(s.IncomeTax).StringFixed(2),
			generic.RoundCurrency(s.TotalAdvances).StringFixed(2),
			generic.RoundCurrency(s.Net).StringFixed(2))
	}
	w.Flush()
}
