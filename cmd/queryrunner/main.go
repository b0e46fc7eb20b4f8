package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/eval"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/executor"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/output"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/resilience"
)

const appName = "queryrunner"

const usage = "Usage: queryrunner <config> <query-file> [start-query-number]"

func main() {
	if err := makeApp(os.Stdout).Run(os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func makeApp(stdout io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "rank every line of a query file against a configured corpus"
	app.ArgsUsage = "<config> <query-file> [start-query-number]"
	app.Writer = stdout
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "ranker",
			EnvVar: "RR_RANKER_METHOD",
			Usage:  "override ranker.method",
		},
		cli.StringFlag{
			Name:   "format",
			EnvVar: "RR_SEARCH_FORMAT",
			Usage:  "override search.format (trec or human)",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "override search.workers",
		},
	}
	app.Action = runMain
	// main owns the exit code.
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func runMain(appCtx *cli.Context) error {
	args := appCtx.Args()
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(appCtx.App.Writer, usage)
		return cli.NewExitError("", 1)
	}
	startNum := 1
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Fprintln(appCtx.App.Writer, usage)
			return cli.NewExitError("", 1)
		}
		startNum = n
	}

	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if v := appCtx.String("ranker"); v != "" {
		cfg.Ranker.Method = v
	}
	if v := appCtx.String("format"); v != "" {
		cfg.Search.Format = v
	}
	if appCtx.IsSet("workers") {
		cfg.Search.Workers = appCtx.Int("workers")
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines, err := readQueries(args[1])
	if err != nil {
		return err
	}
	return run(ctx, cfg, lines, startNum, appCtx.App.Writer)
}

func run(ctx context.Context, cfg *config.Config, lines []string, startNum int, stdout io.Writer) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	eng, err := engine.Open(ctx, cfg, m)
	if err != nil {
		return err
	}
	exec, err := eng.Executor(cfg.Ranker.Method, cfg.Ranker.Params)
	if err != nil {
		return err
	}
	formatter, err := output.New(cfg.Search.Format, eng.Index, cfg.Search.RunTag)
	if err != nil {
		return err
	}

	var report *eval.Report
	if cfg.Eval.QrelsPath != "" {
		qrels, err := eval.LoadQrels(cfg.Eval.QrelsPath)
		if err != nil {
			return err
		}
		report = eval.NewReport(qrels, cfg.Eval.Depth)
	}

	opts := []executor.RunnerOption{}
	if m != nil {
		opts = append(opts, executor.WithRunMetrics(m))
	}
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, executor.WithResultCache(newResultCache(redisClient, cfg.Redis.CacheTTL, m)))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		collector := events.NewCollector(producer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, executor.WithTracker(collector))
		slog.Info("query events enabled", "topic", cfg.Kafka.Topics.QueryEvents)
	}

	start := time.Now()
	runner := executor.NewRunner(eng.Builder, exec, executor.BatchConfig{
		RankerName:   strings.ToLower(cfg.Ranker.Method),
		K:            cfg.Search.NumResults,
		Workers:      cfg.Search.Workers,
		QueryTimeout: cfg.Search.QueryTimeout,
		StartNumber:  startNum,
	}, opts...)

	out := bufio.NewWriter(stdout)
	err = runner.Run(ctx, lines, func(res executor.QueryResult) error {
		if report != nil {
			names := make([]string, len(res.Results))
			for i, r := range res.Results {
				names[i] = index.DocName(eng.Index, r.DocID)
			}
			report.Add(res.Number, names)
		}
		return formatter.Format(out, res.Number, res.Results)
	})
	if err != nil {
		_ = out.Flush()
		return err
	}

	if report != nil {
		if err := report.Summary().Write(os.Stderr, cfg.Eval.Depth); err != nil {
			return err
		}
	}
	if err := output.Elapsed(out, time.Since(start)); err != nil {
		return err
	}
	return out.Flush()
}

// readQueries returns one query per line. Every line counts towards query
// numbering, blank ones included.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading query file %s: %w", path, err)
	}
	return lines, nil
}

func newResultCache(store cache.Store, ttl time.Duration, m *metrics.Metrics) *cache.QueryCache {
	return cache.New(store, ttl, m, cache.WithBreaker(resilience.NewBreaker("redis", 5, 30*time.Second)))
}
