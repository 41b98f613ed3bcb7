package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Swind/go-pool-registry/core"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:    "load",
		Aliases: []string{"l"},
		Usage:   "Submit synthetic tasks to a configured pool and print the registry snapshot",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pool",
				Aliases: []string{"p"},
				Value:   core.DefaultPoolName,
				Usage:   "Target pool",
			},
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"n"},
				Value:   1000,
				Usage:   "Number of tasks to submit",
			},
			&cli.IntFlag{
				Name:  "submitters",
				Value: 4,
				Usage: "Concurrent submitting goroutines",
			},
			&cli.Float64Flag{
				Name:  "rate",
				Value: 0,
				Usage: "Submissions per second across all submitters, 0 for no limit",
			},
			&cli.DurationFlag{
				Name:  "work",
				Value: 10 * time.Millisecond,
				Usage: "Mean simulated work per task",
			},
			&cli.Float64Flag{
				Name:  "fail-ratio",
				Value: 0,
				Usage: "Fraction of tasks that return an error",
			},
		},

		Action: loadAction,
	}
}

type loadResult struct {
	accepted atomic.Int64
	refused  atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

func loadAction(c *cli.Context) error {
	pool := c.String("pool")
	tasks := c.Int("tasks")
	submitters := c.Int("submitters")
	if tasks < 1 || submitters < 1 {
		return cli.Exit("tasks and submitters must be at least 1", 1)
	}
	failRatio := c.Float64("fail-ratio")
	if failRatio < 0 || failRatio > 1 {
		return cli.Exit("fail-ratio must be within [0, 1]", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	registry := core.NewRegistry(cfg.RegistryOptions()...)
	defer registry.Close(context.Background())
	if err := cfg.Apply(registry); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to create pools: %v", err), 1)
	}
	if !registry.Has(pool) {
		return cli.Exit(fmt.Sprintf("Pool %q is not configured", pool), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r := c.Float64("rate"); r > 0 {
		limiter = rate.NewLimiter(rate.Limit(r), 1)
	}

	runID := uuid.NewString()
	registry.Logger().Info("load started",
		core.F("run", runID), core.F("pool", pool), core.F("tasks", tasks), core.F("submitters", submitters))

	work := c.Duration("work")
	var result loadResult
	var futures sync.WaitGroup
	var next atomic.Int64

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < submitters; i++ {
		g.Go(func() error {
			for next.Add(1) <= int64(tasks) {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				f, err := registry.Submit(pool, syntheticTask(work, failRatio))
				if err != nil {
					result.refused.Add(1)
					if errors.Is(err, core.ErrPoolNotFound) {
						return err
					}
					continue
				}
				result.accepted.Add(1)

				futures.Add(1)
				go func() {
					defer futures.Done()
					switch err := f.Wait(context.Background()); {
					case errors.Is(err, core.ErrTaskDiscarded):
						result.dropped.Add(1)
					case err != nil:
						result.failed.Add(1)
					}
				}()
			}
			return nil
		})
	}

	submitErr := g.Wait()
	futures.Wait()
	elapsed := time.Since(start)

	fmt.Printf("run %s: %d accepted, %d refused, %d failed, %d discarded in %v\n\n",
		runID, result.accepted.Load(), result.refused.Load(), result.failed.Load(), result.dropped.Load(),
		elapsed.Round(time.Millisecond))
	printSnapshot(os.Stdout, registry.Snapshot())

	if submitErr != nil && !errors.Is(submitErr, context.Canceled) {
		return cli.Exit(fmt.Sprintf("Load aborted: %v", submitErr), 1)
	}
	return nil
}

var errSynthetic = errors.New("synthetic failure")

func syntheticTask(mean time.Duration, failRatio float64) core.Task {
	return func(ctx context.Context) error {
		d := mean
		if mean > 0 {
			d = mean/2 + rand.N(mean)
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
		if rand.Float64() < failRatio {
			return errSynthetic
		}
		return nil
	}
}

func printSnapshot(w io.Writer, stats []core.PoolStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POOL\tSTATE\tWORKERS\tQUEUED\tSUBMITTED\tCOMPLETED\tOK\tDISCARDED\tREJECTED\tPANICKED\tAVG WAIT\tAVG EXEC\tMAX EXEC")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%v\t%v\t%v\n",
			s.Name, s.State, s.Workers, s.Queued, s.Submitted, s.Completed, s.CompletedSuccessfully,
			s.Discarded, s.Rejected, s.Panicked,
			s.AvgWait().Round(time.Microsecond), s.AvgExec().Round(time.Microsecond), s.MaxExec.Round(time.Microsecond))
	}
	tw.Flush()
}
