package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ryogrid/bufpool/common"
	"github.com/ryogrid/bufpool/storage/buffer"
	"github.com/ryogrid/bufpool/storage/disk"
	"github.com/ryogrid/bufpool/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// Bench is one configured workload run
type Bench struct {
	ConfigPath string
	Config     common.Config

	Stdout io.Writer
}

// Result summarizes a finished run
type Result struct {
	Ops        int
	Retries    int
	Hits       float64
	Misses     float64
	Evictions  float64
	WriteBacks float64
	DiskReads  uint64
	DiskWrites uint64
	Elapsed    time.Duration
}

func newRunCommand(stdout io.Writer) *cobra.Command {
	b := &Bench{Config: common.DefaultConfig(), Stdout: stdout}
	ccmd := &cobra.Command{
		Use:   "run",
		Short: "Run the random page workload",
		RunE: func(c *cobra.Command, args []string) error {
			if err := b.loadConfig(c.Flags()); err != nil {
				return err
			}
			res, err := b.Run(c.Context())
			if err != nil {
				return err
			}
			res.Print(b.Stdout)
			return nil
		},
	}

	flags := ccmd.Flags()
	flags.StringVarP(&b.ConfigPath, "config", "c", "", "TOML configuration file to read from")
	flags.Uint32Var(&b.Config.PoolSize, "pool-size", b.Config.PoolSize, "number of frames in the buffer pool")
	flags.StringVar(&b.Config.Replacer, "replacer", b.Config.Replacer, "replacement policy: lru or clock")
	flags.IntVar(&b.Config.Workers, "workers", b.Config.Workers, "number of concurrent workers")
	flags.IntVar(&b.Config.OpsPerWorker, "ops", b.Config.OpsPerWorker, "fetch/unpin cycles per worker")
	flags.IntVar(&b.Config.PageCount, "pages", b.Config.PageCount, "number of pages created before the workload starts")
	flags.BoolVar(&b.Config.VirtualDisk, "virtual-disk", b.Config.VirtualDisk, "keep the database in memory")
	flags.StringVar(&b.Config.DBFile, "db-file", b.Config.DBFile, "database file")
	flags.StringVar(&b.Config.MetricsAddr, "metrics-addr", b.Config.MetricsAddr, "serve prometheus metrics on this address while running")
	flags.StringVar(&b.Config.LogLevel, "log-level", b.Config.LogLevel, "debug, info, warn or error")
	return ccmd
}

// loadConfig reads the config file, if any, and lets explicitly set flags win over it
func (b *Bench) loadConfig(flags *pflag.FlagSet) error {
	if b.ConfigPath == "" {
		return b.Config.Validate()
	}
	fromFile, err := common.LoadConfig(b.ConfigPath)
	if err != nil {
		return err
	}
	overrides := b.Config
	b.Config = fromFile
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "pool-size":
			b.Config.PoolSize = overrides.PoolSize
		case "replacer":
			b.Config.Replacer = overrides.Replacer
		case "workers":
			b.Config.Workers = overrides.Workers
		case "ops":
			b.Config.OpsPerWorker = overrides.OpsPerWorker
		case "pages":
			b.Config.PageCount = overrides.PageCount
		case "virtual-disk":
			b.Config.VirtualDisk = overrides.VirtualDisk
		case "db-file":
			b.Config.DBFile = overrides.DBFile
		case "metrics-addr":
			b.Config.MetricsAddr = overrides.MetricsAddr
		case "log-level":
			b.Config.LogLevel = overrides.LogLevel
		}
	})
	return b.Config.Validate()
}

func (b *Bench) openDisk() (disk.DiskManager, error) {
	if b.Config.VirtualDisk {
		return disk.NewVirtualDiskManagerImpl(b.Config.DBFile), nil
	}
	return disk.NewDiskManagerImpl(b.Config.DBFile)
}

// Run creates the pages, drives the workers and checks the pool afterwards
func (b *Bench) Run(ctx context.Context) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := common.SetLogLevel(b.Config.LogLevel); err != nil {
		return nil, err
	}

	dm, err := b.openDisk()
	if err != nil {
		return nil, errors.Wrap(err, "opening disk")
	}
	defer dm.ShutDown()

	replacer, err := buffer.NewReplacer(b.Config.Replacer, b.Config.PoolSize)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	metrics := buffer.NewMetrics(reg)
	bpm := buffer.NewBufferPoolManager(b.Config.PoolSize, dm, buffer.WithReplacer(replacer), buffer.WithMetrics(metrics))

	if b.Config.MetricsAddr != "" {
		srv := &http.Server{Addr: b.Config.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				common.Logger.WithError(err).Warn("metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	pageIDs, err := createPages(bpm, b.Config.PageCount)
	if err != nil {
		return nil, err
	}
	common.Logger.WithFields(logrus.Fields{
		"pool_size": b.Config.PoolSize,
		"replacer":  b.Config.Replacer,
		"pages":     len(pageIDs),
		"workers":   b.Config.Workers,
	}).Info("starting workload")

	start := time.Now()
	retries := make([]int, b.Config.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < b.Config.Workers; w++ {
		w := w
		g.Go(func() error {
			n, err := worker(gctx, bpm, pageIDs, b.Config.OpsPerWorker, int64(w)+1)
			retries[w] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if err := bpm.Audit(); err != nil {
		return nil, errors.Wrap(err, "audit after workload")
	}
	if err := bpm.FlushAllPages(); err != nil {
		return nil, err
	}

	res := &Result{
		Ops:        b.Config.Workers * b.Config.OpsPerWorker,
		Hits:       testutil.ToFloat64(metrics.Hits),
		Misses:     testutil.ToFloat64(metrics.Misses),
		Evictions:  testutil.ToFloat64(metrics.Evictions),
		WriteBacks: testutil.ToFloat64(metrics.WriteBacks),
		DiskReads:  dm.GetNumReads(),
		DiskWrites: dm.GetNumWrites(),
		Elapsed:    elapsed,
	}
	for _, n := range retries {
		res.Retries += n
	}
	return res, nil
}

func createPages(bpm *buffer.BufferPoolManager, n int) ([]types.PageID, error) {
	pageIDs := make([]types.PageID, 0, n)
	for i := 0; i < n; i++ {
		pg, err := bpm.NewPage()
		if err != nil {
			return nil, errors.Wrapf(err, "creating page %d", i)
		}
		pageIDs = append(pageIDs, pg.GetPageId())
		if err := bpm.UnpinPage(pg.GetPageId(), true); err != nil {
			return nil, err
		}
	}
	return pageIDs, nil
}

// worker runs ops fetch/unpin cycles on random pages and returns how often the pool was exhausted
func worker(ctx context.Context, bpm *buffer.BufferPoolManager, pageIDs []types.PageID, ops int, seed int64) (int, error) {
	if len(pageIDs) == 0 {
		return 0, nil
	}
	rnd := rand.New(rand.NewSource(seed))
	retries := 0
	for done := 0; done < ops; {
		if err := ctx.Err(); err != nil {
			return retries, err
		}
		pageID := pageIDs[rnd.Intn(len(pageIDs))]
		pg, err := bpm.FetchPage(pageID)
		if errors.Is(err, buffer.ErrPoolExhausted) {
			retries++
			time.Sleep(time.Microsecond)
			continue
		}
		if err != nil {
			return retries, err
		}

		dirty := rnd.Intn(4) == 0
		if dirty {
			pg.WLatch()
			pg.Data()[rnd.Intn(common.PageSize)]++
			pg.WUnlatch()
		} else {
			t := pg.RLatch()
			_ = pg.Data()[0]
			pg.RUnlatch(t)
		}
		if err := bpm.UnpinPage(pageID, dirty); err != nil {
			return retries, err
		}
		done++
	}
	return retries, nil
}

func (r *Result) Print(w io.Writer) {
	fmt.Fprintf(w, "ops:         %d in %v\n", r.Ops, r.Elapsed)
	fmt.Fprintf(w, "hits:        %.0f\n", r.Hits)
	fmt.Fprintf(w, "misses:      %.0f\n", r.Misses)
	fmt.Fprintf(w, "evictions:   %.0f\n", r.Evictions)
	fmt.Fprintf(w, "write-backs: %.0f\n", r.WriteBacks)
	fmt.Fprintf(w, "disk reads:  %d\n", r.DiskReads)
	fmt.Fprintf(w, "disk writes: %d\n", r.DiskWrites)
	fmt.Fprintf(w, "retries:     %d\n", r.Retries)
}
