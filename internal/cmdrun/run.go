// Package cmdrun wires cmd/seqflowd's "run" subcommand: open the
// Pebble-backed document store, start an EventStream demo consumer over it,
// and block until a shutdown signal arrives.
package cmdrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cfgpkg "github.com/cschjolb/seqflow/internal/config"
	"github.com/cschjolb/seqflow/internal/eventstore"
	"github.com/cschjolb/seqflow/internal/eventstore/docstore"
	"github.com/cschjolb/seqflow/internal/eventstream"
	pebblestore "github.com/cschjolb/seqflow/internal/storage/pebble"
	logpkg "github.com/cschjolb/seqflow/pkg/log"
)

// Options configures Run.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	LogLevel      string
	LogFormat     string
	// Filter is an optional CEL expression (see docstore.CompileFilter)
	// applied on top of the demo consumer's category filter.
	Filter string
}

// Run opens storage, resumes the demo consumer, and blocks until ctx is done
// or an interrupt/SIGTERM is received.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	level, err := logpkg.ParseLevel(opts.LogLevel)
	if err != nil {
		level = logpkg.InfoLevel
	}
	var formatter logpkg.Formatter = &logpkg.TextFormatter{}
	if opts.LogFormat == "json" {
		formatter = &logpkg.JSONFormatter{}
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormatter(formatter),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	store := docstore.Open(db)

	var source eventstore.EventSource = store
	if opts.Filter != "" {
		filter, err := docstore.CompileFilter(opts.Filter)
		if err != nil {
			return fmt.Errorf("compile filter: %w", err)
		}
		source = docstore.NewFilteredSource(store, filter)
		logger.Info("applying CEL filter", logpkg.Str("filter", opts.Filter))
	}

	es := eventstream.New(source, eventstream.Config{
		ReplayBuffer:             opts.Config.Stream.ReplayBuffer,
		LiveBuffer:               opts.Config.Stream.LiveBuffer,
		GapReplayDelay:           opts.Config.Stream.GapReplayDelay,
		MaxClockSkew:             opts.Config.Stream.MaxClockSkew,
		MaxReplayConsumptionWait: opts.Config.Stream.MaxReplayConsumptionWait,
		Workers:                  opts.Config.Stream.Workers,
		ConsumeTimeout:           opts.Config.Stream.ConsumeTimeout,
	}, logger.WithComponent("cmdrun"))

	logger.Info("starting seqflow", logpkg.Str("data_dir", opts.DataDir))

	consumer := newLoggingConsumer(logger.WithComponent("demo-consumer"))
	logger.Info("demo consumer group assigned", logpkg.Str("consumer_group", consumer.GroupID().String()))
	sub, err := es.Resume(sctx, consumer)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	defer sub.Cancel()

	logger.Info("seqflow running; waiting for shutdown signal")
	<-sctx.Done()
	logger.Info("shutting down")
	return nil
}
