package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lukemcguire/facetcrawl/config"
	"github.com/lukemcguire/facetcrawl/sink"
)

// sinkChain is the listing sink of one run. batcher is nil for JSON output.
type sinkChain struct {
	sink.Sink
	batcher *sink.Batcher
	logger  *slog.Logger
}

// Close flushes and closes the chain, then logs what the store received.
func (s *sinkChain) Close(ctx context.Context) error {
	err := s.Sink.Close(ctx)
	if s.batcher != nil {
		st := s.batcher.Stamp()
		s.logger.Info("sink closed",
			"committed", s.batcher.Committed(),
			"unsaved", s.batcher.Unsaved(),
			"date_add", st.DateAdd,
			"ver", st.Version,
			"run_id", st.RunID,
		)
	}
	return err
}

// unsaved returns the accepted listings lost to failed commits.
func (s *sinkChain) unsaved() int64 {
	if s.batcher == nil {
		return 0
	}
	return s.batcher.Unsaved()
}

// openSink builds the listing sink chain for sc: a store behind a Batcher, or
// a JSON writer, wrapped in a Deduper when dedup is on. stdout receives JSON
// output for the path "-".
func openSink(ctx context.Context, sc config.SinkConfig, stdout io.Writer, logger *slog.Logger) (*sinkChain, error) {
	chain := &sinkChain{logger: logger}
	switch sc.Kind {
	case config.SinkJSON:
		w, err := jsonOutput(sc.Path, stdout)
		if err != nil {
			return nil, err
		}
		chain.Sink = sink.NewJSONWriter(w)
		logger.Info("sink opened", "kind", sc.Kind, "path", sc.Path)

	case config.SinkSQLite, config.SinkPostgres:
		store, err := openStore(ctx, sc, logger)
		if err != nil {
			return nil, err
		}
		batcher, err := sink.NewBatcher(ctx, store,
			sink.WithLogger(logger.With("kind", sc.Kind)),
			sink.WithFlushSize(sc.FlushSize),
		)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		chain.Sink, chain.batcher = batcher, batcher

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownSinkKind, sc.Kind)
	}

	if !sc.Dedup {
		return chain, nil
	}
	dedup, err := sink.NewDeduper(chain.Sink)
	if err != nil {
		_ = chain.Sink.Close(ctx)
		return nil, fmt.Errorf("open dedup filter: %w", err)
	}
	chain.Sink = dedup
	return chain, nil
}

func openStore(ctx context.Context, sc config.SinkConfig, logger *slog.Logger) (sink.Store, error) {
	if sc.Kind == config.SinkPostgres {
		store, err := sink.OpenPostgres(ctx, sc.DSN, sc.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres sink: %w", err)
		}
		logger.Debug("postgres store opened", "dsn", sc.DSN)
		return store, nil
	}
	store, err := sink.OpenSQLite(sc.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite sink: %w", err)
	}
	logger.Debug("sqlite store opened", "path", store.Path())
	return store, nil
}

// stdoutWriter hides Close so the JSON writer leaves stdout open.
type stdoutWriter struct{ io.Writer }

func jsonOutput(path string, stdout io.Writer) (io.Writer, error) {
	if path == "-" {
		return stdoutWriter{stdout}, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, fmt.Errorf("create json output: %w", err)
	}
	return f, nil
}
