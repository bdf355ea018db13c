// Package batch feeds raw messages from files and streams through a
// Provider with bounded concurrency.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/shineum/mandrill-dm/internal/parser"
	"github.com/shineum/mandrill-dm/internal/provider"
)

// StdinName is the argument that selects standard input.
const StdinName = "-"

// ErrMessageTooLarge is returned when a message exceeds the size limit.
var ErrMessageTooLarge = errors.New("message exceeds maximum size")

// Source is one raw RFC 5322 message.
type Source struct {
	// Name identifies the source in logs.
	Name string
	// Open returns the message bytes. The caller closes the reader.
	Open func() (io.ReadCloser, error)
}

// Config holds the settings for a Runner.
type Config struct {
	Provider       provider.Provider
	Workers        int
	MaxMessageSize int64
}

// Runner converts sources concurrently.
type Runner struct {
	provider provider.Provider
	workers  int
	maxSize  int64
}

// Result summarizes a run.
type Result struct {
	Processed int64
	Failed    int64
}

// New creates a Runner. Workers below one are treated as one.
func New(cfg Config) *Runner {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		provider: cfg.Provider,
		workers:  workers,
		maxSize:  cfg.MaxMessageSize,
	}
}

// Run processes every source. A message that fails to read, parse or
// convert is logged and counted; it does not stop the others. Run returns
// an error only when ctx is cancelled before all sources are handled.
func (r *Runner) Run(ctx context.Context, sources []Source) (Result, error) {
	var processed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, src := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := r.process(gctx, src); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				failed.Add(1)
				slog.Error("failed to convert message",
					"source", src.Name,
					"provider", r.provider.Name(),
					"error", err,
				)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return Result{Processed: processed.Load(), Failed: failed.Load()}, err
}

func (r *Runner) process(ctx context.Context, src Source) error {
	raw, err := r.read(src)
	if err != nil {
		return err
	}

	msg, err := parser.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}

	return r.provider.Send(ctx, msg)
}

func (r *Runner) read(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open: %w", err)
	}
	defer rc.Close()

	reader := io.Reader(rc)
	if r.maxSize > 0 {
		reader = io.LimitReader(rc, r.maxSize+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}
	if r.maxSize > 0 && int64(len(raw)) > r.maxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrMessageTooLarge, r.maxSize)
	}
	return raw, nil
}

// Collect expands command-line arguments into sources. Files are taken as
// given, directories are walked for *.eml files in lexical order, and "-"
// reads standard input. No arguments means standard input.
func Collect(args []string, stdin io.Reader) ([]Source, error) {
	if len(args) == 0 {
		args = []string{StdinName}
	}

	var sources []Source
	usedStdin := false
	for _, arg := range args {
		if arg == StdinName {
			if usedStdin {
				continue
			}
			usedStdin = true
			sources = append(sources, Source{
				Name: "stdin",
				Open: func() (io.ReadCloser, error) { return io.NopCloser(stdin), nil },
			})
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat input: %w", err)
		}
		if !info.IsDir() {
			sources = append(sources, fileSource(arg))
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".eml") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
		sort.Strings(found)
		for _, path := range found {
			sources = append(sources, fileSource(path))
		}
	}
	return sources, nil
}

func fileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}
