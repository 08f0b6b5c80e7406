package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dropindex/internal/logging"
	"dropindex/internal/services"
	"dropindex/internal/store"
)

const (
	// PassName labels ingest summaries.
	PassName = "ingest"
	// FeedPattern matches scraper output files inside a feed directory.
	FeedPattern = "raw_products_*.jsonl"

	maxLineBytes = 16 << 20
)

// Upserter is the subset of the record store the loader writes to.
type Upserter interface {
	Upsert(ctx context.Context, listing store.Listing) (store.UpsertResult, error)
}

// Loader streams feed lines into the store.
type Loader struct {
	store  Upserter
	logger *slog.Logger
}

// NewLoader constructs a Loader.
func NewLoader(st Upserter, logger *slog.Logger) *Loader {
	return &Loader{store: st, logger: logging.NewComponentLogger(logger, "ingest")}
}

// FeedFiles lists the feed files in dir in lexical order.
func FeedFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, FeedPattern))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "scan feed dir", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// LoadDir ingests every feed file in dir.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*services.Summary, error) {
	files, err := FeedFiles(dir)
	if err != nil {
		return services.NewSummary(PassName), err
	}
	if len(files) == 0 {
		l.logger.Info("no feed files found", logging.String("dir", dir), logging.String("pattern", FeedPattern))
	}
	return l.LoadFiles(ctx, files)
}

// LoadFiles ingests the given files in order. A systemic failure stops the
// load; the summary covers everything processed before it.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) (*services.Summary, error) {
	total := services.NewSummary(PassName)
	for _, path := range paths {
		summary, err := l.LoadFile(ctx, path)
		total.Merge(summary)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// LoadFile ingests one feed file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*services.Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return services.NewSummary(PassName), services.Wrap(services.ErrConfiguration, "ingest", "open feed", path, err)
	}
	defer file.Close()
	return l.Load(ctx, file, filepath.Base(path))
}

// Load ingests every line of r. name labels log lines.
func (l *Loader) Load(ctx context.Context, r io.Reader, name string) (*services.Summary, error) {
	summary := services.NewSummary(PassName)
	logger := logging.WithContext(ctx, l.logger).With(logging.String("feed", name))
	started := time.Now()

	reader := bufio.NewReaderSize(r, 64*1024)
	var buf []byte
	lineNo := 0
	for {
		line, oversized, err := nextLine(reader, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, services.Wrap(services.ErrTransient, "ingest", "read feed", name, err)
		}
		buf = line[:0]
		lineNo++
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if oversized {
			outcome := services.Skip(services.ReasonMalformed, fmt.Errorf("line exceeds %d bytes", maxLineBytes))
			summary.Record(outcome)
			logging.WarnSkip(logger, "feed line skipped", outcome.Reason, outcome.Err, logging.Int("line", lineNo))
			continue
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		outcome := l.loadLine(ctx, line)
		summary.Record(outcome)
		switch outcome.Kind {
		case services.OutcomeFatal:
			return summary, outcome.Err
		case services.OutcomeSkip:
			logging.WarnSkip(logger, "feed line skipped", outcome.Reason, outcome.Err, logging.Int("line", lineNo))
		}
	}

	logger.Info("feed loaded",
		logging.Int("lines", lineNo),
		logging.Int("processed", summary.Processed),
		logging.Int("updated", summary.Updated),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}

// nextLine reads one line into buf without its terminator. A line longer
// than maxLineBytes is read to its end, dropped, and reported as oversized.
// io.EOF is returned only once no line remains.
func nextLine(r *bufio.Reader, buf []byte) ([]byte, bool, error) {
	buf = buf[:0]
	oversized := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > maxLineBytes {
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		line := bytes.TrimRight(buf, "\r\n")
		if errors.Is(err, io.EOF) && (len(buf) > 0 || oversized) {
			return line, oversized, nil
		}
		return line, oversized, err
	}
}

func (l *Loader) loadLine(ctx context.Context, line []byte) services.Outcome {
	rec, err := ParseRecord(line)
	if err != nil {
		return services.Skip(services.ReasonMalformed, err)
	}
	listing := rec.Listing()
	result, err := l.store.Upsert(ctx, listing)
	if err != nil {
		return services.Classify(err, services.ReasonStoreConflict)
	}
	if result == store.UpsertUnchanged {
		return services.Success(false)
	}
	return services.Success(true)
}
