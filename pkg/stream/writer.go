package stream

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/ytscribe/ytscribe/pkg/logging"
	"github.com/ytscribe/ytscribe/pkg/youtube"
)

// ErrStreamWrite wraps any I/O failure during transcript persistence. The
// partial output file is removed before this surfaces.
var ErrStreamWrite = errors.New("stream write failure")

const (
	defaultChunkSize        = 1000
	defaultProgressInterval = 5000
)

// Options tune chunking and progress reporting. Zero values take defaults.
type Options struct {
	// ChunkSize caps how many entries are decoded and resident at once.
	ChunkSize int
	// ProgressInterval is the entry-count multiple at which progress is
	// reported.
	ProgressInterval int
	// OnProgress, when set, receives (entriesProcessed, totalEntries) at
	// each interval multiple. When nil, progress goes to the logger.
	OnProgress func(processed, total int)
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = defaultProgressInterval
	}
	return o
}

// Result reports a completed write.
type Result struct {
	BytesWritten     int64
	EntriesProcessed int
}

// WriteEntries streams entries to w as decoded, space-joined text, one
// chunk at a time. At most one chunk's decoded text is resident at any
// instant; the full transcript is never concatenated in memory.
func WriteEntries(ctx context.Context, w io.Writer, entries []youtube.Entry, opts Options) (Result, error) {
	opts = opts.withDefaults()
	log := logging.NewLogger(ctx)

	total := len(entries)
	result := Result{}
	wroteAny := false

	for start := 0; start < total; start += opts.ChunkSize {
		end := start + opts.ChunkSize
		if end > total {
			end = total
		}

		text := decodeChunk(entries[start:end])
		if text != "" {
			if wroteAny {
				text = " " + text
			}
			n, err := io.WriteString(w, text)
			result.BytesWritten += int64(n)
			if err != nil {
				return result, err
			}
			wroteAny = true
		}

		result.EntriesProcessed = end

		// Progress triggers on the processed count itself, so interval
		// boundaries hold regardless of chunk size.
		if i := result.EntriesProcessed; i > 0 && i%opts.ProgressInterval == 0 {
			if opts.OnProgress != nil {
				opts.OnProgress(i, total)
			} else {
				log.Infof("stream: processed %d/%d entries", i, total)
			}
		}
	}

	return result, nil
}

// WriteTranscript persists entries to destPath with the no-partial-file
// guarantee: if anything fails, the destination is removed before the
// error is returned.
func WriteTranscript(ctx context.Context, entries []youtube.Entry, destPath string, opts Options) (Result, error) {
	return writeTranscriptFile(ctx, entries, destPath, opts, func(path string) (io.WriteCloser, error) {
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	})
}

func writeTranscriptFile(
	ctx context.Context,
	entries []youtube.Entry,
	destPath string,
	opts Options,
	open func(path string) (io.WriteCloser, error),
) (Result, error) {
	log := logging.NewLogger(ctx)

	handle, err := open(destPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: opening %s: %w", ErrStreamWrite, destPath, err)
	}

	// fail is the sole owner of cleanup and error reporting for the handle;
	// it runs at most once per write operation.
	fail := func(cause error) (Result, error) {
		_ = handle.Close()
		if removeErr := os.Remove(destPath); removeErr != nil {
			log.Warnf("stream: could not remove partial file %s: %v", destPath, removeErr)
		} else {
			log.Infof("stream: removed partial file %s", destPath)
		}
		return Result{}, fmt.Errorf("%w: writing %s: %w", ErrStreamWrite, destPath, cause)
	}

	result, err := WriteEntries(ctx, handle, entries, opts)
	if err != nil {
		return fail(err)
	}
	if err := handle.Close(); err != nil {
		return fail(err)
	}
	return result, nil
}

// decodeChunk unescapes HTML/XML entities in each entry and joins the
// non-empty results with single spaces.
func decodeChunk(entries []youtube.Entry) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		decoded := strings.TrimSpace(html.UnescapeString(entry.Text))
		if decoded == "" {
			continue
		}
		parts = append(parts, decoded)
	}
	return strings.Join(parts, " ")
}
