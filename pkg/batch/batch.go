package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ytscribe/ytscribe/pkg/logging"
	"github.com/ytscribe/ytscribe/pkg/stream"
	"github.com/ytscribe/ytscribe/pkg/throttle"
	"github.com/ytscribe/ytscribe/pkg/youtube"
)

// Mode selects how batch output is laid out on disk.
type Mode string

const (
	// ModeAggregated writes every transcript into one shared file with a
	// section header per item.
	ModeAggregated Mode = "aggregated"
	// ModeIndividual writes one file per item.
	ModeIndividual Mode = "individual"
)

var (
	// ErrInvalidBatchSize means the input list is empty or over the limit.
	// It is raised before any outbound call.
	ErrInvalidBatchSize = errors.New("invalid batch size")
	// ErrInvalidMode means the caller asked for an unknown output mode.
	ErrInvalidMode = errors.New("invalid batch mode")
)

// Fetcher is the provider call driven through the throttle gate.
type Fetcher interface {
	FetchTranscript(ctx context.Context, videoID string) ([]youtube.Entry, error)
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ItemResult is the per-item outcome of a batch run.
type ItemResult struct {
	Input      string `json:"input"`
	Status     Status `json:"status"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Result is the complete per-item accounting for one batch invocation.
type Result struct {
	Items     []ItemResult `json:"items"`
	Successes int          `json:"successes"`
	Failures  int          `json:"failures"`
}

// Coordinator drives independent transcript operations through a shared
// throttle gate, isolating per-item failure from the batch.
type Coordinator struct {
	fetcher      Fetcher
	gate         *throttle.Gate
	maxBatchSize int
	writeOpts    stream.Options

	now func() time.Time
}

func NewCoordinator(fetcher Fetcher, gate *throttle.Gate, maxBatchSize int, writeOpts stream.Options) *Coordinator {
	return &Coordinator{
		fetcher:      fetcher,
		gate:         gate,
		maxBatchSize: maxBatchSize,
		writeOpts:    writeOpts,
		now:          time.Now,
	}
}

// fetch resolves the input to a video ID and pulls its full transcript
// through the gate.
func (c *Coordinator) fetch(ctx context.Context, input string) (string, []youtube.Entry, error) {
	videoID, err := youtube.ParseVideoID(input)
	if err != nil {
		return "", nil, err
	}

	entries, err := throttle.Execute(ctx, c.gate, func(ctx context.Context) ([]youtube.Entry, error) {
		return c.fetcher.FetchTranscript(ctx, videoID)
	})
	if err != nil {
		return "", nil, err
	}
	return videoID, entries, nil
}

// RunSingle fetches one transcript and persists it to outputPath.
func (c *Coordinator) RunSingle(ctx context.Context, input, outputPath string) (stream.Result, error) {
	_, entries, err := c.fetch(ctx, input)
	if err != nil {
		return stream.Result{}, err
	}
	return stream.WriteTranscript(ctx, entries, outputPath, c.writeOpts)
}

// Run drives every input to completion in order. Item failures are
// recorded, never propagated; Run itself only fails on structural misuse.
func (c *Coordinator) Run(ctx context.Context, inputs []string, mode Mode, outputDir string) (Result, error) {
	if len(inputs) == 0 || len(inputs) > c.maxBatchSize {
		return Result{}, fmt.Errorf("%w: got %d inputs, want 1..%d", ErrInvalidBatchSize, len(inputs), c.maxBatchSize)
	}
	if mode != ModeAggregated && mode != ModeIndividual {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}

	switch mode {
	case ModeAggregated:
		return c.runAggregated(ctx, inputs, outputDir)
	default:
		return c.runIndividual(ctx, inputs, outputDir)
	}
}

func (c *Coordinator) runIndividual(ctx context.Context, inputs []string, outputDir string) (Result, error) {
	log := logging.NewLogger(ctx)
	timestamp := c.now().Format("20060102-150405")
	result := Result{}

	for _, input := range inputs {
		videoID, entries, err := c.fetch(ctx, input)
		if err != nil {
			log.Warnf("batch: item %q failed: %v", input, err)
			result.record(ItemResult{Input: input, Status: StatusFailure, Error: err.Error()})
			continue
		}

		outputPath := filepath.Join(outputDir, fmt.Sprintf("transcript_%s_%s.txt", videoID, timestamp))
		writeResult, err := stream.WriteTranscript(ctx, entries, outputPath, c.writeOpts)
		if err != nil {
			log.Warnf("batch: writing item %q failed: %v", input, err)
			result.record(ItemResult{Input: input, Status: StatusFailure, Error: err.Error()})
			continue
		}

		log.Infof("batch: wrote %d entries (%d bytes) for %q to %s",
			writeResult.EntriesProcessed, writeResult.BytesWritten, input, outputPath)
		result.record(ItemResult{Input: input, Status: StatusSuccess, OutputPath: outputPath})
	}

	return result, nil
}

func (c *Coordinator) runAggregated(ctx context.Context, inputs []string, outputDir string) (Result, error) {
	log := logging.NewLogger(ctx)
	outputPath := filepath.Join(outputDir, fmt.Sprintf("transcripts_batch_%s.txt", c.now().Format("20060102-150405")))

	// The shared handle is opened once and owned, sequentially, by one item
	// at a time.
	handle, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("opening aggregated output %s: %w", outputPath, err)
	}

	result := Result{}
	for i, input := range inputs {
		itemResult := c.appendSection(ctx, handle, input, i > 0)
		if itemResult.Status == StatusSuccess {
			itemResult.OutputPath = outputPath
		} else {
			log.Warnf("batch: item %q failed: %v", input, itemResult.Error)
		}
		result.record(itemResult)
	}

	if err := handle.Close(); err != nil {
		log.Warnf("batch: closing aggregated output %s: %v", outputPath, err)
	}

	// Nothing succeeded, so the shared file holds nothing worth keeping.
	if result.Successes == 0 {
		if removeErr := os.Remove(outputPath); removeErr != nil {
			log.Warnf("batch: could not remove empty aggregated output %s: %v", outputPath, removeErr)
		}
		for i := range result.Items {
			result.Items[i].OutputPath = ""
		}
	}

	return result, nil
}

func (c *Coordinator) appendSection(ctx context.Context, w io.Writer, input string, separate bool) ItemResult {
	videoID, entries, err := c.fetch(ctx, input)
	if err != nil {
		return ItemResult{Input: input, Status: StatusFailure, Error: err.Error()}
	}

	header := fmt.Sprintf("=== Transcript: %s ===\n", videoID)
	if separate {
		header = "\n\n" + header
	}
	if _, err := io.WriteString(w, header); err != nil {
		return ItemResult{Input: input, Status: StatusFailure, Error: err.Error()}
	}
	if _, err := stream.WriteEntries(ctx, w, entries, c.writeOpts); err != nil {
		return ItemResult{Input: input, Status: StatusFailure, Error: err.Error()}
	}
	return ItemResult{Input: input, Status: StatusSuccess}
}

func (r *Result) record(item ItemResult) {
	r.Items = append(r.Items, item)
	if item.Status == StatusSuccess {
		r.Successes++
	} else {
		r.Failures++
	}
}
