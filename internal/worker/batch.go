package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ppiankov/regdiff/internal/model"
)

// Comparer compares two document references
type Comparer interface {
	Compare(ctx context.Context, oldRef, newRef string) (*model.Report, error)
}

// Pair is one manifest line: an old and a new document reference
type Pair struct {
	Line int // 1-based manifest line number
	Old  string
	New  string
}

var slugUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug names the pair's output files, e.g. "car7-r1__car7-r2"
func (p Pair) Slug() string {
	name := refStem(p.Old) + "__" + refStem(p.New)
	return strings.Trim(slugUnsafe.ReplaceAllString(name, "-"), "-")
}

func refStem(ref string) string {
	ref = strings.TrimRight(ref, "/")
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	base := filepath.Base(ref)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CompareJob represents one comparison in a batch
type CompareJob struct {
	Pair     Pair
	Comparer Comparer
}

// Execute executes the comparison
func (j *CompareJob) Execute(ctx context.Context) Result {
	report, err := j.Comparer.Compare(ctx, j.Pair.Old, j.Pair.New)
	return &CompareResult{Pair: j.Pair, Report: report, Error: err}
}

// CompareResult represents the result of a comparison job
type CompareResult struct {
	Pair   Pair
	Report *model.Report
	Error  error
}

// GetError returns the error from the comparison result
func (r *CompareResult) GetError() error {
	return r.Error
}

// BatchProcessor runs manifest comparisons concurrently
type BatchProcessor struct {
	comparer    Comparer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(comparer Comparer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		comparer:    comparer,
		concurrency: concurrency,
	}
}

// ProcessPairs compares every pair and returns the results in input order.
// Pairs that never ran because ctx ended carry the context error.
func (b *BatchProcessor) ProcessPairs(ctx context.Context, pairs []Pair) []*CompareResult {
	if len(pairs) == 0 {
		return []*CompareResult{}
	}

	jobs := make([]Job, len(pairs))
	for i, pair := range pairs {
		jobs[i] = &CompareJob{Pair: pair, Comparer: b.comparer}
	}

	results := NewPoolWithContext(ctx, b.concurrency).Run(jobs)

	out := make([]*CompareResult, len(pairs))
	for i, result := range results {
		if r, ok := result.(*CompareResult); ok {
			out[i] = r
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = &CompareResult{Pair: pairs[i], Error: err}
	}
	return out
}

// ProcessFile reads a manifest and processes it
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CompareResult, error) {
	pairs, err := ReadManifest(filePath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return b.ProcessPairs(ctx, pairs), nil
}

// ReadManifest reads one "old new" pair per line, separated by a tab or
// spaces. Blank lines and # comments are skipped; repeated pairs are dropped.
func ReadManifest(filePath string) ([]Pair, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var pairs []Pair
	seen := make(map[[2]string]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"old new\", got %d fields", lineNo, len(fields))
		}

		key := [2]string{fields[0], fields[1]}
		if seen[key] {
			continue
		}
		seen[key] = true
		pairs = append(pairs, Pair{Line: lineNo, Old: fields[0], New: fields[1]})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return pairs, nil
}
