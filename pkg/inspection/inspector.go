// Package inspection runs the batch pipeline over a folder of scan files:
// parse, summarize, propose repairs, compare consecutive scans and
// optionally render slice images.
package inspection

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"furnacewear/internal/metrics"
	"furnacewear/internal/models"
	"furnacewear/pkg/analysis"
	"furnacewear/pkg/filecache"
	"furnacewear/pkg/ingest"
	"furnacewear/pkg/repair"
	"furnacewear/pkg/visualization"
)

// Params holds the inspection configuration.
type Params struct {
	// InputDir is the folder of scan files, ordered by the number in their names
	InputDir string

	// NumCores bounds parsing and analysis concurrency
	NumCores int

	Parse     ingest.Options
	Analysis  models.AnalysisParams
	Constants repair.Constants
	Materials *repair.Catalogue

	// ExtractSlices writes PNG slices of every file along all axes into SlicesDir
	ExtractSlices bool
	SlicesDir     string

	Logger *slog.Logger
}

// FileReport is the result for one scan file.
type FileReport struct {
	Summary  models.Summary  `json:"summary"`
	Stats    analysis.Stats  `json:"stats"`
	Proposal models.Proposal `json:"proposal"`

	// Slices is the number of images written
	Slices int `json:"slices"`
}

// Report is the result of a whole run.
type Report struct {
	Files    []FileReport          `json:"files"`
	Failures []filecache.FileError `json:"-"`

	// Trend compares each file with the next one in folder order
	Trend    []analysis.Comparison `json:"trend"`
	Duration time.Duration         `json:"duration"`
}

// Inspector drives the batch pipeline.
type Inspector struct {
	params *Params
	cache  *filecache.Cache
	calc   *repair.Calculator
	logger *slog.Logger
}

// NewInspector creates an inspector with the provided parameters.
func NewInspector(params *Params) *Inspector {
	if params.NumCores <= 0 {
		params.NumCores = runtime.NumCPU()
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{
		params: params,
		cache:  filecache.New(filecache.Options{Workers: params.NumCores, Parse: params.Parse, Logger: logger}),
		calc:   repair.NewCalculator(params.Constants, params.Materials),
		logger: logger,
	}
}

// Cache exposes the parsed files of the last run.
func (in *Inspector) Cache() *filecache.Cache { return in.cache }

// Process runs the complete inspection pipeline
func (in *Inspector) Process(ctx context.Context) (*Report, error) {
	start := time.Now()

	in.logger.Info("step 1: loading scan files", "dir", in.params.InputDir)
	blobs, err := ingest.LoadDir(in.params.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan files: %w", err)
	}

	in.logger.Info("step 2: parsing scan files", "files", len(blobs), "workers", in.params.NumCores)
	ingested, err := in.cache.Ingest(ctx, blobs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scan files: %w", err)
	}
	if len(ingested.Loaded) == 0 {
		return nil, fmt.Errorf("no scan file could be parsed (%d rejected)", len(ingested.Failures))
	}

	// keep folder order rather than the snapshot's name order
	snap := in.cache.Snapshot()
	files := make([]*models.ParsedFile, len(ingested.Loaded))
	for i, name := range ingested.Loaded {
		files[i], _ = snap.Get(name)
	}

	in.logger.Info("step 3: computing statistics and repair proposals")
	reports, err := in.analyzeInParallel(ctx, files)
	if err != nil {
		return nil, err
	}

	in.logger.Info("step 4: comparing consecutive scans")
	var trend []analysis.Comparison
	for i := 1; i < len(files); i++ {
		trend = append(trend, analysis.Compare(files[i-1], files[i]))
	}

	if in.params.ExtractSlices {
		in.logger.Info("step 5: extracting slices", "dir", in.params.SlicesDir)
		for i, f := range files {
			n, err := in.extractSlices(f, snap)
			if err != nil {
				return nil, fmt.Errorf("failed to extract slices of %s: %w", f.Name, err)
			}
			reports[i].Slices = n
		}
	}

	return &Report{
		Files:    reports,
		Failures: ingested.Failures,
		Trend:    trend,
		Duration: time.Since(start),
	}, nil
}

// analyzeInParallel computes per-file statistics and proposals on a bounded pool.
func (in *Inspector) analyzeInParallel(ctx context.Context, files []*models.ParsedFile) ([]FileReport, error) {
	reports := make([]FileReport, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.params.NumCores)
	for i, f := range files {
		g.Go(func() error {
			started := time.Now()
			proposal, err := in.calc.Propose(gctx, f.Points, in.params.Analysis)
			outcome := metrics.OutcomeSuccess
			if err != nil {
				outcome = metrics.OutcomeError
			}
			metrics.ObserveProposal(string(in.params.Analysis.ClusterMode), time.Since(started), outcome)
			if err != nil {
				return fmt.Errorf("proposal for %s: %w", f.Name, err)
			}
			reports[i] = FileReport{
				Summary:  f.Summary(),
				Stats:    analysis.ComputeStats(f.Points),
				Proposal: proposal,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (in *Inspector) extractSlices(f *models.ParsedFile, snap *filecache.Snapshot) (int, error) {
	opts := visualization.DefaultOptions()
	opts.UseGlobal = true
	opts.Global = snap.GlobalRange()
	viewer := visualization.NewViewer(f, opts)

	base := strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
	total := 0
	for _, axis := range []string{"x", "y", "z"} {
		n, err := viewer.SaveSliceSequence(axis, filepath.Join(in.params.SlicesDir, base, axis))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
