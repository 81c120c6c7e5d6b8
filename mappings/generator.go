// Package mappings generates the Markdown tables that tie STU3 profile
// elements back to the zib2017 dataset definition. It scans the
// StructureDefinition resources of the implementation guide, extracts their
// dataset concept mappings and rewrites a single include file consumed by
// the IG publisher.
package mappings

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

// Generated document modes. Develop mode appends the unmapped, orphan and
// summary sections used while working on mapping coverage.
const (
	ModeNormal  = "normal"
	ModeDevelop = "develop"
)

// Conventional IG layout, used when the corresponding option is empty.
const (
	DefaultResourcesDir    = "input/resources"
	DefaultOutputFile      = "input/includes/zib2017_stu3_mappings.md"
	DefaultDatasetFile     = "util/pzp_dataset.json"
	DefaultDatasetIdentity = "informatiestandaard_obv_zibs2017"
)

// DefaultIgnoreUnmapped lists the dataset concepts that are knowingly left
// unmapped; they stay out of the develop-mode unmapped report.
var DefaultIgnoreUnmapped = []string{
	"283", "223", "226", "233", "243", "246",
	"161", "202", "211", "260", "263", "277",
	"109", "118", "280",
}

// Options configures one generator run. Empty fields fall back to the
// conventional layout, so the zero value runs against an implementation
// guide checkout with no further configuration.
type Options struct {
	// ResourcesDir holds the StructureDefinition JSON files to scan.
	ResourcesDir string

	// OutputFile is the Markdown artifact, fully rewritten on every run.
	OutputFile string

	// DatasetFile is the dataset definition the concept table comes from.
	DatasetFile string

	// DatasetIdentity names both the dataset root concept and the profile
	// mapping declaration that refers to it.
	DatasetIdentity string

	// Mode is ModeNormal or ModeDevelop.
	Mode string

	// IgnoreUnmapped lists concept ids excluded from the unmapped report.
	// Nil means DefaultIgnoreUnmapped; an empty slice ignores nothing.
	IgnoreUnmapped []string

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ResourcesDir == "" {
		o.ResourcesDir = DefaultResourcesDir
	}
	if o.OutputFile == "" {
		o.OutputFile = DefaultOutputFile
	}
	if o.DatasetFile == "" {
		o.DatasetFile = DefaultDatasetFile
	}
	if o.DatasetIdentity == "" {
		o.DatasetIdentity = DefaultDatasetIdentity
	}
	if o.Mode == "" {
		o.Mode = ModeNormal
	}
	if o.IgnoreUnmapped == nil {
		o.IgnoreUnmapped = DefaultIgnoreUnmapped
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Result summarizes one generator run.
type Result struct {
	OutputFile     string
	FilesScanned   int
	MappingEntries int
	TotalConcepts  int
	MappedConcepts int
	Unmapped       int
	Orphans        int
	Diagnostics    []fhir.Diagnostic
}

// Coverage is the share of dataset concepts carrying at least one mapping,
// in percent.
func (r *Result) Coverage() float64 {
	if r.TotalConcepts == 0 {
		return 0
	}
	return float64(r.MappedConcepts) / float64(r.TotalConcepts) * 100
}

// Warnings counts the warning diagnostics of the run.
func (r *Result) Warnings() int {
	return fhir.CountSeverity(r.Diagnostics, fhir.Warning)
}

// Run scans the resources directory, loads the dataset definition and
// rewrites the mapping tables. Skipped files, missing declarations and an
// unusable dataset file become diagnostics; the returned error covers an
// unreadable resources directory or an unwritable output file.
func Run(opts Options) (*Result, error) {
	opts = opts.withDefaults()
	logger := opts.Logger

	profiles, scanned, diags, err := scanProfiles(opts.ResourcesDir, opts.DatasetIdentity, logger)
	if err != nil {
		return nil, err
	}

	res := &Result{OutputFile: opts.OutputFile, FilesScanned: scanned, Diagnostics: diags}

	byConcept, entries := collectMappings(profiles)
	res.MappingEntries = entries

	concepts, err := loadConcepts(opts.DatasetFile, opts.DatasetIdentity, logger)
	withDataset := err == nil
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, fhir.Diagnostic{
			Stage:    "mappings",
			Code:     fhir.CodeDatasetFile,
			Message:  err.Error(),
			File:     filepath.Base(opts.DatasetFile),
			Severity: fhir.Warning,
		})
		logger.Warn("dataset definition unusable, dataset sections omitted", zap.Error(err))
	}

	ignore := make(map[string]bool, len(opts.IgnoreUnmapped))
	for _, id := range opts.IgnoreUnmapped {
		ignore[id] = true
	}

	out, stats := render(renderInput{
		profiles:    profiles,
		byConcept:   byConcept,
		concepts:    concepts,
		withDataset: withDataset,
		mode:        opts.Mode,
		ignore:      ignore,
	})
	res.TotalConcepts = len(concepts)
	res.MappedConcepts = stats.mapped
	res.Unmapped = stats.unmapped
	res.Orphans = stats.orphans

	if dir := filepath.Dir(opts.OutputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(opts.OutputFile, out, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", opts.OutputFile, err)
	}

	logger.Info("mapping tables generated",
		zap.String("output", opts.OutputFile),
		zap.Int("files", scanned),
		zap.Int("mappings", entries),
		zap.Int("concepts", len(concepts)))
	return res, nil
}
