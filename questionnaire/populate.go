// Package questionnaire maintains display prefixes on questionnaire items.
// Questionnaire documents get their item prefixes split out of the item
// text into the prefix element; QuestionnaireResponse documents get the
// prefixes stripped from their item text, since a response text must match
// the questionnaire definition of its linkId.
package questionnaire

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

// DefaultInputDir is the conventional IG resources directory.
const DefaultInputDir = "input/resources"

// BackupSuffix is appended to a file's name before it is rewritten.
const BackupSuffix = ".backup"

// Options configures one populate run.
type Options struct {
	// InputDir holds the questionnaire JSON files. Empty means
	// DefaultInputDir.
	InputDir string

	// DryRun reports what would change without touching any file.
	DryRun bool

	// QuestionnaireOnly and ResponseOnly restrict the run to one document
	// class. Setting both is an error.
	QuestionnaireOnly bool
	ResponseOnly      bool

	Logger *zap.Logger
}

// FileChange records one document whose items were rewritten.
type FileChange struct {
	File    string
	Type    string
	Items   int
	Written bool
}

// Result summarizes one populate run.
type Result struct {
	Questionnaires int
	Responses      int
	Changed        []FileChange
	Diagnostics    []fhir.Diagnostic
}

// Examined is the number of documents the run looked at.
func (r *Result) Examined() int {
	return r.Questionnaires + r.Responses
}

// Run processes every Questionnaire*.json file under the input directory,
// routing each document by its resourceType. Unparseable files and write
// failures become diagnostics; the returned error covers an unreadable
// input directory and conflicting options.
func Run(opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.InputDir == "" {
		opts.InputDir = DefaultInputDir
	}
	if opts.QuestionnaireOnly && opts.ResponseOnly {
		return nil, fmt.Errorf("questionnaire-only and response-only are mutually exclusive")
	}

	info, err := os.Stat(opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("input directory %s: %w", opts.InputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", opts.InputDir)
	}

	matches, err := filepath.Glob(filepath.Join(opts.InputDir, "Questionnaire*.json"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", opts.InputDir, err)
	}
	sort.Strings(matches)

	res := &Result{}
	for _, path := range matches {
		processFile(path, opts, res)
	}
	return res, nil
}

func processFile(path string, opts Options, res *Result) {
	name := filepath.Base(path)
	logger := opts.Logger

	data, err := os.ReadFile(path)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, prefixDiag(fhir.CodeParse, name, err.Error(), fhir.Warning))
		return
	}
	doc, err := fhir.Parse(data)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, prefixDiag(fhir.CodeParse, name, err.Error(), fhir.Warning))
		return
	}

	items, _ := doc["item"].([]interface{})

	var changed int
	resourceType := doc.Type()
	switch resourceType {
	case "Questionnaire":
		if opts.ResponseOnly {
			return
		}
		res.Questionnaires++
		changed = populateItems(items)
	case "QuestionnaireResponse":
		if opts.QuestionnaireOnly {
			return
		}
		res.Responses++
		changed = stripItems(items)
	default:
		d := prefixDiag(fhir.CodeSkippedType, name, fmt.Sprintf("not a questionnaire resource (%s)", resourceType), fhir.Info)
		d.ResourceType = resourceType
		res.Diagnostics = append(res.Diagnostics, d)
		return
	}

	if changed == 0 {
		logger.Debug("no prefix changes", zap.String("file", name))
		return
	}

	change := FileChange{File: name, Type: resourceType, Items: changed}
	if !opts.DryRun {
		if err := os.WriteFile(path+BackupSuffix, data, 0o644); err != nil {
			res.Diagnostics = append(res.Diagnostics, prefixDiag(fhir.CodeWrite, name, fmt.Sprintf("backup: %v", err), fhir.Warning))
			return
		}
		if err := fhir.WriteFile(path, doc); err != nil {
			res.Diagnostics = append(res.Diagnostics, prefixDiag(fhir.CodeWrite, name, err.Error(), fhir.Warning))
			return
		}
		change.Written = true
	}
	res.Changed = append(res.Changed, change)

	logger.Debug("prefixes rewritten",
		zap.String("file", name),
		zap.String("type", resourceType),
		zap.Int("items", changed),
		zap.Bool("dry_run", opts.DryRun))
}

func prefixDiag(code, file, message string, severity fhir.Severity) fhir.Diagnostic {
	return fhir.Diagnostic{
		Stage:    "prefix",
		Code:     code,
		Message:  message,
		File:     file,
		Severity: severity,
	}
}
