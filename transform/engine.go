package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

// OutputPrefix is prepended to every converted document's filename.
const OutputPrefix = "converted-"

// Options configures one batch run.
type Options struct {
	// InputDirs are scanned in order. When two directories carry a file with
	// the same name, the later directory's file wins and the earlier one is
	// not processed.
	InputDirs []string

	// OutputDir receives the converted documents. It is created on demand.
	OutputDir string

	// Pattern is the filename glob matched inside each input directory.
	// Empty means *.json.
	Pattern string

	// Types restricts the run to the named resource types. Empty means every
	// registered type.
	Types map[string]bool

	Logger *zap.Logger
}

// Result summarizes one run.
type Result struct {
	RunID           string            `json:"run_id"`
	Discovered      int               `json:"discovered"`
	Transformed     int               `json:"transformed"`
	SkippedByType   int               `json:"skipped_by_type"`
	SkippedByFilter int               `json:"skipped_by_filter"`
	Failed          int               `json:"failed"`
	Warnings        int               `json:"warnings"`
	Elapsed         time.Duration     `json:"-"`
	Diagnostics     []fhir.Diagnostic `json:"diagnostics,omitempty"`
}

// HasFailures reports whether any document failed to parse or write.
// Warnings and skips alone keep a run successful.
func (r *Result) HasFailures() bool {
	return r.Failed > 0
}

// Errors returns the error-severity diagnostics of the run.
func (r *Result) Errors() []fhir.Diagnostic {
	var out []fhir.Diagnostic
	for _, d := range r.Diagnostics {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// WarningDiagnostics returns the warning-severity diagnostics of the run.
func (r *Result) WarningDiagnostics() []fhir.Diagnostic {
	var out []fhir.Diagnostic
	for _, d := range r.Diagnostics {
		if d.IsWarning() {
			out = append(out, d)
		}
	}
	return out
}

// document is one discovered input file. The resource type and id come from
// identity sniffing during the index pass; both are empty when the file
// could not be sniffed.
type document struct {
	name string
	path string
	typ  string
	id   string
}

// Run converts every matching document under opts.InputDirs into
// opts.OutputDir. The run always attempts every document; per-document
// failures are recorded in the result instead of aborting the batch. The
// returned error covers run-level problems only: an unreadable input
// directory, an unwritable output directory, or an empty registry.
func Run(opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(Types()) == 0 {
		return nil, fmt.Errorf("no resource transformers registered")
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "*.json"
	}

	start := time.Now()
	res := &Result{RunID: uuid.NewString()}

	docs, err := discover(opts.InputDirs, pattern)
	if err != nil {
		return nil, err
	}
	res.Discovered = len(docs)
	if len(docs) == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	roles := indexDocuments(docs, logger)
	logger.Info("indexed input documents",
		zap.Int("documents", len(docs)),
		zap.Int("practitioner_roles", len(roles)))

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	r := &runner{opts: opts, logger: logger, roles: roles, res: res}
	for _, doc := range docs {
		r.transformFile(doc, filepath.Join(opts.OutputDir, OutputPrefix+doc.name))
	}

	res.Warnings = fhir.CountSeverity(res.Diagnostics, fhir.Warning)
	res.Elapsed = time.Since(start)
	return res, nil
}

// RunFile converts a single document to an explicit output path. There is no
// index pass in this mode, so PractitionerRole references stay unresolved
// and are reported as warnings.
func RunFile(inputFile, outputFile string, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Discovered: 1}

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	r := &runner{logger: logger, res: res}
	typ, id, _ := fhir.SniffFile(inputFile)
	r.transformFile(&document{
		name: filepath.Base(inputFile),
		path: inputFile,
		typ:  typ,
		id:   id,
	}, outputFile)

	res.Warnings = fhir.CountSeverity(res.Diagnostics, fhir.Warning)
	res.Elapsed = time.Since(start)
	return res, nil
}

// discover enumerates matching files across the input directories, sorted by
// name within each directory. A file whose name reappears in a later
// directory is shadowed: only the latest occurrence survives.
func discover(inputDirs []string, pattern string) ([]*document, error) {
	perDir := make([][]string, len(inputDirs))
	latest := make(map[string]int)

	for i, dir := range inputDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("input directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("input path %s is not a directory", dir)
		}
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("file pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		perDir[i] = matches
		for _, path := range matches {
			latest[filepath.Base(path)] = i
		}
	}

	var docs []*document
	for i, matches := range perDir {
		for _, path := range matches {
			name := filepath.Base(path)
			if latest[name] != i {
				continue
			}
			docs = append(docs, &document{name: name, path: path})
		}
	}
	return docs, nil
}

// indexDocuments is the first pass: every document is identity-sniffed and
// PractitionerRole documents are fully parsed into the role index the
// reference rewrite resolves against.
func indexDocuments(docs []*document, logger *zap.Logger) map[string]fhir.Resource {
	roles := make(map[string]fhir.Resource)
	for _, doc := range docs {
		typ, id, err := fhir.SniffFile(doc.path)
		if err != nil {
			logger.Debug("identity sniff failed", zap.String("file", doc.name), zap.Error(err))
			continue
		}
		doc.typ, doc.id = typ, id

		if typ != "PractitionerRole" {
			continue
		}
		role, err := fhir.ReadFile(doc.path)
		if err != nil {
			logger.Debug("unreadable during role indexing", zap.String("file", doc.name), zap.Error(err))
			continue
		}
		if id := role.ID(); id != "" {
			roles[id] = role
		}
	}
	return roles
}

type runner struct {
	opts   Options
	logger *zap.Logger
	roles  map[string]fhir.Resource
	res    *Result
}

func (r *runner) transformFile(doc *document, outPath string) {
	if len(r.opts.Types) > 0 && !r.opts.Types[doc.typ] {
		r.res.SkippedByFilter++
		r.skip(fhir.CodeSkippedFilter, doc, fmt.Sprintf("%s excluded by the resource type filter", doc.typ))
		return
	}

	res, err := fhir.ReadFile(doc.path)
	if err != nil {
		r.fail("transform", fhir.CodeParse, doc, err.Error())
		return
	}

	resourceType := res.Type()
	if resourceType == "" {
		r.fail("transform", fhir.CodeMissingType, doc, "document declares no resourceType")
		return
	}
	doc.typ, doc.id = resourceType, res.ID()

	tr, ok := Lookup(resourceType)
	if !ok {
		r.res.SkippedByType++
		msg := fmt.Sprintf("no transformer registered for %s", resourceType)
		if SkippedByDesign(resourceType) {
			msg = fmt.Sprintf("%s documents are published as-is, not converted", resourceType)
		}
		r.skip(fhir.CodeSkippedType, doc, msg)
		return
	}

	rc := NewContext(r.roles, r.logger)
	out := tr.Transform(res, rc)
	out = fhir.Resource(resolveRoleReferences(map[string]interface{}(out), rc).(map[string]interface{}))

	if err := fhir.WriteFile(outPath, out); err != nil {
		r.fail("write", fhir.CodeWrite, doc, err.Error())
		return
	}

	for _, d := range rc.Diagnostics() {
		d.File = doc.name
		d.ResourceType = resourceType
		d.ResourceID = doc.id
		r.res.Diagnostics = append(r.res.Diagnostics, d)
	}
	r.res.Transformed++
	r.logger.Debug("transformed document",
		zap.String("file", doc.name),
		zap.String("type", resourceType),
		zap.String("output", outPath))
}

func (r *runner) fail(stage, code string, doc *document, message string) {
	r.res.Failed++
	r.res.Diagnostics = append(r.res.Diagnostics, fhir.Diagnostic{
		Stage:        stage,
		Code:         code,
		Message:      message,
		File:         doc.name,
		ResourceType: doc.typ,
		ResourceID:   doc.id,
		Severity:     fhir.Error,
	})
}

func (r *runner) skip(code string, doc *document, message string) {
	r.res.Diagnostics = append(r.res.Diagnostics, fhir.Diagnostic{
		Stage:        "transform",
		Code:         code,
		Message:      message,
		File:         doc.name,
		ResourceType: doc.typ,
		Severity:     fhir.Info,
	})
}
