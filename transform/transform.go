// Package transform converts FHIR R4 resource documents to their STU3
// equivalents. Each resource type registers a Transformer; the engine in
// this package discovers documents across input directories, indexes
// PractitionerRole resources for reference resolution, and applies the
// registered transformer to every convertible document.
package transform

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

// Transformer rewrites one R4 resource document into its STU3 shape.
// Implementations are stateless and safe for reuse; per-document state
// travels in the Context.
type Transformer interface {
	// ResourceType returns the resourceType this transformer handles.
	ResourceType() string

	// Transform builds a new STU3 document from the R4 input. The input
	// document is never mutated.
	Transform(r4 fhir.Resource, rc *Context) fhir.Resource
}

// Context carries per-document transform state: the PractitionerRole index
// built during the discovery pass, the run logger, and any warnings recorded
// while rewriting the document.
type Context struct {
	// Roles maps PractitionerRole ids to their full documents. Nil when the
	// run has no discovery pass (single-file mode).
	Roles  map[string]fhir.Resource
	Logger *zap.Logger

	diags []fhir.Diagnostic
}

// NewContext returns a Context for one document. A nil logger is replaced
// with a no-op logger.
func NewContext(roles map[string]fhir.Resource, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{Roles: roles, Logger: logger}
}

// Diagnostics returns the warnings recorded while transforming the document.
func (c *Context) Diagnostics() []fhir.Diagnostic {
	return c.diags
}

func (c *Context) warnf(code, format string, args ...interface{}) {
	c.diags = append(c.diags, fhir.Diagnostic{
		Stage:    "transform",
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Severity: fhir.Warning,
	})
}
