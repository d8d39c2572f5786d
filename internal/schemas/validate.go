// Package schemas validates JSON artifacts written by the CLI against the
// schemas embedded in the binary.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed jobs.schema.json
var jobsSchema string

var (
	jobsOnce   sync.Once
	jobsLoaded *gojsonschema.Schema
	jobsErr    error
)

// ValidationError lists every schema violation of a document.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single violation at a field path.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, err.Field, err.Message)
	}
	return sb.String()
}

// SchemaLoadError reports a schema or document that could not be parsed.
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateJobs checks a JSON array of scraped jobs.
func ValidateJobs(data []byte) error {
	jobsOnce.Do(func() {
		jobsLoaded, jobsErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(jobsSchema))
	})
	if jobsErr != nil {
		return &SchemaLoadError{Name: "jobs.schema.json", Cause: jobsErr}
	}
	return validate(jobsLoaded, data)
}

func validate(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &SchemaLoadError{Name: "document", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
