package assembler

import (
	"fmt"
	"sort"

	"github.com/rohmanhakim/site-archiver/internal/record"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

/*
Responsibilities
- Define the generator contract shared by every output format
- Route format names to registered generators
- Filter flagged records out of the assembly input
*/

// Generator turns a session's page records into one or more output
// artifacts and returns their paths in a deterministic order.
type Generator interface {
	Generate(records []record.PageRecord, baseURL string) ([]string, failure.ClassifiedError)
}

type Registry struct {
	generators map[string]Generator
}

func NewRegistry() Registry {
	return Registry{
		generators: make(map[string]Generator),
	}
}

func (r *Registry) Register(format string, gen Generator) {
	r.generators[format] = gen
}

func (r *Registry) Lookup(format string) (Generator, failure.ClassifiedError) {
	gen, ok := r.generators[format]
	if !ok {
		return nil, &AssemblerError{
			Message:   fmt.Sprintf("%q (have %v)", format, r.Formats()),
			Retryable: false,
			Cause:     ErrCauseUnknownFormat,
		}
	}
	return gen, nil
}

func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.generators))
	for name := range r.generators {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}

// FilterFlagged drops records flagged low-quality or parse-error.
// Callers pass the result to a Generator unless the user asked for
// flagged records to be included.
func FilterFlagged(records []record.PageRecord) []record.PageRecord {
	kept := make([]record.PageRecord, 0, len(records))
	for _, rec := range records {
		if rec.HasFlag(record.FlagLowQuality) || rec.HasFlag(record.FlagParseError) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}
