package extractor

import (
	"regexp"
	"strings"

	"github.com/civicdata/consulta-api/internal/models"
)

// Undetermined is the sentinel for a field no recovery step could
// resolve. OCR output is noisy; callers must always receive every
// declared field, resolved or not.
const Undetermined = "No determinado"

// Step is one attempt at recovering a field value from OCR text.
type Step func(text string) (string, bool)

// FieldRule recovers one field by trying its steps in declared order.
// The first step that matches wins; rules never fall through to a later
// step once one has answered.
type FieldRule struct {
	Field string
	Steps []Step
}

// Keyword answers value when every keyword appears in the text. The
// comparison is case insensitive, which tolerates common OCR casing
// noise.
func Keyword(value string, keywords ...string) Step {
	return func(text string) (string, bool) {
		lower := strings.ToLower(text)
		for _, kw := range keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				return "", false
			}
		}
		return value, true
	}
}

// Pattern answers the first capture group of re.
func Pattern(re *regexp.Regexp) Step {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil || len(m) < 2 {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		if v == "" {
			return "", false
		}
		return v, true
	}
}

// Apply runs every rule against the text. Every rule's field is present
// in the returned record; unresolved fields carry the Undetermined
// sentinel so downstream consumers never branch on missing keys.
func Apply(text string, rules []FieldRule) models.Record {
	rec := make(models.Record, len(rules))
	for _, rule := range rules {
		rec[rule.Field] = Undetermined
		for _, step := range rule.Steps {
			if v, ok := step(text); ok {
				rec[rule.Field] = v
				break
			}
		}
	}
	return rec
}
