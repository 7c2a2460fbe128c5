package extractor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicdata/consulta-api/internal/models"
)

// ErrNoResults is the sentinel for a portal's explicit empty answer. It
// is authoritative: the identity has no records, nothing failed.
var ErrNoResults = errors.New("no results for identity")

// ErrMalformed marks a response that arrived but does not have the
// structure the extractor expects.
var ErrMalformed = errors.New("malformed response")

var (
	nbspRe  = regexp.MustCompile(`&nbsp;?`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// CleanCell normalizes raw cell markup into comparable text: inline tags
// and non breaking spaces removed, whitespace collapsed.
func CleanCell(raw string) string {
	s := tagRe.ReplaceAllString(raw, " ")
	s = nbspRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// UnwrapPartialResponse extracts the CDATA payload of one update block
// from a JSF partial-response document. The block id is matched first;
// when absent any update block is accepted, matching how the portals
// sometimes rename their table region between versions.
func UnwrapPartialResponse(xml, updateID string) (string, error) {
	re := regexp.MustCompile(`(?s)<update[^>]*id="` + regexp.QuoteMeta(updateID) + `"[^>]*><!\[CDATA\[(.*?)\]\]></update>`)
	if m := re.FindStringSubmatch(xml); m != nil {
		return m[1], nil
	}

	generic := regexp.MustCompile(`(?s)<update[^>]*><!\[CDATA\[(.*?)\]\]></update>`)
	if m := generic.FindStringSubmatch(xml); m != nil {
		return m[1], nil
	}

	return "", fmt.Errorf("%w: no update block in partial response (wanted %q)", ErrMalformed, updateID)
}

// TableConfig drives a generic row walk over an HTML results table.
type TableConfig struct {
	// RowSelector matches the data rows, e.g. `tr[data-ri]`.
	RowSelector string

	// CellSelector matches cells inside a row; only direct children are
	// taken so cells that embed sub tables do not leak extra columns.
	CellSelector string

	// Columns maps cell index to field name. Cells beyond the mapping
	// are ignored.
	Columns []string

	// MinCells skips malformed rows shorter than the expected shape.
	MinCells int

	// NoResultsMarkers short circuit extraction into an authoritative
	// empty answer when present anywhere in the fragment.
	NoResultsMarkers []string
}

// ExtractRows walks a results table and returns one record per data row.
// It returns ErrNoResults when the fragment carries an explicit empty
// answer marker.
func ExtractRows(html string, cfg TableConfig) ([]models.Record, error) {
	for _, marker := range cfg.NoResultsMarkers {
		if strings.Contains(html, marker) {
			return nil, ErrNoResults
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cellSel := cfg.CellSelector
	if cellSel == "" {
		cellSel = "td"
	}

	var records []models.Record
	doc.Find(cfg.RowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered(cellSel)
		if cells.Length() < cfg.MinCells {
			return
		}

		rec := make(models.Record, len(cfg.Columns))
		cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if i >= len(cfg.Columns) {
				return false
			}
			if name := cfg.Columns[i]; name != "" {
				inner, _ := cell.Html()
				rec[name] = CleanCell(inner)
			}
			return true
		})
		records = append(records, rec)
	})

	return records, nil
}

// ExtractFields pulls scalar values out of a page, one selector cascade
// per field: the first selector with non empty text wins. Fields whose
// cascade never matches come back empty; the caller decides whether an
// all empty snapshot means not found.
func ExtractFields(html string, selectors map[string][]string) (models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	fields := make(models.Record, len(selectors))
	for name, cascade := range selectors {
		fields[name] = ""
		for _, sel := range cascade {
			if text := CleanCell(doc.Find(sel).First().Text()); text != "" {
				fields[name] = text
				break
			}
		}
	}
	return fields, nil
}
