package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/civicdata/consulta-api/internal/extractor"
	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/services"
	"github.com/civicdata/consulta-api/internal/store"
)

var (
	iessCoverageRe    = regexp.MustCompile(`(?i)(SIN|CON)\s*COBERTURA`)
	iessAffiliationRe = regexp.MustCompile(`(?i)Tipo\s+de\s+Afiliaci[oó]n:\s*([^.]+?)(?:\.|$|Observaci[oó]n)`)
	iessDetailRe      = regexp.MustCompile(`(?i)Observaci[oó]n:\s*([^.]+?)(?:\.|$)`)
)

// iessRules recovers the coverage snapshot from the portal's rendered
// message panel. The panel is an image-heavy PrimeFaces growl, so the
// values come back through OCR and need tolerant matching.
var iessRules = []extractor.FieldRule{
	{
		Field: "cobertura",
		Steps: []extractor.Step{
			func(text string) (string, bool) {
				if m := iessCoverageRe.FindStringSubmatch(text); m != nil {
					return fmt.Sprintf("%s COBERTURA IESS", strings.ToUpper(m[1])), true
				}
				return "", false
			},
			extractor.Keyword("SIN COBERTURA IESS", "No se Encuentra Activo en Ninguna Empresa"),
			func(text string) (string, bool) {
				if strings.Contains(text, "Tipo de Afiliación") && !strings.Contains(text, "No Definida") {
					return "CON COBERTURA IESS", true
				}
				return "", false
			},
		},
	},
	{
		Field: "tipoAfiliacion",
		Steps: []extractor.Step{
			extractor.Pattern(iessAffiliationRe),
			extractor.Keyword("No Definida", "Afiliación No Definida"),
		},
	},
	{
		Field: "detalle",
		Steps: []extractor.Step{
			extractor.Pattern(iessDetailRe),
			extractor.Keyword("No se Encuentra Activo en Ninguna Empresa", "No se Encuentra Activo"),
		},
	},
}

// NewIESSSource consults the social security coverage form. There is no
// replayable backend; the form only answers through a rendered message
// panel, so the single tier is browser plus OCR.
func NewIESSSource(d *Deps) *Source {
	return &Source{
		Name:        "datos-iess",
		Collection:  "datos_iess",
		Heavyweight: d.iessBrowser,
		Persist:     persistIESS,
	}
}

func (d *Deps) iessBrowser(ctx context.Context, cedula string) (*models.Extraction, error) {
	return d.withBrowser(ctx, func(ctx context.Context, b services.BrowserContext) (*models.Extraction, error) {
		if err := b.Navigate(ctx, d.Portals.IESSBase); err != nil {
			return nil, NewNetworkError("open coverage portal", err)
		}
		if err := b.WaitForSelector(ctx, `#formConsulta\:cedula_text`); err != nil {
			return nil, NewParseError("coverage form not present", err)
		}
		if err := b.Type(ctx, `#formConsulta\:cedula_text`, cedula); err != nil {
			return nil, NewParseError("fill coverage form", err)
		}

		// The form requires a consultation date; today is always valid.
		if err := b.Click(ctx, `.ui-datepicker-trigger`); err != nil {
			return nil, NewParseError("open date picker", err)
		}
		pause(ctx, time.Second)
		if err := b.Click(ctx, `.ui-datepicker-days-cell-over.ui-datepicker-today`); err != nil {
			return nil, NewParseError("pick consultation date", err)
		}

		if err := b.Click(ctx, `#formConsulta\:contingencia_select .ui-selectonemenu-label`); err != nil {
			return nil, NewParseError("open contingency menu", err)
		}
		pause(ctx, time.Second)
		if err := b.Click(ctx, `li[data-label='Enfermedad']`); err != nil {
			return nil, NewParseError("pick contingency", err)
		}
		pause(ctx, time.Second)

		// The submit button re-renders itself while the form validates;
		// keep clicking until it disappears from the page.
		for i := 0; i < 5; i++ {
			if err := b.Click(ctx, `#formConsulta\:j_idt40`); err != nil {
				break
			}
			pause(ctx, 2*time.Second)
		}
		pause(ctx, 3*time.Second)

		full, err := b.Screenshot(ctx)
		if err != nil {
			return nil, NewNetworkError("capture coverage answer", err)
		}
		panel, err := b.ScreenshotElement(ctx, `.ui-messages-info`)
		if err != nil {
			// The message panel is absent on some answers; the full page
			// capture still carries the text.
			panel = nil
		}

		text, err := d.OCR.RecognizeAll(ctx, full, panel)
		if err != nil {
			return nil, &ScrapeError{Kind: KindInternal, Message: "recognize coverage answer", Err: err}
		}

		if strings.Contains(text, "Cédula No se Encuentra Registrada en el IESS") {
			return nil, &ScrapeError{Kind: KindNotFound, Message: "identity not registered", Err: ErrNoResults}
		}

		fields := extractor.Apply(text, iessRules)
		return &models.Extraction{Fields: fields, Method: models.MethodHeavyweight}, nil
	})
}

func persistIESS(ctx context.Context, st *store.Store, cedula string, ex *models.Extraction) (string, error) {
	if _, err := st.UpsertSnapshot(ctx, "datos_iess", cedula, ex.Fields); err != nil {
		return "", err
	}
	return "consulta exitosa, cobertura actualizada", nil
}
