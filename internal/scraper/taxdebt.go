package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicdata/consulta-api/internal/extractor"
	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/services"
	"github.com/civicdata/consulta-api/internal/store"
)

// taxDebtSelectors is the cascade for the debt verdict banner. The
// portal reshuffles the banner's utility classes between releases, so
// the cascade goes from the exact current markup to looser shapes.
var taxDebtSelectors = map[string][]string{
	"estadoDeuda": {
		`div.col-sm-12.text-center.tamano-ya-pago.animated.fadeInUp span`,
		`.tamano-ya-pago span`,
		`.col-sm-12.text-center span`,
		`[class*="tamano-ya-pago"] span`,
		`div[class*="text-center"] span`,
	},
}

// NewTaxDebtSource consults the firm and contested tax debts page. The
// page is an Angular app behind an anti-bot wall, so the single tier is
// browser driven.
func NewTaxDebtSource(d *Deps) *Source {
	return &Source{
		Name:        "sri-deudas",
		Collection:  "sri_deudas",
		Heavyweight: d.taxDebtBrowser,
		Persist:     persistTaxDebt,
	}
}

func (d *Deps) taxDebtBrowser(ctx context.Context, ruc string) (*models.Extraction, error) {
	return d.withBrowser(ctx, func(ctx context.Context, b services.BrowserContext) (*models.Extraction, error) {
		if err := b.Navigate(ctx, d.Portals.TaxDebtBase); err != nil {
			return nil, NewNetworkError("open tax debt portal", err)
		}
		if err := d.awaitChallenges(ctx, b); err != nil {
			return nil, err
		}

		if err := b.WaitForSelector(ctx, `#busquedaRucId`); err != nil {
			return nil, NewParseError("tax debt form not present", err)
		}
		if err := b.Type(ctx, `#busquedaRucId`, ruc); err != nil {
			return nil, NewParseError("fill tax debt form", err)
		}
		pause(ctx, 2*time.Second)

		// An unknown identity raises a warning panel before the search
		// button ever becomes usable.
		html, err := b.GetHTML(ctx)
		if err != nil {
			return nil, NewNetworkError("read tax debt page", err)
		}
		if msg := taxDebtWarning(html); msg != "" {
			fields := models.Record{
				"estadoDeuda":   msg,
				"tipoResultado": "sin_resultados",
			}
			return &models.Extraction{Fields: fields, Method: models.MethodHeavyweight}, nil
		}

		if err := b.Click(ctx, `.ui-button.cyan-btn`); err != nil {
			return nil, NewParseError("submit tax debt search", err)
		}
		if err := b.WaitForSelector(ctx, `span.titulo-consultas-1.tamano-defecto-campos`); err != nil {
			return nil, NewParseError("tax debt answer not present", err)
		}

		html, err = b.GetHTML(ctx)
		if err != nil {
			return nil, NewNetworkError("read tax debt answer", err)
		}

		fields, err := extractor.ExtractFields(html, taxDebtSelectors)
		if err != nil {
			return nil, NewParseError("extract tax debt verdict", err)
		}
		if fields["estadoDeuda"] == "" {
			fields["estadoDeuda"] = "NO DETERMINADO"
		}
		fields["tipoResultado"] = "consulta"

		return &models.Extraction{Fields: fields, Method: models.MethodHeavyweight}, nil
	})
}

// taxDebtWarning returns the warning panel text when the page shows one.
func taxDebtWarning(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find(`.ui-messages-warn .ui-messages-detail`).First().Text())
}

func persistTaxDebt(ctx context.Context, st *store.Store, ruc string, ex *models.Extraction) (string, error) {
	if _, err := st.UpsertSnapshot(ctx, "sri_deudas", ruc, ex.Fields); err != nil {
		return "", err
	}
	return "consulta exitosa, estado de deudas actualizado", nil
}
