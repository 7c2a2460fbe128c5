package scraper

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicdata/consulta-api/internal/extractor"
	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/services"
	"github.com/civicdata/consulta-api/internal/store"
	"github.com/civicdata/consulta-api/internal/utils"
)

// companiesDismissModalScript closes the portal's opening notice. ZK
// renders it as a floating window that swallows the first keystroke.
const companiesDismissModalScript = `(() => {
	const btn = document.querySelector('.z-window-modal .z-button, .z-messagebox-window .z-button');
	if (btn) { btn.click(); return true; }
	return false;
})()`

// companiesCommitScript makes the ZK combobox commit the typed value.
// The widget only sends its value to the server on blur and change.
const companiesCommitScript = `(() => {
	const input = document.querySelector('input.z-combobox-inp');
	if (!input) { return false; }
	input.dispatchEvent(new Event('change', { bubbles: true }));
	input.blur();
	return true;
})()`

// NewCompaniesSource consults the companies registry by shareholder
// identity. The portal is a ZK application with server side widget
// state, so the single tier drives a browser.
func NewCompaniesSource(d *Deps) *Source {
	return &Source{
		Name:        "supercias-empresas",
		Collection:  "supercias_empresas",
		Heavyweight: d.companiesBrowser,
		Persist:     persistCompanies,
	}
}

func (d *Deps) companiesBrowser(ctx context.Context, identity string) (*models.Extraction, error) {
	return d.withBrowser(ctx, func(ctx context.Context, b services.BrowserContext) (*models.Extraction, error) {
		if err := b.Navigate(ctx, d.Portals.CompaniesBase); err != nil {
			return nil, NewNetworkError("open companies portal", err)
		}
		pause(ctx, 3*time.Second)

		_, _ = b.ExecuteScript(ctx, companiesDismissModalScript)

		if err := b.WaitForSelector(ctx, `input.z-combobox-inp`); err != nil {
			return nil, NewParseError("companies form not present", err)
		}
		if err := b.Type(ctx, `input.z-combobox-inp`, identity); err != nil {
			return nil, NewParseError("fill companies form", err)
		}
		if _, err := b.ExecuteScript(ctx, companiesCommitScript); err != nil {
			return nil, NewParseError("commit companies search value", err)
		}
		pause(ctx, 2*time.Second)

		if err := b.Click(ctx, `button.z-button`); err != nil {
			return nil, NewParseError("submit companies search", err)
		}

		// The result grid renders only when the identity is registered;
		// a bounded wait tells the empty answer apart from a slow one.
		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		defer cancel()
		if err := b.WaitForSelector(waitCtx, `tr.z-listitem`); err != nil {
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, ErrNoResults
			}
			return nil, NewNetworkError("companies results wait", err)
		}

		html, err := b.GetHTML(ctx)
		if err != nil {
			return nil, NewNetworkError("read companies page", err)
		}

		records, err := extractCompanyRows(html)
		if err != nil {
			return nil, NewParseError("extract companies grid", err)
		}

		tipo := "juridica"
		if utils.IsNaturalPerson(identity) {
			tipo = "natural"
		}
		fields := models.Record{
			"tipoPersona":       tipo,
			"cantidadRegistros": strconv.Itoa(len(records)),
		}
		return &models.Extraction{Records: records, Fields: fields, Method: models.MethodHeavyweight}, nil
	})
}

// extractCompanyRows walks every ZK listbox on the page. Column names
// come from the header row of each listbox, so the extraction survives
// the portal reordering its grids.
func extractCompanyRows(html string) ([]models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var records []models.Record
	doc.Find(`.z-listbox`).Each(func(_ int, box *goquery.Selection) {
		var headers []string
		box.Find(`tr.z-listhead th.z-listheader`).Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, extractor.CleanCell(th.Text()))
		})
		if len(headers) == 0 {
			return
		}

		box.Find(`tr.z-listitem`).Each(func(_ int, row *goquery.Selection) {
			rec := make(models.Record, len(headers))
			row.Find(`td.z-listcell`).Each(func(i int, td *goquery.Selection) {
				if i < len(headers) && headers[i] != "" {
					rec[headers[i]] = extractor.CleanCell(td.Text())
				}
			})
			if len(rec) > 0 {
				records = append(records, rec)
			}
		})
	})
	return records, nil
}

func persistCompanies(ctx context.Context, st *store.Store, identity string, ex *models.Extraction) (string, error) {
	if _, err := st.UpsertSnapshot(ctx, "supercias_empresas", identity, ex.Fields); err != nil {
		return "", err
	}
	// The grid is the portal's full current answer, so the stored array
	// is replaced rather than merged.
	if err := st.ReplaceArray(ctx, "supercias_empresas", identity, "registros", ex.Records); err != nil {
		return "", err
	}
	return "consulta exitosa, registros societarios actualizados", nil
}
