package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicdata/consulta-api/internal/extractor"
	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/services"
	"github.com/civicdata/consulta-api/internal/session"
	"github.com/civicdata/consulta-api/internal/store"
)

// The alimony portal renders four scalar columns per pension plus a
// nested parties table inside the fifth cell.
var pensionColumns = []string{
	"codigo", "numProcesoJudicial", "dependenciaJurisdiccional", "tipoPension",
}

var pensionNoResults = []string{
	"No se encuentra resultados.",
	"ui-datatable-empty-message",
}

// NewPensionSource consults the judicial alimony pension registry. The
// lightweight tier replays the portal's JSF AJAX search; the heavyweight
// tier drives the same form in a real browser.
func NewPensionSource(d *Deps) *Source {
	return &Source{
		Name:        "pension-alimenticia",
		Collection:  "pension_alimenticia",
		Lightweight: d.pensionReplay,
		Heavyweight: d.pensionBrowser,
		Persist:     persistPension,
	}
}

func (d *Deps) pensionReplay(ctx context.Context, cedula string) (*models.Extraction, error) {
	st, err := session.Negotiate(ctx, d.HTTP, d.Portals.PensionBase)
	if err != nil {
		if errors.Is(err, session.ErrTokenNotFound) {
			return nil, NewSessionError("negotiate pensions session", err)
		}
		return nil, NewNetworkError("negotiate pensions session", err)
	}

	form := url.Values{}
	form.Set("javax.faces.partial.ajax", "true")
	form.Set("javax.faces.source", "form:b_buscar_cedula")
	form.Set("javax.faces.partial.execute", "@all")
	form.Set("javax.faces.partial.render", "form:pResultado panelMensajes form:pFiltro")
	form.Set("form:b_buscar_cedula", "form:b_buscar_cedula")
	form.Set("form", "form")
	form.Set("form:t_texto_cedula", cedula)
	form.Set("form:s_criterio_busqueda", "Seleccione...")
	form.Set("form:t_texto", "")
	form.Set("javax.faces.ViewState", st.ViewState)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Portals.PensionBase, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewNetworkError("build pensions search", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/xml, text/xml, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Faces-Request", "partial/ajax")
	req.Header.Set("Referer", d.Portals.PensionBase)
	req.Header.Set("User-Agent", d.UserAgent)
	st.Apply(req)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return nil, NewNetworkError("pensions search request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewNetworkError(fmt.Sprintf("pensions search status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("read pensions response", err)
	}

	fragment := string(body)
	// The portal answers an expired view with a redirect instruction
	// instead of an update block.
	if strings.Contains(fragment, "viewExpired.jsf") || strings.Contains(fragment, "<redirect") {
		return nil, NewSessionError("pensions view expired mid-flow", session.ErrTokenNotFound)
	}
	if strings.Contains(fragment, "<partial-response") {
		fragment, err = extractor.UnwrapPartialResponse(fragment, "form:pResultado")
		if err != nil {
			return nil, NewParseError("unwrap pensions response", err)
		}
	}

	records, err := extractPensionRows(fragment)
	if err != nil {
		return nil, err
	}

	return &models.Extraction{Records: records, Method: models.MethodLightweight}, nil
}

func (d *Deps) pensionBrowser(ctx context.Context, cedula string) (*models.Extraction, error) {
	return d.withBrowser(ctx, func(ctx context.Context, b services.BrowserContext) (*models.Extraction, error) {
		if err := b.Navigate(ctx, d.Portals.PensionBase); err != nil {
			return nil, NewNetworkError("open pensions portal", err)
		}
		if err := b.WaitForSelector(ctx, `#form\:t_texto_cedula`); err != nil {
			return nil, NewParseError("pensions form not present", err)
		}
		if err := b.Type(ctx, `#form\:t_texto_cedula`, cedula); err != nil {
			return nil, NewParseError("fill pensions form", err)
		}
		if err := b.Click(ctx, `#form\:b_buscar_cedula`); err != nil {
			return nil, NewParseError("submit pensions search", err)
		}

		pause(ctx, 3*time.Second)

		html, err := b.GetHTML(ctx)
		if err != nil {
			return nil, NewNetworkError("read pensions page", err)
		}

		records, err := extractPensionRows(html)
		if err != nil {
			return nil, err
		}

		return &models.Extraction{Records: records, Method: models.MethodHeavyweight}, nil
	})
}

// extractPensionRows walks the results table. The scalar columns come
// from the row's direct cells; the legal representative and the obligated
// party live in the first and fourth rows of the nested parties table.
func extractPensionRows(html string) ([]models.Record, error) {
	for _, marker := range pensionNoResults {
		if strings.Contains(html, marker) {
			return nil, ErrNoResults
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewParseError("parse pensions table", err)
	}

	var records []models.Record
	doc.Find(`tr[data-ri]`).Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered(`td[role="gridcell"]`)
		if cells.Length() < len(pensionColumns) {
			return
		}

		rec := make(models.Record, len(pensionColumns)+2)
		cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if i >= len(pensionColumns) {
				return false
			}
			inner, _ := cell.Html()
			rec[pensionColumns[i]] = extractor.CleanCell(inner)
			return true
		})

		parties := row.Find("table tr.ui-widget-content")
		if cell := parties.Eq(0).Find("td.tabla-columna-datos"); cell.Length() > 0 {
			rec["representanteLegal"] = extractor.CleanCell(cell.First().Text())
		}
		if cell := parties.Eq(3).Find("td.tabla-columna-datos"); cell.Length() > 0 {
			rec["obligadoPrincipal"] = extractor.CleanCell(cell.First().Text())
		}

		records = append(records, rec)
	})

	return records, nil
}

func persistPension(ctx context.Context, st *store.Store, cedula string, ex *models.Extraction) (string, error) {
	inserted, err := st.MergeArrayNoDuplicates(ctx, "pension_alimenticia", cedula, "pensiones",
		ex.Records, []string{"codigo", "numProcesoJudicial"})
	if err != nil {
		return "", err
	}
	if inserted == 0 {
		return "consulta exitosa, sin pensiones nuevas", nil
	}
	return fmt.Sprintf("consulta exitosa, %d pensiones nuevas", inserted), nil
}
