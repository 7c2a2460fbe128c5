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

	"github.com/civicdata/consulta-api/internal/extractor"
	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/services"
	"github.com/civicdata/consulta-api/internal/session"
	"github.com/civicdata/consulta-api/internal/store"
)

// judicialColumns is the column layout of the citations results table.
// The portal renders fifteen columns; the last one is a detail button,
// so the lightweight tier fills observacion with a placeholder.
var judicialColumns = []string{
	"provincia", "canton", "judicatura", "numeroCausa", "demandado",
	"proceso", "fechaRazonCopias", "fechaRazonEnvio", "fechaBoletasRecibidas",
	"fechaDevolucion", "fechaAsignacionCitado", "estado", "fechaActaCitacion",
	"tiposCitacion", "observacion",
}

var judicialNoResults = []string{
	"No se encuentran resultados.",
	"ui-datatable-empty-message",
}

// NewJudicialSource consults the judicial citations portal. The
// lightweight tier replays the portal's own JSF AJAX search with a
// negotiated state token; the heavyweight tier drives the search form in
// a real browser.
func NewJudicialSource(d *Deps) *Source {
	return &Source{
		Name:        "citaciones-judiciales",
		Collection:  "citacion_judicial",
		Lightweight: d.judicialReplay,
		Heavyweight: d.judicialBrowser,
		Persist:     persistJudicial,
	}
}

func (d *Deps) judicialReplay(ctx context.Context, cedula string) (*models.Extraction, error) {
	st, err := session.Negotiate(ctx, d.HTTP, d.Portals.JudicialBase)
	if err != nil {
		if errors.Is(err, session.ErrTokenNotFound) {
			return nil, NewSessionError("negotiate citations session", err)
		}
		return nil, NewNetworkError("negotiate citations session", err)
	}

	form := url.Values{}
	form.Set("form1", "form1")
	form.Set("form1:txtDemandadoCedula", cedula)
	form.Set("form1:butBuscarJuicios", "form1:butBuscarJuicios")
	form.Set("javax.faces.ViewState", st.ViewState)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Portals.JudicialBase, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewNetworkError("build citations search", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Referer", d.Portals.JudicialBase)
	req.Header.Set("User-Agent", d.UserAgent)
	st.Apply(req)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return nil, NewNetworkError("citations search request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewNetworkError(fmt.Sprintf("citations search status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("read citations response", err)
	}

	fragment := string(body)
	if strings.Contains(fragment, "<partial-response") {
		fragment, err = extractor.UnwrapPartialResponse(fragment, "form1:dataTableJuicios2")
		if err != nil {
			return nil, NewParseError("unwrap citations response", err)
		}
		// A rotated token inside the partial response means the portal
		// invalidated the negotiated session mid-flow.
		if tok, ok := session.ExtractViewState(fragment); ok && tok != st.ViewState && !strings.Contains(fragment, "data-ri") {
			return nil, NewSessionError("state token rotated mid-flow", session.ErrTokenNotFound)
		}
	}

	records, err := extractor.ExtractRows(fragment, extractor.TableConfig{
		RowSelector:      `tr[data-ri]`,
		CellSelector:     `td[role="gridcell"]`,
		Columns:          judicialColumns,
		MinCells:         14,
		NoResultsMarkers: judicialNoResults,
	})
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec["observacion"] == "" {
			rec["observacion"] = "Ver detalles en sistema"
		}
	}

	return &models.Extraction{Records: records, Method: models.MethodLightweight}, nil
}

func (d *Deps) judicialBrowser(ctx context.Context, cedula string) (*models.Extraction, error) {
	return d.withBrowser(ctx, func(ctx context.Context, b services.BrowserContext) (*models.Extraction, error) {
		if err := b.Navigate(ctx, d.Portals.JudicialBase); err != nil {
			return nil, NewNetworkError("open citations portal", err)
		}
		if err := b.WaitForSelector(ctx, `#form1\:txtDemandadoCedula`); err != nil {
			return nil, NewParseError("citations form not present", err)
		}
		if err := b.Type(ctx, `#form1\:txtDemandadoCedula`, cedula); err != nil {
			return nil, NewParseError("fill citations form", err)
		}
		if err := b.Click(ctx, `#form1\:butBuscarJuicios`); err != nil {
			return nil, NewParseError("submit citations search", err)
		}

		select {
		case <-ctx.Done():
			return nil, NewNetworkError("citations search wait", ctx.Err())
		case <-time.After(5 * time.Second):
		}

		html, err := b.GetHTML(ctx)
		if err != nil {
			return nil, NewNetworkError("read citations page", err)
		}

		records, err := extractor.ExtractRows(html, extractor.TableConfig{
			RowSelector:      `#form1\:dataTableJuicios2_data tr`,
			Columns:          judicialColumns,
			MinCells:         14,
			NoResultsMarkers: judicialNoResults,
		})
		if err != nil {
			return nil, err
		}

		return &models.Extraction{Records: records, Method: models.MethodHeavyweight}, nil
	})
}

func persistJudicial(ctx context.Context, st *store.Store, cedula string, ex *models.Extraction) (string, error) {
	inserted, err := st.MergeArrayNoDuplicates(ctx, "citacion_judicial", cedula, "citaciones",
		ex.Records, []string{"numeroCausa", "fechaActaCitacion"})
	if err != nil {
		return "", err
	}
	if inserted == 0 {
		return "consulta exitosa, sin citaciones nuevas", nil
	}
	return fmt.Sprintf("consulta exitosa, %d citaciones nuevas", inserted), nil
}
