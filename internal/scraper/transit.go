package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/store"
)

var (
	transitNameRe    = regexp.MustCompile(`<td[^>]*class="titulo1"[^>]*>([^<&]+)&nbsp;&nbsp;</td>`)
	transitPointsRe  = regexp.MustCompile(`title="Información adicional de Puntos">(\d+)</a>`)
	transitLicenseRe = regexp.MustCompile(`LICENCIA TIPO:\s*([^&]+)&[^/]+/\s*VALIDEZ:\s*([^<]+)`)
	transitPersonRe  = regexp.MustCompile(`ps_persona=(\d+)`)

	accountValueRes = map[string]*regexp.Regexp{
		"valorPendiente":     regexp.MustCompile(`Valor Pendiente: \$ </font></td>\s*<td[^>]*><font[^>]*>\s*([\d,\.]+)`),
		"valorConvenio":      regexp.MustCompile(`Valor Convenio: \$ </font></td>\s*<td[^>]*><font[^>]*>\s*([\d,\.]+)`),
		"interesesPendiente": regexp.MustCompile(`Intereses Pendiente: \$ </font></td>\s*<td[^>]*><font[^>]*>\s*([\d,\.]+)`),
		"totalRemision":      regexp.MustCompile(`Total remisión: \$ </font></td>\s*<td[^>]*><font[^>]*>([\d,\.]+)`),
	}
)

// transitStates maps the portal's citation state codes to the array each
// group is merged into.
var transitStates = []struct {
	Option string
	Field  string
}{
	{"P", "citacionesPendientes"},
	{"R", "citacionesImpugnadas"},
	{"A", "citacionesAnuladas"},
	{"G", "citacionesPagadas"},
}

type transitRow struct {
	ID   string            `json:"id"`
	Cell []json.RawMessage `json:"cell"`
}

type transitPage struct {
	Records int          `json:"records"`
	Rows    []transitRow `json:"rows"`
}

// NewTransitSource consults the traffic citations portal. The portal has
// no anti-bot layer, so the whole consultation is a lightweight replay
// of its grid, account state and per-state JSON endpoints.
func NewTransitSource(d *Deps) *Source {
	return &Source{
		Name:        "citaciones-ant",
		Collection:  "citaciones_ant",
		Lightweight: d.transitReplay,
		Persist:     persistTransit,
	}
}

func (d *Deps) transitReplay(ctx context.Context, cedula string) (*models.Extraction, error) {
	gridURL := fmt.Sprintf("%s/clp_grid_citaciones.jsp?ps_tipo_identificacion=CED&ps_identificacion=%s&ps_placa=", d.Portals.TransitBase, cedula)
	gridHTML, err := d.transitGet(ctx, gridURL, "")
	if err != nil {
		return nil, err
	}

	fields := models.Record{
		"nombreConductor": "",
		"puntos":          "0",
		"licenciaInfo":    "",
	}
	if m := transitNameRe.FindStringSubmatch(gridHTML); m != nil {
		fields["nombreConductor"] = strings.TrimSpace(m[1])
	}
	if m := transitPointsRe.FindStringSubmatch(gridHTML); m != nil {
		fields["puntos"] = m[1]
	}
	if m := transitLicenseRe.FindStringSubmatch(gridHTML); m != nil {
		fields["licenciaInfo"] = fmt.Sprintf("Tipo: %s | Validez: %s", strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}

	person := ""
	if m := transitPersonRe.FindStringSubmatch(gridHTML); m != nil {
		person = m[1]
	}
	if person == "" {
		// Without the internal person id there is nothing else to ask
		// the portal; an unknown identity simply never appears in the
		// grid page.
		return nil, ErrNoResults
	}

	accountURL := fmt.Sprintf("%s/clp_estado_cuenta.jsp?ps_persona=%s&ps_id_contrato=&ps_opcion=P&ps_placa=&ps_identificacion=%s&ps_tipo_identificacion=CED",
		d.Portals.TransitBase, person, cedula)
	if accountHTML, err := d.transitGet(ctx, accountURL, ""); err == nil {
		for name, re := range accountValueRes {
			fields[name] = "0.00"
			if m := re.FindStringSubmatch(accountHTML); m != nil {
				fields[name] = strings.TrimSpace(m[1])
			}
		}
	}

	var mu sync.Mutex
	var records []models.Record

	g, gctx := errgroup.WithContext(ctx)
	for _, state := range transitStates {
		g.Go(func() error {
			rows, err := d.transitCitations(gctx, person, cedula, state.Option)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, row := range rows {
				row["estadoCitacion"] = state.Field
				records = append(records, row)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.Extraction{
		Records: records,
		Fields:  fields,
		Method:  models.MethodLightweight,
	}, nil
}

// transitCitations replays one per-state JSON grid query.
func (d *Deps) transitCitations(ctx context.Context, person, cedula, option string) ([]models.Record, error) {
	u := fmt.Sprintf("%s/clp_json_citaciones.jsp?ps_opcion=%s&ps_id_contrato=&ps_id_persona=%s&ps_placa=&ps_identificacion=%s&ps_tipo_identificacion=CED&_search=false&nd=%d&rows=50&page=1&sidx=fecha_emision&sord=desc",
		d.Portals.TransitBase, option, person, cedula, time.Now().UnixMilli())

	body, err := d.transitGet(ctx, u, "application/json, text/javascript, */*; q=0.01")
	if err != nil {
		return nil, err
	}

	var page transitPage
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		return nil, NewParseError(fmt.Sprintf("decode citations option %s", option), err)
	}

	records := make([]models.Record, 0, len(page.Rows))
	for _, row := range page.Rows {
		cell := func(i int) string { return rawCell(row.Cell, i) }
		records = append(records, models.Record{
			"id":                row.ID,
			"infraccion":        cell(17),
			"entidad":           cell(2),
			"citacion":          cell(3),
			"placa":             cell(4),
			"fechaEmision":      cell(6),
			"fechaNotificacion": cell(7),
			"puntos":            cell(9),
			"multa":             cell(13),
			"remision":          cell(15),
			"totalPagar":        cell(16),
		})
	}
	return records, nil
}

func (d *Deps) transitGet(ctx context.Context, u, accept string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", NewNetworkError("build transit request", err)
	}
	req.Header.Set("User-Agent", d.UserAgent)
	req.Header.Set("Referer", d.Portals.TransitBase+"/clp_criterio_consulta.jsp")
	if accept != "" {
		req.Header.Set("Accept", accept)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return "", NewNetworkError("transit request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", NewNetworkError(fmt.Sprintf("transit status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewNetworkError("read transit response", err)
	}
	return string(body), nil
}

// rawCell renders one JSON grid cell as text whatever its JSON type.
func rawCell(cells []json.RawMessage, i int) string {
	if i >= len(cells) {
		return ""
	}
	var s string
	if err := json.Unmarshal(cells[i], &s); err == nil {
		return s
	}
	return strings.Trim(string(cells[i]), `"`)
}

func persistTransit(ctx context.Context, st *store.Store, cedula string, ex *models.Extraction) (string, error) {
	if _, err := st.UpsertSnapshot(ctx, "citaciones_ant", cedula, ex.Fields); err != nil {
		return "", err
	}

	byState := make(map[string][]models.Record)
	for _, rec := range ex.Records {
		field := rec["estadoCitacion"]
		delete(rec, "estadoCitacion")
		byState[field] = append(byState[field], rec)
	}

	total := 0
	for _, state := range transitStates {
		items := byState[state.Field]
		if len(items) == 0 {
			continue
		}
		inserted, err := st.MergeArrayNoDuplicates(ctx, "citaciones_ant", cedula, state.Field, items, []string{"id", "citacion"})
		if err != nil {
			return "", err
		}
		total += inserted
	}

	if total == 0 {
		return "consulta exitosa, sin citaciones nuevas", nil
	}
	return fmt.Sprintf("consulta exitosa, %d citaciones nuevas", total), nil
}
