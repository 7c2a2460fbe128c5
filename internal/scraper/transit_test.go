package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/store"
)

const transitGridPage = `<html><body><table>
<tr><td class="titulo1">PEREZ GOMEZ JUAN&nbsp;&nbsp;</td></tr>
<tr><td><a title="Información adicional de Puntos">24</a></td></tr>
<tr><td>LICENCIA TIPO: B&nbsp;/ VALIDEZ: 2027-03-15</td></tr>
<tr><td><a href="clp_estado_cuenta.jsp?ps_persona=445566&ps_opcion=P">cuenta</a></td></tr>
</table></body></html>`

const transitAccountPage = `<table>
<tr><td><font>Valor Pendiente: $ </font></td>
<td><font> 120.50</font></td></tr>
<tr><td><font>Valor Convenio: $ </font></td>
<td><font> 0.00</font></td></tr>
<tr><td><font>Intereses Pendiente: $ </font></td>
<td><font> 3.25</font></td></tr>
<tr><td><font>Total remisión: $ </font></td>
<td><font>0.00</font></td></tr>
</table>`

func transitJSONPage(option string) string {
	if option != "P" {
		return `{"records":0,"rows":[]}`
	}
	cells := make([]string, 18)
	for i := range cells {
		cells[i] = `""`
	}
	cells[2] = `"ANT"`
	cells[3] = `"G-0123456"`
	cells[4] = `"PBA1234"`
	cells[6] = `"2024-06-01"`
	cells[7] = `"2024-06-03"`
	cells[9] = `6`
	cells[13] = `"120.50"`
	cells[15] = `"0.00"`
	cells[16] = `"123.75"`
	cells[17] = `"Exceso de velocidad"`

	row := `{"id":"9001","cell":[`
	for i, c := range cells {
		if i > 0 {
			row += ","
		}
		row += c
	}
	row += `]}`
	return fmt.Sprintf(`{"records":1,"rows":[%s]}`, row)
}

func transitTestServer(t *testing.T, gridPage string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clp_grid_citaciones.jsp":
			w.Write([]byte(gridPage))
		case "/clp_estado_cuenta.jsp":
			w.Write([]byte(transitAccountPage))
		case "/clp_json_citaciones.jsp":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(transitJSONPage(r.URL.Query().Get("ps_opcion"))))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestTransitReplay(t *testing.T) {
	srv := transitTestServer(t, transitGridPage)
	defer srv.Close()

	d := newTestDeps(srv.URL, srv.Client())
	ex, err := d.transitReplay(context.Background(), "1710034065")
	require.NoError(t, err)

	assert.Equal(t, "PEREZ GOMEZ JUAN", ex.Fields["nombreConductor"])
	assert.Equal(t, "24", ex.Fields["puntos"])
	assert.Equal(t, "Tipo: B | Validez: 2027-03-15", ex.Fields["licenciaInfo"])
	assert.Equal(t, "120.50", ex.Fields["valorPendiente"])
	assert.Equal(t, "3.25", ex.Fields["interesesPendiente"])

	require.Len(t, ex.Records, 1)
	rec := ex.Records[0]
	assert.Equal(t, "9001", rec["id"])
	assert.Equal(t, "G-0123456", rec["citacion"])
	assert.Equal(t, "6", rec["puntos"])
	assert.Equal(t, "Exceso de velocidad", rec["infraccion"])
	assert.Equal(t, "citacionesPendientes", rec["estadoCitacion"])
}

func TestTransitReplayUnknownIdentity(t *testing.T) {
	srv := transitTestServer(t, "<html><body>sin registros</body></html>")
	defer srv.Close()

	d := newTestDeps(srv.URL, srv.Client())
	_, err := d.transitReplay(context.Background(), "1710034065")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestPersistTransitGroupsByState(t *testing.T) {
	st, err := store.Open(":memory:", testLogger())
	require.NoError(t, err)
	defer st.Close()

	ex := &models.Extraction{
		Fields: models.Record{"puntos": "24"},
		Records: []models.Record{
			{"id": "1", "citacion": "G-1", "estadoCitacion": "citacionesPendientes"},
			{"id": "2", "citacion": "G-2", "estadoCitacion": "citacionesPagadas"},
		},
	}

	msg, err := persistTransit(context.Background(), st, "1710034065", ex)
	require.NoError(t, err)
	assert.Equal(t, "consulta exitosa, 2 citaciones nuevas", msg)

	doc, found, err := st.FindByIdentity(context.Background(), "citaciones_ant", "1710034065")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "24", doc["puntos"])
	assert.Len(t, doc["citacionesPendientes"], 1)
	assert.Len(t, doc["citacionesPagadas"], 1)
}
