package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/store"
)

const judicialEntryPage = `<html><body><form id="form1">
<input type="hidden" name="javax.faces.ViewState" value="-111:222" />
</form></body></html>`

func judicialRow(causa string) string {
	cells := []string{
		"PICHINCHA", "QUITO", "UNIDAD JUDICIAL CIVIL", causa, "PEREZ JUAN",
		"EJECUTIVO", "2023-01-10", "2023-01-12", "2023-01-20",
		"", "2023-02-01", "CITADO", "2023-02-15", "PERSONAL", "",
	}
	var b strings.Builder
	b.WriteString(`<tr data-ri="0">`)
	for _, c := range cells {
		fmt.Fprintf(&b, `<td role="gridcell">%s</td>`, c)
	}
	b.WriteString(`</tr>`)
	return b.String()
}

func judicialPartialResponse(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><partial-response><changes>` +
		`<update id="form1:dataTableJuicios2"><![CDATA[<table>` + body + `</table>]]></update>` +
		`</changes></partial-response>`
}

func TestJudicialReplay(t *testing.T) {
	var postedForm string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s1"})
			w.Write([]byte(judicialEntryPage))
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			postedForm = r.PostForm.Encode()
			w.Write([]byte(judicialPartialResponse(judicialRow("17294-2023"))))
		}
	}))
	defer srv.Close()

	d := newTestDeps(srv.URL, srv.Client())
	ex, err := d.judicialReplay(context.Background(), "1710034065")
	require.NoError(t, err)

	require.Len(t, ex.Records, 1)
	rec := ex.Records[0]
	assert.Equal(t, "PICHINCHA", rec["provincia"])
	assert.Equal(t, "17294-2023", rec["numeroCausa"])
	assert.Equal(t, "CITADO", rec["estado"])
	// Empty detail column gets the placeholder.
	assert.Equal(t, "Ver detalles en sistema", rec["observacion"])
	assert.Equal(t, models.MethodLightweight, ex.Method)

	assert.Contains(t, postedForm, "form1%3AtxtDemandadoCedula=1710034065")
	assert.Contains(t, postedForm, "javax.faces.ViewState=-111%3A222")
}

func TestJudicialReplayNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(judicialEntryPage))
			return
		}
		empty := `<tr><td class="ui-datatable-empty-message">No se encuentran resultados.</td></tr>`
		w.Write([]byte(judicialPartialResponse(empty)))
	}))
	defer srv.Close()

	d := newTestDeps(srv.URL, srv.Client())
	_, err := d.judicialReplay(context.Background(), "1710034065")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestJudicialReplaySessionRotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(judicialEntryPage))
			return
		}
		// The portal invalidated the session and answered with a fresh
		// token instead of data.
		rotated := `<input type="hidden" name="javax.faces.ViewState" value="-999:888" />`
		w.Write([]byte(judicialPartialResponse(rotated)))
	}))
	defer srv.Close()

	d := newTestDeps(srv.URL, srv.Client())
	_, err := d.judicialReplay(context.Background(), "1710034065")
	require.Error(t, err)
	assert.Equal(t, KindSession, KindOf(err))
}

func TestJudicialReplayEntryWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>mantenimiento</body></html>"))
	}))
	defer srv.Close()

	d := newTestDeps(srv.URL, srv.Client())
	_, err := d.judicialReplay(context.Background(), "1710034065")
	require.Error(t, err)
	assert.Equal(t, KindSession, KindOf(err))
}

func TestPersistJudicialIdempotent(t *testing.T) {
	st, err := store.Open(":memory:", testLogger())
	require.NoError(t, err)
	defer st.Close()

	ex := &models.Extraction{Records: []models.Record{
		{"numeroCausa": "17294-2023", "fechaActaCitacion": "2023-02-15"},
	}}

	msg, err := persistJudicial(context.Background(), st, "1710034065", ex)
	require.NoError(t, err)
	assert.Equal(t, "consulta exitosa, 1 citaciones nuevas", msg)

	msg, err = persistJudicial(context.Background(), st, "1710034065", ex)
	require.NoError(t, err)
	assert.Equal(t, "consulta exitosa, sin citaciones nuevas", msg)
}
