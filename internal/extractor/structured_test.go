package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCell(t *testing.T) {
	assert.Equal(t, "PICHINCHA", CleanCell("  <span>PICHINCHA</span>&nbsp;"))
	assert.Equal(t, "a b", CleanCell("a\n\t  b"))
	assert.Equal(t, "", CleanCell("<div></div>&nbsp;&nbsp;"))
}

func TestUnwrapPartialResponse(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?><partial-response><changes>` +
		`<update id="form1:dataTableJuicios2"><![CDATA[<table><tr data-ri="0"></tr></table>]]></update>` +
		`<update id="javax.faces.ViewState"><![CDATA[stateless]]></update>` +
		`</changes></partial-response>`

	got, err := UnwrapPartialResponse(xml, "form1:dataTableJuicios2")
	require.NoError(t, err)
	assert.Contains(t, got, `tr data-ri="0"`)
}

func TestUnwrapPartialResponseGenericFallback(t *testing.T) {
	xml := `<partial-response><changes>` +
		`<update id="renamedRegion"><![CDATA[<div>payload</div>]]></update>` +
		`</changes></partial-response>`

	got, err := UnwrapPartialResponse(xml, "form1:dataTableJuicios2")
	require.NoError(t, err)
	assert.Equal(t, "<div>payload</div>", got)
}

func TestUnwrapPartialResponseMalformed(t *testing.T) {
	_, err := UnwrapPartialResponse("<partial-response></partial-response>", "x")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtractRows(t *testing.T) {
	html := `<table><tbody>
		<tr data-ri="0">
			<td role="gridcell">PICHINCHA</td>
			<td role="gridcell">QUITO</td>
			<td role="gridcell"><span>17294-2023</span></td>
		</tr>
		<tr data-ri="1">
			<td role="gridcell">GUAYAS</td>
			<td role="gridcell">GUAYAQUIL</td>
			<td role="gridcell">09123-2024</td>
		</tr>
	</tbody></table>`

	records, err := ExtractRows(html, TableConfig{
		RowSelector:  `tr[data-ri]`,
		CellSelector: `td[role="gridcell"]`,
		Columns:      []string{"provincia", "canton", "numeroCausa"},
		MinCells:     3,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "PICHINCHA", records[0]["provincia"])
	assert.Equal(t, "17294-2023", records[0]["numeroCausa"])
	assert.Equal(t, "GUAYAQUIL", records[1]["canton"])
}

func TestExtractRowsNoResultsMarker(t *testing.T) {
	html := `<table><tr><td class="ui-datatable-empty-message">No se encuentran resultados.</td></tr></table>`

	_, err := ExtractRows(html, TableConfig{
		RowSelector:      `tr[data-ri]`,
		Columns:          []string{"a"},
		NoResultsMarkers: []string{"No se encuentran resultados."},
	})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestExtractRowsSkipsShortRows(t *testing.T) {
	html := `<table>
		<tr data-ri="0"><td>only one cell</td></tr>
		<tr data-ri="1"><td>a</td><td>b</td></tr>
	</table>`

	records, err := ExtractRows(html, TableConfig{
		RowSelector: `tr[data-ri]`,
		Columns:     []string{"x", "y"},
		MinCells:    2,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0]["x"])
}

func TestExtractFieldsCascade(t *testing.T) {
	html := `<div><span class="new-style">USTED NO REGISTRA DEUDAS</span></div>`

	fields, err := ExtractFields(html, map[string][]string{
		"estadoDeuda": {".old-style span", ".new-style"},
		"otro":        {".missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "USTED NO REGISTRA DEUDAS", fields["estadoDeuda"])
	assert.Equal(t, "", fields["otro"])
}
