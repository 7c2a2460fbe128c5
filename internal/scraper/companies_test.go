package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/store"
)

const companiesGridPage = `<html><body>
<div class="z-listbox">
	<table>
		<tr class="z-listhead">
			<th class="z-listheader">Expediente</th>
			<th class="z-listheader">Compañía</th>
			<th class="z-listheader">Situación</th>
		</tr>
		<tr class="z-listitem">
			<td class="z-listcell">12345</td>
			<td class="z-listcell">ACME DEL ECUADOR S.A.</td>
			<td class="z-listcell">ACTIVA</td>
		</tr>
		<tr class="z-listitem">
			<td class="z-listcell">67890</td>
			<td class="z-listcell">BETA CIA. LTDA.</td>
			<td class="z-listcell">DISUELTA</td>
		</tr>
	</table>
</div>
</body></html>`

func TestExtractCompanyRows(t *testing.T) {
	records, err := extractCompanyRows(companiesGridPage)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "ACME DEL ECUADOR S.A.", records[0]["Compañía"])
	assert.Equal(t, "ACTIVA", records[0]["Situación"])
	assert.Equal(t, "67890", records[1]["Expediente"])
}

func TestExtractCompanyRowsNoGrid(t *testing.T) {
	records, err := extractCompanyRows("<html><body>sin tablas</body></html>")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPersistCompaniesReplacesGrid(t *testing.T) {
	st, err := store.Open(":memory:", testLogger())
	require.NoError(t, err)
	defer st.Close()

	first := &models.Extraction{
		Fields:  models.Record{"tipoPersona": "natural", "cantidadRegistros": "2"},
		Records: []models.Record{{"Expediente": "12345"}, {"Expediente": "67890"}},
	}
	_, err = persistCompanies(context.Background(), st, "1710034065", first)
	require.NoError(t, err)

	// A later consultation with fewer rows supersedes the stored grid.
	second := &models.Extraction{
		Fields:  models.Record{"tipoPersona": "natural", "cantidadRegistros": "1"},
		Records: []models.Record{{"Expediente": "12345"}},
	}
	_, err = persistCompanies(context.Background(), st, "1710034065", second)
	require.NoError(t, err)

	doc, found, err := st.FindByIdentity(context.Background(), "supercias_empresas", "1710034065")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, doc["registros"], 1)
	assert.Equal(t, "1", doc["cantidadRegistros"])
}
