package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/store"
)

type interpolNotice struct {
	Forename      string   `json:"forename"`
	Name          string   `json:"name"`
	DateOfBirth   string   `json:"date_of_birth"`
	Nationalities []string `json:"nationalities"`
	EntityID      string   `json:"entity_id"`
}

type interpolAnswer struct {
	Total    int `json:"total"`
	Embedded struct {
		Notices []interpolNotice `json:"notices"`
	} `json:"_embedded"`
}

// NewInterpolSource consults the red notices public API by name. The
// identity is a composite "nombre|apellido" pair; every hit is a
// possible homonym, never a confirmed match.
func NewInterpolSource(d *Deps) *Source {
	return &Source{
		Name:        "interpol",
		Collection:  "interpol",
		Lightweight: d.interpolReplay,
		Persist:     persistInterpol,
	}
}

// splitInterpolIdentity separates the composite identity into its given
// name and surname halves.
func splitInterpolIdentity(identity string) (nombre, apellido string) {
	nombre, apellido, _ = strings.Cut(identity, "|")
	return strings.TrimSpace(nombre), strings.TrimSpace(apellido)
}

func (d *Deps) interpolReplay(ctx context.Context, identity string) (*models.Extraction, error) {
	nombre, apellido := splitInterpolIdentity(identity)

	q := url.Values{}
	q.Set("name", apellido)
	q.Set("forename", nombre)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.Portals.InterpolBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil, NewNetworkError("build notices request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return nil, NewNetworkError("notices request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewNetworkError(fmt.Sprintf("notices status %d", resp.StatusCode), nil)
	}

	var answer interpolAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, NewParseError("decode notices answer", err)
	}

	records := make([]models.Record, 0, len(answer.Embedded.Notices))
	for _, n := range answer.Embedded.Notices {
		records = append(records, models.Record{
			"nombre":          strings.TrimSpace(n.Forename + " " + n.Name),
			"fechaNacimiento": n.DateOfBirth,
			"nacionalidad":    strings.Join(n.Nationalities, ", "),
			"entityId":        n.EntityID,
			"fuente":          "interpol",
		})
	}

	fields := models.Record{
		"cantidadResultados": strconv.Itoa(answer.Total),
		"homonimo":           strconv.FormatBool(answer.Total > 0),
	}
	return &models.Extraction{Records: records, Fields: fields, Method: models.MethodLightweight}, nil
}

func persistInterpol(ctx context.Context, st *store.Store, identity string, ex *models.Extraction) (string, error) {
	nombre, apellido := splitInterpolIdentity(identity)
	clave := strings.TrimSpace(nombre + " " + apellido)

	// Notices are homonym candidates, not facts about the person, so
	// only the aggregate snapshot is stored; the notices themselves go
	// back to the caller.
	if _, err := st.UpsertSnapshot(ctx, "interpol", clave, ex.Fields); err != nil {
		return "", err
	}
	if len(ex.Records) == 0 {
		return "consulta exitosa, sin coincidencias", nil
	}
	return fmt.Sprintf("consulta exitosa, %d posibles coincidencias", len(ex.Records)), nil
}
