package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/store"
)

type processQuery struct {
	NumeroCausa string `json:"numeroCausa"`
	Actor       struct {
		CedulaActor string `json:"cedulaActor"`
		NombreActor string `json:"nombreActor"`
	} `json:"actor"`
	Demandado struct {
		CedulaDemandado string `json:"cedulaDemandado"`
		NombreDemandado string `json:"nombreDemandado"`
	} `json:"demandado"`
	First          int    `json:"first"`
	NumeroFiscalia string `json:"numeroFiscalia"`
	PageSize       int    `json:"pageSize"`
	Provincia      string `json:"provincia"`
	Recaptcha      string `json:"recaptcha"`
}

type processItem struct {
	ID           int    `json:"id"`
	FechaIngreso string `json:"fechaIngreso"`
	IDJuicio     string `json:"idJuicio"`
	NombreDelito string `json:"nombreDelito"`
}

// NewProcessesSource consults the judicial processes search API. The
// identity is queried twice, once as plaintiff and once as defendant,
// and both answers merge into one record set tagged by role.
func NewProcessesSource(d *Deps) *Source {
	return &Source{
		Name:        "procesos-judiciales",
		Collection:  "procesos_judiciales",
		Lightweight: d.processesReplay,
		Persist:     persistProcesses,
	}
}

func (d *Deps) processesReplay(ctx context.Context, cedula string) (*models.Extraction, error) {
	var mu sync.Mutex
	var records []models.Record

	g, gctx := errgroup.WithContext(ctx)
	for _, role := range []string{"ACTOR", "DEMANDADO"} {
		g.Go(func() error {
			items, err := d.processesQuery(gctx, cedula, role)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, item := range items {
				records = append(records, models.Record{
					"id":               fmt.Sprintf("%d", item.ID),
					"fecha":            item.FechaIngreso,
					"numeroProceso":    item.IDJuicio,
					"accionInfraccion": item.NombreDelito,
					"rol":              role,
				})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.Extraction{Records: records, Method: models.MethodLightweight}, nil
}

// processesQuery runs one role-scoped search page against the API.
func (d *Deps) processesQuery(ctx context.Context, cedula, role string) ([]processItem, error) {
	q := processQuery{First: 1, PageSize: 10, Recaptcha: "verdad"}
	if role == "ACTOR" {
		q.Actor.CedulaActor = cedula
	} else {
		q.Demandado.CedulaDemandado = cedula
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, NewParseError("encode processes query", err)
	}

	u := d.Portals.ProcessesBase + "?page=1&size=10"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, NewNetworkError("build processes request", err)
	}
	req.Header.Set("Content-Type", "application/vnd.api.v1+json")
	req.Header.Set("Accept", "application/vnd.api.v1+json")
	req.Header.Set("Origin", "https://procesosjudiciales.funcionjudicial.gob.ec")
	req.Header.Set("Referer", "https://procesosjudiciales.funcionjudicial.gob.ec/")
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return nil, NewNetworkError("processes request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewNetworkError(fmt.Sprintf("processes status %d", resp.StatusCode), nil)
	}

	var items []processItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, NewParseError(fmt.Sprintf("decode processes answer for role %s", role), err)
	}
	return items, nil
}

func persistProcesses(ctx context.Context, st *store.Store, cedula string, ex *models.Extraction) (string, error) {
	inserted, err := st.MergeArrayNoDuplicates(ctx, "procesos_judiciales", cedula, "procesos",
		ex.Records, []string{"numeroProceso", "rol"})
	if err != nil {
		return "", err
	}
	if inserted == 0 {
		return "consulta exitosa, sin procesos nuevos", nil
	}
	return fmt.Sprintf("consulta exitosa, %d procesos nuevos", inserted), nil
}
