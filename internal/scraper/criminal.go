package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/services"
	"github.com/civicdata/consulta-api/internal/store"
)

// acceptTermsScript presses the wizard's terms button. The button has no
// stable id, so it is located by its visible text.
const acceptTermsScript = `(() => {
	const buttons = document.querySelectorAll('button, input[type="button"], input[type="submit"]');
	for (const btn of buttons) {
		const label = (btn.textContent || btn.value || '').trim();
		if (label === 'Aceptar') { btn.click(); return true; }
	}
	return false;
})()`

// NewCriminalSource consults the criminal record certificate wizard. The
// portal sits behind Incapsula and hCaptcha walls, so the consultation
// is browser only and waits for out of band challenge resolution.
func NewCriminalSource(d *Deps) *Source {
	return &Source{
		Name:        "antecedentes-penales",
		Collection:  "antecedentes_penales",
		Heavyweight: d.criminalBrowser,
		Persist:     persistCriminal,
	}
}

func (d *Deps) criminalBrowser(ctx context.Context, cedula string) (*models.Extraction, error) {
	return d.withBrowser(ctx, func(ctx context.Context, b services.BrowserContext) (*models.Extraction, error) {
		if err := b.Navigate(ctx, d.Portals.CriminalBase); err != nil {
			return nil, NewNetworkError("open certificate portal", err)
		}
		if err := d.awaitChallenges(ctx, b); err != nil {
			return nil, err
		}

		// Cookie banner, present only on first visits.
		_ = b.Click(ctx, `.cc-btn.cc-dismiss`)

		if _, err := b.ExecuteScript(ctx, acceptTermsScript); err != nil {
			return nil, NewParseError("accept portal terms", err)
		}
		pause(ctx, 2*time.Second)

		if err := b.WaitForSelector(ctx, `#txtCi`); err != nil {
			return nil, NewParseError("certificate form not present", err)
		}
		if err := b.Type(ctx, `#txtCi`, cedula); err != nil {
			return nil, NewParseError("fill certificate form", err)
		}
		if err := b.Click(ctx, `#btnSig1`); err != nil {
			return nil, NewParseError("advance certificate wizard", err)
		}

		if err := b.WaitForSelector(ctx, `#txtMotivo`); err != nil {
			return nil, NewParseError("reason step not present", err)
		}
		if err := b.Type(ctx, `#txtMotivo`, "Consulta Personal"); err != nil {
			return nil, NewParseError("fill consultation reason", err)
		}
		if err := b.Click(ctx, `#btnSig2`); err != nil {
			return nil, NewParseError("submit certificate wizard", err)
		}

		if err := b.WaitForSelector(ctx, `#dvAntecedent1`); err != nil {
			return nil, NewParseError("certificate answer not present", err)
		}

		answer, err := b.GetText(ctx, `#dvAntecedent1`)
		if err != nil {
			return nil, NewParseError("read certificate answer", err)
		}
		name, err := b.GetText(ctx, `#dvName1`)
		if err != nil {
			return nil, NewParseError("read certificate holder", err)
		}

		answer = strings.TrimSpace(answer)
		resultado := "Tiene antecedentes penales"
		if strings.EqualFold(answer, "NO") {
			resultado = "No tiene antecedentes penales"
		}

		fields := models.Record{
			"nombre":            strings.TrimSpace(name),
			"resultado":         resultado,
			"tieneAntecedentes": answer,
		}
		return &models.Extraction{Fields: fields, Method: models.MethodHeavyweight}, nil
	})
}

func persistCriminal(ctx context.Context, st *store.Store, cedula string, ex *models.Extraction) (string, error) {
	if _, err := st.UpsertSnapshot(ctx, "antecedentes_penales", cedula, ex.Fields); err != nil {
		return "", err
	}
	return "consulta exitosa, certificado actualizado", nil
}
