package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/logger"
	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/store"
)

// Strategy runs one extraction attempt against a portal.
type Strategy func(ctx context.Context, identity string) (*models.Extraction, error)

// PersistFunc merges a successful extraction into the document store and
// returns a human readable summary of what changed.
type PersistFunc func(ctx context.Context, st *store.Store, identity string, ex *models.Extraction) (string, error)

// Source describes one consultable portal. Lightweight replays the
// portal's own HTTP calls; Heavyweight drives a real browser. Either may
// be nil when the portal only supports one tier.
type Source struct {
	Name        string
	Collection  string
	Lightweight Strategy
	Heavyweight Strategy
	Persist     PersistFunc
}

// Executor runs the fallback chain for a source and classifies the
// outcome. Strategies are always sequential: the heavyweight tier starts
// only after the lightweight tier has finished empty or failed.
type Executor struct {
	store  *store.Store
	logger *logrus.Logger
}

// NewExecutor builds an executor over the given store.
func NewExecutor(st *store.Store, logger *logrus.Logger) *Executor {
	return &Executor{store: st, logger: logger}
}

// Execute runs a consultation end to end: lightweight tier, heavyweight
// fallback, persistence, classification. It always returns a Result; the
// error outcome is carried inside it rather than as a Go error so every
// attempt is reportable the same way.
func (e *Executor) Execute(ctx context.Context, src *Source, identity string) *models.Result {
	log := logger.ForConsulta(e.logger, src.Name, identity)

	result := &models.Result{
		Source:    src.Name,
		Identity:  identity,
		QueriedAt: time.Now().UTC(),
	}

	var lightErr error
	if src.Lightweight != nil {
		ex, err := src.Lightweight(ctx, identity)
		switch {
		case err == nil && !ex.Empty():
			log.WithField("records", len(ex.Records)).Info("Lightweight strategy succeeded")
			return e.finish(ctx, src, identity, ex, models.MethodLightweight, result, log)
		case err == nil || errors.Is(err, ErrNoResults):
			result.Method = models.MethodLightweight
			log.Debug("Lightweight strategy returned no data, falling back")
		default:
			// One strategy failure is absorbed as long as the next
			// tier can still answer.
			lightErr = err
			log.WithError(err).Warn("Lightweight strategy failed, falling back")
		}
	}

	if src.Heavyweight != nil {
		ex, err := src.Heavyweight(ctx, identity)
		switch {
		case err == nil && !ex.Empty():
			log.WithField("records", len(ex.Records)).Info("Heavyweight strategy succeeded")
			return e.finish(ctx, src, identity, ex, models.MethodHeavyweight, result, log)
		case err == nil || errors.Is(err, ErrNoResults):
			result.Method = models.MethodHeavyweight
		default:
			return e.classifyFailure(ctx, src, identity, err, result, log)
		}
	} else if lightErr != nil {
		// No second tier to absorb the failure.
		return e.classifyFailure(ctx, src, identity, lightErr, result, log)
	}

	// Every tier answered and none carried data. The empty answer is
	// still logged, under its own kind, so the log tells apart "nothing
	// registered" from "nothing reachable".
	result.Outcome = models.OutcomeNotFound
	result.Message = "sin resultados para la identidad consultada"
	log.Info("Consultation finished without records")
	e.recordError(ctx, src.Name, identity, string(KindNotFound), result.Message, log)
	return result
}

func (e *Executor) finish(ctx context.Context, src *Source, identity string, ex *models.Extraction, method models.Method, result *models.Result, log *logrus.Entry) *models.Result {
	result.Method = method
	result.Records = ex.Records
	result.Fields = ex.Fields

	if src.Persist != nil {
		msg, err := src.Persist(ctx, e.store, identity, ex)
		if err != nil {
			log.WithError(err).Error("Persistence failed")
			result.Outcome = models.OutcomeError
			result.Message = "error al guardar el resultado"
			e.recordError(ctx, src.Name, identity, string(KindInternal), err.Error(), log)
			return result
		}
		result.Message = msg
	}

	result.Outcome = models.OutcomeSuccess
	return result
}

func (e *Executor) classifyFailure(ctx context.Context, src *Source, identity string, err error, result *models.Result, log *logrus.Entry) *models.Result {
	kind := KindOf(err)
	result.Message = err.Error()

	if kind == KindChallengeTimeout {
		result.Outcome = models.OutcomeBlocked
		result.Message = "el portal presenta un desafío no resuelto"
		log.Warn("Consultation blocked by unresolved challenge")
	} else {
		result.Outcome = models.OutcomeError
		log.WithError(err).Error("Consultation failed")
	}

	e.recordError(ctx, src.Name, identity, string(kind), err.Error(), log)
	return result
}

// recordError appends to the error log without ever masking the primary
// outcome. The log lives apart from the consultation documents.
func (e *Executor) recordError(ctx context.Context, service, identity, kind, detail string, log *logrus.Entry) {
	if err := e.store.RecordError(ctx, service, identity, kind, detail); err != nil {
		log.WithError(err).Warn("Failed to write error log entry")
	}
}
