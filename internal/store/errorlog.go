package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/models"
)

// ErrorFilter narrows an error log query. Zero values match everything.
type ErrorFilter struct {
	Service  string
	Identity string
	Kind     string
	Limit    int
}

// RecordError appends one failure to the error log. The log lives in a
// separate table so failed consultations never touch the primary
// documents; callers treat persistence of the log entry as best effort.
func (s *Store) RecordError(ctx context.Context, service, identity, kind, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO error_logs (service, identity, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		service, identity, kind, detail, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record error log: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"service":  service,
		"identity": identity,
		"kind":     kind,
	}).Debug("Error logged")
	return nil
}

// ListErrors returns error log entries matching the filter, newest
// first.
func (s *Store) ListErrors(ctx context.Context, filter ErrorFilter) ([]models.ErrorLogEntry, error) {
	query := `SELECT id, service, identity, kind, detail, created_at FROM error_logs WHERE 1=1`
	var args []interface{}

	if filter.Service != "" {
		query += ` AND service = ?`
		args = append(args, filter.Service)
	}
	if filter.Identity != "" {
		query += ` AND identity = ?`
		args = append(args, filter.Identity)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list error logs: %w", err)
	}
	defer rows.Close()

	var entries []models.ErrorLogEntry
	for rows.Next() {
		var e models.ErrorLogEntry
		var ts int64
		if err := rows.Scan(&e.ID, &e.Service, &e.Identity, &e.Kind, &e.Detail, &ts); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(ts, 0).UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ErrorStats aggregates log counts by service and by kind.
func (s *Store) ErrorStats(ctx context.Context) (map[string]interface{}, error) {
	byService, err := s.countBy(ctx, "service")
	if err != nil {
		return nil, err
	}
	byKind, err := s.countBy(ctx, "kind")
	if err != nil {
		return nil, err
	}

	var total int
	for _, n := range byService {
		total += n
	}

	return map[string]interface{}{
		"total":      total,
		"by_service": byService,
		"by_kind":    byKind,
	}, nil
}

// PurgeErrorsBefore deletes log entries older than the cutoff and
// reports how many were removed.
func (s *Store) PurgeErrorsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM error_logs WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge error logs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) countBy(ctx context.Context, column string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, COUNT(*) FROM error_logs GROUP BY %s`, column, column))
	if err != nil {
		return nil, fmt.Errorf("error log stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		out[name] = count
	}
	return out, rows.Err()
}
