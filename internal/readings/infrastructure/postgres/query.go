package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	readings "maintenance-cloud/internal/readings/domain"
)

// ReadingQuery serves the range/filter and aggregate queries the reporting
// boundary consumes.
type ReadingQuery struct {
	db    *sql.DB
	table string
}

// NewReadingQuery constructs a query adapter with the default table name.
func NewReadingQuery(db *sql.DB, opts ...QueryOption) *ReadingQuery {
	q := &ReadingQuery{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// QueryOption configures the query adapter.
type QueryOption func(*ReadingQuery)

// WithQueryTable overrides the default table name.
func WithQueryTable(table string) QueryOption {
	return func(q *ReadingQuery) {
		if table != "" {
			q.table = table
		}
	}
}

// ListByMachine returns reading summaries for one machine within a time
// window, newest first.
func (q *ReadingQuery) ListByMachine(ctx context.Context, machineID string, from, to time.Time, limit int) ([]readings.ReadingSummary, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("reading query: nil db")
	}
	if machineID == "" {
		return nil, errors.New("reading query: empty machine id")
	}
	if limit <= 0 {
		limit = 1000
	}

	query := fmt.Sprintf(`
SELECT
	event_time,
	machine_id,
	machine_type,
	production_line_id,
	operational_mode,
	component_health_score,
	rul,
	ttf,
	ml_failure_probability,
	ml_predicted_failure,
	ml_model_version,
	ml_confidence_level,
	ml_prediction_latency_ms,
	ml_predicted_at
FROM %s
WHERE machine_id = $1 AND event_time >= $2 AND event_time < $3
ORDER BY event_time DESC
LIMIT $4`, q.table)

	rows, err := q.db.QueryContext(ctx, query, machineID, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []readings.ReadingSummary
	for rows.Next() {
		var (
			summary       readings.ReadingSummary
			mlProbability sql.NullFloat64
			mlPredicted   sql.NullBool
			mlVersion     sql.NullString
			mlConfidence  sql.NullString
			mlLatency     sql.NullInt64
			mlPredictedAt sql.NullTime
		)
		if err := rows.Scan(
			&summary.EventTime,
			&summary.MachineID,
			&summary.MachineType,
			&summary.ProductionLineID,
			&summary.OperationalMode,
			&summary.ComponentHealthScore,
			&summary.RUL,
			&summary.TTF,
			&mlProbability,
			&mlPredicted,
			&mlVersion,
			&mlConfidence,
			&mlLatency,
			&mlPredictedAt,
		); err != nil {
			return nil, err
		}
		if mlVersion.Valid {
			summary.Inference = &readings.Inference{
				FailureProbability:  mlProbability.Float64,
				PredictedFailure:    mlPredicted.Bool,
				ModelVersion:        mlVersion.String,
				ConfidenceLevel:     readings.ConfidenceLevel(mlConfidence.String),
				PredictionLatencyMs: int(mlLatency.Int64),
				PredictedAt:         mlPredictedAt.Time,
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// MachineOverview aggregates prediction statistics per machine.
func (q *ReadingQuery) MachineOverview(ctx context.Context) ([]readings.MachineHealth, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("reading query: nil db")
	}

	query := fmt.Sprintf(`
SELECT
	machine_id,
	COUNT(*) AS readings,
	COALESCE(AVG(ml_failure_probability), 0) AS avg_failure_probability,
	COUNT(*) FILTER (WHERE ml_predicted_failure) AS predicted_failures,
	MAX(event_time) AS last_seen
FROM %s
GROUP BY machine_id
ORDER BY machine_id`, q.table)

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overview []readings.MachineHealth
	for rows.Next() {
		var health readings.MachineHealth
		if err := rows.Scan(
			&health.MachineID,
			&health.Readings,
			&health.AvgFailureProbability,
			&health.PredictedFailures,
			&health.LastSeen,
		); err != nil {
			return nil, err
		}
		overview = append(overview, health)
	}
	return overview, rows.Err()
}
