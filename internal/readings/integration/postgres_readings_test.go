package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	readings "maintenance-cloud/internal/readings/domain"
	storagepg "maintenance-cloud/internal/readings/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestReadings_DedupOnEventTime(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "sensor_readings") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	eventTime := time.Date(2026, time.March, 14, 8, 30, 0, 0, time.UTC)
	_, _ = db.ExecContext(ctx, "DELETE FROM sensor_readings WHERE event_time = $1", eventTime)

	repo := storagepg.NewReadingRepository(db)

	exists, err := repo.ExistsByEventTime(ctx, eventTime)
	if err != nil {
		t.Fatalf("exists check: %v", err)
	}
	if exists {
		t.Fatal("event time reported present before save")
	}

	reading := &readings.SensorReading{
		EventTime:            eventTime,
		MachineID:            "M002",
		MachineType:          "CNC",
		ProductionLineID:     "L1",
		OperationalMode:      "Auto",
		JobCode:              "J202",
		VibrationX:           12.5,
		BearingTemperature:   78.2,
		ComponentHealthScore: 0.91,
		Inference: &readings.Inference{
			FailureProbability:  0.83,
			PredictedFailure:    true,
			ModelVersion:        "v1.0-production",
			ConfidenceLevel:     readings.ConfidenceVeryHigh,
			PredictionLatencyMs: 4,
			PredictedAt:         eventTime.Add(2 * time.Second),
		},
	}
	if err := repo.Save(ctx, reading); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := repo.Save(ctx, reading); !errors.Is(err, readings.ErrDuplicateReading) {
		t.Fatalf("duplicate save error = %v, want ErrDuplicateReading", err)
	}

	exists, err = repo.ExistsByEventTime(ctx, eventTime)
	if err != nil {
		t.Fatalf("exists check: %v", err)
	}
	if !exists {
		t.Fatal("event time not found after save")
	}

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sensor_readings WHERE event_time = $1", eventTime).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("persisted %d rows, want 1", count)
	}
}

func TestReadings_QueryProjections(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "sensor_readings") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	base := time.Date(2026, time.March, 20, 6, 0, 0, 0, time.UTC)
	_, _ = db.ExecContext(ctx,
		"DELETE FROM sensor_readings WHERE event_time >= $1 AND event_time < $2", base, base.Add(time.Hour))

	repo := storagepg.NewReadingRepository(db)
	for i := 0; i < 3; i++ {
		reading := &readings.SensorReading{
			EventTime: base.Add(time.Duration(i) * time.Minute),
			MachineID: "M003",
			Inference: &readings.Inference{
				FailureProbability: 0.2 * float64(i+1),
				PredictedFailure:   i == 2,
				ModelVersion:       "v1.0-production",
				ConfidenceLevel:    readings.ConfidenceLow,
				PredictedAt:        base,
			},
		}
		if err := repo.Save(ctx, reading); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	query := storagepg.NewReadingQuery(db)
	rows, err := query.ListByMachine(ctx, "M003", base, base.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("list by machine: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("listed %d rows, want 3", len(rows))
	}
	// Newest first.
	if !rows[0].EventTime.After(rows[2].EventTime) {
		t.Fatalf("rows not ordered newest first: %v then %v", rows[0].EventTime, rows[2].EventTime)
	}
	if rows[0].Inference == nil || rows[0].Inference.ModelVersion != "v1.0-production" {
		t.Fatalf("inference not projected: %+v", rows[0].Inference)
	}

	overview, err := query.MachineOverview(ctx)
	if err != nil {
		t.Fatalf("machine overview: %v", err)
	}
	found := false
	for _, machine := range overview {
		if machine.MachineID != "M003" {
			continue
		}
		found = true
		if machine.Readings < 3 {
			t.Fatalf("overview readings = %d, want >= 3", machine.Readings)
		}
		if machine.PredictedFailures < 1 {
			t.Fatalf("overview predicted failures = %d, want >= 1", machine.PredictedFailures)
		}
	}
	if !found {
		t.Fatal("machine M003 missing from overview")
	}
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", name).Scan(&exists)
	return err == nil && exists
}
