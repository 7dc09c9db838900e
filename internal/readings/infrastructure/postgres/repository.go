package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	readings "maintenance-cloud/internal/readings/domain"
)

const defaultReadingsTable = "sensor_readings"

// ReadingRepository is a Postgres implementation of the reading store. The
// table carries a unique constraint on event_time; inserts use
// ON CONFLICT DO NOTHING so that two near-simultaneous deliveries of the
// same event time degrade to a duplicate skip instead of a second row.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository with the default table name.
func NewReadingRepository(db *sql.DB, opts ...RepositoryOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ReadingRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ExistsByEventTime checks whether a reading with the given event time is
// already persisted. This is the dedup check for at-least-once delivery.
func (r *ReadingRepository) ExistsByEventTime(ctx context.Context, eventTime time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("reading repo: nil db")
	}
	if eventTime.IsZero() {
		return false, errors.New("reading repo: zero event time")
	}
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s WHERE event_time = $1
)`, r.table)
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, eventTime.UTC()).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Save inserts a reading. Returns readings.ErrDuplicateReading when a row
// with the same event time already exists.
func (r *ReadingRepository) Save(ctx context.Context, reading *readings.SensorReading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	if reading.EventTime.IsZero() {
		return errors.New("reading repo: zero event time")
	}

	columns, args := insertValues(reading)
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES (%s)
ON CONFLICT (event_time) DO NOTHING`, r.table, strings.Join(columns, ", "), placeholders(len(columns)))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return readings.ErrDuplicateReading
	}
	return nil
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

// insertValues keeps column names and arguments in one aligned list; with
// this many columns a hand-maintained pair of literals drifts apart too
// easily.
func insertValues(reading *readings.SensorReading) ([]string, []any) {
	mlProbability := sql.NullFloat64{}
	mlPredicted := sql.NullBool{}
	mlVersion := sql.NullString{}
	mlConfidence := sql.NullString{}
	mlLatency := sql.NullInt64{}
	mlPredictedAt := sql.NullTime{}
	if inf := reading.Inference; inf != nil {
		mlProbability = sql.NullFloat64{Float64: inf.FailureProbability, Valid: true}
		mlPredicted = sql.NullBool{Bool: inf.PredictedFailure, Valid: true}
		mlVersion = sql.NullString{String: inf.ModelVersion, Valid: true}
		mlConfidence = sql.NullString{String: string(inf.ConfidenceLevel), Valid: true}
		mlLatency = sql.NullInt64{Int64: int64(inf.PredictionLatencyMs), Valid: true}
		mlPredictedAt = sql.NullTime{Time: inf.PredictedAt.UTC(), Valid: true}
	}

	pairs := []struct {
		column string
		value  any
	}{
		{"event_time", reading.EventTime.UTC()},
		{"machine_id", reading.MachineID},
		{"machine_type", reading.MachineType},
		{"production_line_id", reading.ProductionLineID},
		{"operational_mode", reading.OperationalMode},
		{"job_code", reading.JobCode},
		{"vibration_x", reading.VibrationX},
		{"vibration_y", reading.VibrationY},
		{"vibration_z", reading.VibrationZ},
		{"rms_vibration", reading.RMSVibration},
		{"peak_vibration", reading.PeakVibration},
		{"bearing_temperature", reading.BearingTemperature},
		{"motor_temperature", reading.MotorTemperature},
		{"gearbox_temperature", reading.GearboxTemperature},
		{"oil_temperature", reading.OilTemperature},
		{"coolant_temperature", reading.CoolantTemperature},
		{"oil_viscosity", reading.OilViscosity},
		{"oil_particle_count", reading.OilParticleCount},
		{"coolant_flow_rate", reading.CoolantFlowRate},
		{"acoustic_emission_level", reading.AcousticEmissionLevel},
		{"ultrasonic_signal_strength", reading.UltrasonicSignalStrength},
		{"magnetic_field_strength", reading.MagneticFieldStrength},
		{"hydraulic_pressure", reading.HydraulicPressure},
		{"pneumatic_pressure", reading.PneumaticPressure},
		{"air_flow_rate", reading.AirFlowRate},
		{"internal_humidity", reading.InternalHumidity},
		{"voltage_phase_a", reading.VoltagePhaseA},
		{"voltage_phase_b", reading.VoltagePhaseB},
		{"voltage_phase_c", reading.VoltagePhaseC},
		{"current_phase_a", reading.CurrentPhaseA},
		{"current_phase_b", reading.CurrentPhaseB},
		{"current_phase_c", reading.CurrentPhaseC},
		{"power_factor", reading.PowerFactor},
		{"power_consumption", reading.PowerConsumption},
		{"energy_efficiency_index", reading.EnergyEfficiencyIndex},
		{"shaft_speed_rpm", reading.ShaftSpeedRPM},
		{"load_torque", reading.LoadTorque},
		{"shaft_alignment_status", reading.ShaftAlignmentStatus},
		{"cycle_time", reading.CycleTime},
		{"production_rate", reading.ProductionRate},
		{"scrap_rate", reading.ScrapRate},
		{"defective_count", reading.DefectiveCount},
		{"utilization_percentage", reading.UtilizationPercentage},
		{"tool_change_count", reading.ToolChangeCount},
		{"machine_start_stop_cycles", reading.MachineStartStopCycles},
		{"time_since_last_operation", reading.TimeSinceLastOperation},
		{"tool_wear_level", reading.ToolWearLevel},
		{"workload_percentage", reading.WorkloadPercentage},
		{"idle_time_duration", reading.IdleTimeDuration},
		{"last_maintenance_date", reading.LastMaintenanceDate},
		{"maintenance_frequency", reading.MaintenanceFrequency},
		{"maintenance_type", reading.MaintenanceType},
		{"maintenance_duration", reading.MaintenanceDuration},
		{"maintenance_personnel_id", reading.MaintenancePersonnelID},
		{"failure_occurrence", reading.FailureOccurrence},
		{"failure_timestamp", reading.FailureTimestamp},
		{"failure_type", reading.FailureType},
		{"fault_code", reading.FaultCode},
		{"diagnostic_code", reading.DiagnosticCode},
		{"number_of_past_failures", reading.NumberOfPastFailures},
		{"component_health_score", reading.ComponentHealthScore},
		{"downtime_duration", reading.DowntimeDuration},
		{"replaced_components_list", reading.ReplacedComponentsList},
		{"ambient_temperature", reading.AmbientTemperature},
		{"ambient_humidity", reading.AmbientHumidity},
		{"dust_concentration", reading.DustConcentration},
		{"external_vibration_exposure", reading.ExternalVibrationExposure},
		{"shift_code", reading.ShiftCode},
		{"operator_id", reading.OperatorID},
		{"machine_location_zone", reading.MachineLocationZone},
		{"nearby_machine_load", reading.NearbyMachineLoad},
		{"lighting_condition", reading.LightingCondition},
		{"ventilation_level", reading.VentilationLevel},
		{"sound_pressure_level", reading.SoundPressureLevel},
		{"time_since_last_alert", reading.TimeSinceLastAlert},
		{"alert_type", reading.AlertType},
		{"alarm_count_24hr", reading.AlarmCount24hr},
		{"last_reset_timestamp", reading.LastResetTimestamp},
		{"event_sequence_number", reading.EventSequenceNumber},
		{"error_code_history", reading.ErrorCodeHistory},
		{"sensor_ping_rate", reading.SensorPingRate},
		{"data_packet_loss_percent", reading.DataPacketLossPercent},
		{"communication_latency", reading.CommunicationLatency},
		{"network_bandwidth_usage", reading.NetworkBandwidthUsage},
		{"device_battery_level", reading.DeviceBatteryLevel},
		{"edge_processing_time", reading.EdgeProcessingTime},
		{"rul", reading.RUL},
		{"ttf", reading.TTF},
		{"failure_probability", reading.FailureProbability},
		{"maintenance_type_label", reading.MaintenanceTypeLabel},
		{"failure_component_class", reading.FailureComponentClass},
		{"ml_failure_probability", mlProbability},
		{"ml_predicted_failure", mlPredicted},
		{"ml_model_version", mlVersion},
		{"ml_confidence_level", mlConfidence},
		{"ml_prediction_latency_ms", mlLatency},
		{"ml_predicted_at", mlPredictedAt},
	}

	columns := make([]string, len(pairs))
	args := make([]any, len(pairs))
	for i, pair := range pairs {
		columns[i] = pair.column
		args[i] = pair.value
	}
	return columns, args
}
