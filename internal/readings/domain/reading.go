package readings

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateReading reports that a reading with the same event time is
// already persisted. Not a failure: duplicates are expected under
// at-least-once delivery and are skipped.
var ErrDuplicateReading = errors.New("readings: duplicate event time")

// ConfidenceLevel is the coarse certainty bucket of a prediction, derived
// from the distance of the failure probability from 0.5.
type ConfidenceLevel string

const (
	ConfidenceLow      ConfidenceLevel = "LOW"
	ConfidenceMedium   ConfidenceLevel = "MEDIUM"
	ConfidenceHigh     ConfidenceLevel = "HIGH"
	ConfidenceVeryHigh ConfidenceLevel = "VERY_HIGH"
)

// Inference is the model verdict attached to a reading. It is either fully
// populated or absent (nil on the reading), never partially computed. A
// failed prediction is recorded as a fully populated placeholder with
// ModelVersion "error".
type Inference struct {
	FailureProbability  float64
	PredictedFailure    bool
	ModelVersion        string
	ConfidenceLevel     ConfidenceLevel
	PredictionLatencyMs int
	PredictedAt         time.Time
}

// SensorReading is one ingested machine observation. EventTime uniquely
// identifies a reading: a previously seen event time is never persisted
// twice. Readings are immutable once saved.
type SensorReading struct {
	EventTime time.Time

	// Identity
	MachineID        string
	MachineType      string
	ProductionLineID string
	OperationalMode  string
	JobCode          string

	// Vibration
	VibrationX    float64
	VibrationY    float64
	VibrationZ    float64
	RMSVibration  float64
	PeakVibration float64

	// Temperature
	BearingTemperature float64
	MotorTemperature   float64
	GearboxTemperature float64
	OilTemperature     float64
	CoolantTemperature float64

	// Oil and fluid
	OilViscosity     float64
	OilParticleCount float64
	CoolantFlowRate  float64

	// Acoustic and signal
	AcousticEmissionLevel    float64
	UltrasonicSignalStrength float64
	MagneticFieldStrength    float64

	// Pressure and flow
	HydraulicPressure float64
	PneumaticPressure float64
	AirFlowRate       float64
	InternalHumidity  float64

	// Electrical
	VoltagePhaseA         float64
	VoltagePhaseB         float64
	VoltagePhaseC         float64
	CurrentPhaseA         float64
	CurrentPhaseB         float64
	CurrentPhaseC         float64
	PowerFactor           float64
	PowerConsumption      float64
	EnergyEfficiencyIndex float64

	// Mechanical
	ShaftSpeedRPM        float64
	LoadTorque           float64
	ShaftAlignmentStatus int

	// Production
	CycleTime             float64
	ProductionRate        float64
	ScrapRate             float64
	DefectiveCount        float64
	UtilizationPercentage float64

	// Machine operation
	ToolChangeCount        float64
	MachineStartStopCycles float64
	TimeSinceLastOperation float64
	ToolWearLevel          float64
	WorkloadPercentage     float64
	IdleTimeDuration       float64

	// Maintenance
	LastMaintenanceDate    string
	MaintenanceFrequency   string
	MaintenanceType        string
	MaintenanceDuration    float64
	MaintenancePersonnelID string

	// Failure history
	FailureOccurrence      int
	FailureTimestamp       string
	FailureType            string
	FaultCode              string
	DiagnosticCode         string
	NumberOfPastFailures   float64
	ComponentHealthScore   float64
	DowntimeDuration       float64
	ReplacedComponentsList string

	// Environmental
	AmbientTemperature        float64
	AmbientHumidity           float64
	DustConcentration         float64
	ExternalVibrationExposure float64

	// Operational context
	ShiftCode           string
	OperatorID          string
	MachineLocationZone string
	NearbyMachineLoad   float64
	LightingCondition   float64
	VentilationLevel    float64
	SoundPressureLevel  float64

	// Alerts and events
	TimeSinceLastAlert  float64
	AlertType           string
	AlarmCount24hr      float64
	LastResetTimestamp  string
	EventSequenceNumber int
	ErrorCodeHistory    string

	// Connectivity
	SensorPingRate        float64
	DataPacketLossPercent float64
	CommunicationLatency  float64
	NetworkBandwidthUsage float64
	DeviceBatteryLevel    float64
	EdgeProcessingTime    float64

	// Predictive-maintenance attributes carried on the reading (dataset
	// labels, distinct from the live inference result below).
	RUL                   float64
	TTF                   float64
	FailureProbability    float64
	MaintenanceTypeLabel  string
	FailureComponentClass string

	Inference *Inference
}

// ReadingRepository persists sensor readings keyed by event time.
type ReadingRepository interface {
	ExistsByEventTime(ctx context.Context, eventTime time.Time) (bool, error)
	Save(ctx context.Context, reading *SensorReading) error
}

// ReadingSummary is the projection served to the reporting boundary.
type ReadingSummary struct {
	EventTime            time.Time
	MachineID            string
	MachineType          string
	ProductionLineID     string
	OperationalMode      string
	ComponentHealthScore float64
	RUL                  float64
	TTF                  float64
	Inference            *Inference
}

// MachineHealth aggregates per-machine prediction statistics.
type MachineHealth struct {
	MachineID             string
	Readings              int64
	AvgFailureProbability float64
	PredictedFailures     int64
	LastSeen              time.Time
}

// ReadingQuery exposes the range/filter and aggregate queries consumed by
// the reporting boundary. The analytics API surface itself lives outside
// this core.
type ReadingQuery interface {
	ListByMachine(ctx context.Context, machineID string, from, to time.Time, limit int) ([]ReadingSummary, error)
	MachineOverview(ctx context.Context) ([]MachineHealth, error)
}
