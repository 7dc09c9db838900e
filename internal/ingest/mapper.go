package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"maintenance-cloud/internal/features"
	readings "maintenance-cloud/internal/readings/domain"
)

// eventTimeLayout is the timestamp format produced by the edge collectors.
const eventTimeLayout = "2006-01-02 15:04:05"

var errEmptyPayload = errors.New("ingest: empty payload")

// ParseMessage decodes one telemetry message into a raw attribute map.
// Numbers are kept as json.Number so no precision is lost before feature
// encoding.
func ParseMessage(payload []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, errEmptyPayload
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("ingest: decode message: %w", err)
	}
	if len(raw) == 0 {
		return nil, errEmptyPayload
	}
	return raw, nil
}

// EventTime extracts the reading timestamp that identifies the message.
func EventTime(raw map[string]any) (time.Time, error) {
	value := features.TextValue(raw["Timestamp"])
	if value == "" {
		return time.Time{}, errors.New("ingest: missing Timestamp")
	}
	ts, err := time.Parse(eventTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("ingest: parse Timestamp %q: %w", value, err)
	}
	return ts.UTC(), nil
}

// BuildReading maps the raw attribute map onto a sensor reading. Missing
// attributes fall back to zero values so a sparse message still produces a
// complete row.
func BuildReading(raw map[string]any, eventTime time.Time) *readings.SensorReading {
	num := func(key string) float64 { return features.NumericValue(raw[key]) }
	text := func(key string) string { return features.TextValue(raw[key]) }

	return &readings.SensorReading{
		EventTime: eventTime,

		MachineID:        text("Machine_ID"),
		MachineType:      text("Machine_Type"),
		ProductionLineID: text("Production_Line_ID"),
		OperationalMode:  text("Operational_Mode"),
		JobCode:          text("Job_Code"),

		VibrationX:    num("Vibration_X"),
		VibrationY:    num("Vibration_Y"),
		VibrationZ:    num("Vibration_Z"),
		RMSVibration:  num("RMS_Vibration"),
		PeakVibration: num("Peak_Vibration"),

		BearingTemperature: num("Bearing_Temperature"),
		MotorTemperature:   num("Motor_Temperature"),
		GearboxTemperature: num("Gearbox_Temperature"),
		OilTemperature:     num("Oil_Temperature"),
		CoolantTemperature: num("Coolant_Temperature"),

		OilViscosity:     num("Oil_Viscosity"),
		OilParticleCount: num("Oil_Particle_Count"),
		CoolantFlowRate:  num("Coolant_Flow_Rate"),

		AcousticEmissionLevel:    num("Acoustic_Emission_Level"),
		UltrasonicSignalStrength: num("Ultrasonic_Signal_Strength"),
		MagneticFieldStrength:    num("Magnetic_Field_Strength"),

		HydraulicPressure: num("Hydraulic_Pressure"),
		PneumaticPressure: num("Pneumatic_Pressure"),
		AirFlowRate:       num("Air_Flow_Rate"),
		InternalHumidity:  num("Internal_Humidity"),

		VoltagePhaseA:         num("Voltage_Phase_A"),
		VoltagePhaseB:         num("Voltage_Phase_B"),
		VoltagePhaseC:         num("Voltage_Phase_C"),
		CurrentPhaseA:         num("Current_Phase_A"),
		CurrentPhaseB:         num("Current_Phase_B"),
		CurrentPhaseC:         num("Current_Phase_C"),
		PowerFactor:           num("Power_Factor"),
		PowerConsumption:      num("Power_Consumption"),
		EnergyEfficiencyIndex: num("Energy_Efficiency_Index"),

		ShaftSpeedRPM:        num("Shaft_Speed_RPM"),
		LoadTorque:           num("Load_Torque"),
		ShaftAlignmentStatus: int(num("Shaft_Alignment_Status")),

		CycleTime:             num("Cycle_Time"),
		ProductionRate:        num("Production_Rate"),
		ScrapRate:             num("Scrap_Rate"),
		DefectiveCount:        num("Defective_Count"),
		UtilizationPercentage: num("Utilization_Percentage"),

		ToolChangeCount:        num("Tool_Change_Count"),
		MachineStartStopCycles: num("Machine_Start_Stop_Cycles"),
		TimeSinceLastOperation: num("Time_Since_Last_Operation"),
		ToolWearLevel:          num("Tool_Wear_Level"),
		WorkloadPercentage:     num("Workload_Percentage"),
		IdleTimeDuration:       num("Idle_Time_Duration"),

		LastMaintenanceDate:    text("Last_Maintenance_Date"),
		MaintenanceFrequency:   text("Maintenance_Frequency"),
		MaintenanceType:        text("Maintenance_Type"),
		MaintenanceDuration:    num("Maintenance_Duration"),
		MaintenancePersonnelID: text("Maintenance_Personnel_ID"),

		FailureOccurrence:      int(num("Failure_Occurrence")),
		FailureTimestamp:       text("Failure_Timestamp"),
		FailureType:            text("Failure_Type"),
		FaultCode:              text("Fault_Code"),
		DiagnosticCode:         text("Diagnostic_Code"),
		NumberOfPastFailures:   num("Number_of_Past_Failures"),
		ComponentHealthScore:   num("Component_Health_Score"),
		DowntimeDuration:       num("Downtime_Duration"),
		ReplacedComponentsList: text("Replaced_Components_List"),

		AmbientTemperature:        num("Ambient_Temperature"),
		AmbientHumidity:           num("Ambient_Humidity"),
		DustConcentration:         num("Dust_Concentration"),
		ExternalVibrationExposure: num("External_Vibration_Exposure"),

		ShiftCode:           text("Shift_Code"),
		OperatorID:          text("Operator_ID"),
		MachineLocationZone: text("Machine_Location_Zone"),
		NearbyMachineLoad:   num("Nearby_Machine_Load"),
		LightingCondition:   num("Lighting_Condition"),
		VentilationLevel:    num("Ventilation_Level"),
		SoundPressureLevel:  num("Sound_Pressure_Level"),

		TimeSinceLastAlert:  num("Time_Since_Last_Alert"),
		AlertType:           text("Alert_Type"),
		AlarmCount24hr:      num("Alarm_Count_24hr"),
		LastResetTimestamp:  text("Last_Reset_Timestamp"),
		EventSequenceNumber: int(num("Event_Sequence_Number")),
		ErrorCodeHistory:    text("Error_Code_History"),

		SensorPingRate:        num("Sensor_Ping_Rate"),
		DataPacketLossPercent: num("Data_Packet_Loss_Percent"),
		CommunicationLatency:  num("Communication_Latency"),
		NetworkBandwidthUsage: num("Network_Bandwidth_Usage"),
		DeviceBatteryLevel:    num("Device_Battery_Level"),
		EdgeProcessingTime:    num("Edge_Processing_Time"),

		RUL:                   num("RUL"),
		TTF:                   num("TTF"),
		FailureProbability:    num("Failure_Probability"),
		MaintenanceTypeLabel:  text("Maintenance_Type_Label"),
		FailureComponentClass: text("Failure_Component_Class"),
	}
}
