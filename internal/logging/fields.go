package logging

const (
	// FieldComponent names the task or subsystem emitting the record.
	FieldComponent = "component"
	// FieldEventType is a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact states the consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags records that must stand out, e.g. "critical".
	FieldAlert = "alert"
	// FieldSensor is the sensor profile name (camera, sonar).
	FieldSensor = "sensor"
	// FieldSessionID is the recording session identifier.
	FieldSessionID = "session_id"
	// FieldFrameIndex is the zero-based persisted frame index.
	FieldFrameIndex = "frame_index"
	// FieldStopReason records which trigger ended the run.
	FieldStopReason = "stop_reason"
	// FieldAttempt is the 1-based attempt number of a retried operation.
	FieldAttempt = "attempt"
)
