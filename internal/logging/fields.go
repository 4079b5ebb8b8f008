package logging

// Standardized structured logging keys. Keeping these in one place lets log
// consumers filter on stable field names across subsystems.
const (
	// FieldComponent identifies the emitting subsystem.
	FieldComponent = "component"
	// FieldEventType is a machine-filterable event discriminator.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator-facing next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldSessionID tags log lines with the sync session identifier.
	FieldSessionID = "session_id"
	// FieldDeviceID tags log lines with the device serial.
	FieldDeviceID = "device_id"
	// FieldPath is the library-relative path of the file being handled.
	FieldPath = "path"
	// FieldMethod names the transfer method in use.
	FieldMethod = "method"
)
