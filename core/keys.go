package core

// Well-known user_state keys shared by the multiplier engine, the dashboard
// projections and the CLI. The value column holds JSON, so numbers decode as
// float64 and timestamps as RFC 3339 strings.
const (
	// KeyEnergyLevel holds the current energy level (1-10).
	KeyEnergyLevel = "energy_level"
	// KeyBaseMultiplier holds the stored base estimation multiplier.
	KeyBaseMultiplier = "base_multiplier"
	// KeyMedicationTime holds the last medication timestamp (RFC 3339).
	KeyMedicationTime = "medication_time"
	// KeyCurrentTask holds the label of the task currently in progress.
	KeyCurrentTask = "current_task"
)
