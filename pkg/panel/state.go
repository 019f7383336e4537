package panel

import (
	"time"

	"github.com/haivivi/ancpanel/pkg/ancapi"
)

// State is the panel's view of the ANC system.
type State struct {
	ANCEnabled          bool
	NoiseIntensity      float64
	CurrentNoiseClass   string
	EmergencyDetected   bool
	DetectionConfidence float64
	ProlongedDetection  ancapi.ProlongedDetection
	Stats               ancapi.Stats

	// UpdatedAt is when the last status snapshot was merged.
	UpdatedAt time.Time
}

// DefaultState is the state before the first poll.
func DefaultState() State {
	return State{
		NoiseIntensity:    0.8,
		CurrentNoiseClass: "unknown",
		ProlongedDetection: ancapi.ProlongedDetection{
			Enabled:          true,
			ThresholdSeconds: 5,
		},
	}
}

// Merge copies the fields present in s into st. Absent fields keep their
// previous value; prolonged_detection and stats are replaced as a whole
// when present.
func (st *State) Merge(s *ancapi.Status) {
	if s.Has(ancapi.FieldANCEnabled) {
		st.ANCEnabled = s.ANCEnabled
	}
	if s.Has(ancapi.FieldNoiseIntensity) {
		st.NoiseIntensity = s.NoiseIntensity
	}
	if s.Has(ancapi.FieldCurrentNoiseClass) {
		st.CurrentNoiseClass = s.CurrentNoiseClass
	}
	if s.Has(ancapi.FieldEmergencyDetected) {
		st.EmergencyDetected = s.EmergencyDetected
	}
	if s.Has(ancapi.FieldDetectionConfidence) {
		st.DetectionConfidence = s.DetectionConfidence
	}
	if s.Has(ancapi.FieldProlongedDetection) {
		st.ProlongedDetection = s.ProlongedDetection
	}
	if s.Has(ancapi.FieldStats) && s.Stats != nil {
		st.Stats = *s.Stats
	}
}
