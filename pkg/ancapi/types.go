package ancapi

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Status field names, as sent by GET /api/status.
const (
	FieldANCEnabled          = "anc_enabled"
	FieldNoiseIntensity      = "noise_intensity"
	FieldCurrentNoiseClass   = "current_noise_class"
	FieldEmergencyDetected   = "emergency_detected"
	FieldDetectionConfidence = "detection_confidence"
	FieldProlongedDetection  = "prolonged_detection"
	FieldStats               = "stats"
)

// Status is a point-in-time snapshot of the ANC system.
//
// The backend may omit fields. Has reports which fields were present with a
// non-null value in the decoded response, so callers can merge a partial
// snapshot into older state.
type Status struct {
	ANCEnabled          bool               `json:"anc_enabled"`
	NoiseIntensity      float64            `json:"noise_intensity"`
	CurrentNoiseClass   string             `json:"current_noise_class"`
	EmergencyDetected   bool               `json:"emergency_detected"`
	DetectionConfidence float64            `json:"detection_confidence"`
	ProlongedDetection  ProlongedDetection `json:"prolonged_detection"`
	Stats               *Stats             `json:"stats,omitempty"`

	present map[string]bool
}

// UnmarshalJSON implements json.Unmarshaler and records field presence.
func (s *Status) UnmarshalJSON(b []byte) error {
	type plain Status
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}

	*s = Status(p)
	s.present = make(map[string]bool, len(keys))
	for k, v := range keys {
		if string(v) != "null" {
			s.present[k] = true
		}
	}
	return nil
}

// Has reports whether field was present in the decoded response. A Status
// that was not decoded from JSON reports every field as present.
func (s *Status) Has(field string) bool {
	if s.present == nil {
		return true
	}
	return s.present[field]
}

// ProlongedDetection is the configuration and live state of sustained noise
// detection.
type ProlongedDetection struct {
	Enabled          bool    `json:"enabled"`
	ThresholdSeconds int     `json:"threshold_seconds"`
	CurrentDuration  int     `json:"current_duration"`
	DetectedClass    *string `json:"detected_class"`
}

// Stats are cumulative counters reported with the status. Fields the client
// does not know are kept in Extra and written back by MarshalJSON.
type Stats struct {
	TotalDetections int     `json:"total_detections"`
	EmergencyCount  int     `json:"emergency_count"`
	ANCActiveTime   float64 `json:"anc_active_time"`

	Extra map[string]json.RawMessage `json:"-"`
}

var statsFields = map[string]bool{
	"total_detections": true,
	"emergency_count":  true,
	"anc_active_time":  true,
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Stats) UnmarshalJSON(b []byte) error {
	type plain Stats
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	*s = Stats(p)
	for k, v := range all {
		if statsFields[k] {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[k] = v
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Stats) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["total_detections"] = s.TotalDetections
	out["emergency_count"] = s.EmergencyCount
	out["anc_active_time"] = s.ANCActiveTime
	return json.Marshal(out)
}

// ActiveTime returns ANCActiveTime as a duration.
func (s *Stats) ActiveTime() time.Duration {
	return time.Duration(s.ANCActiveTime * float64(time.Second))
}

// Severity is a notification severity.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Notification is a backend-generated message.
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Type      string    `json:"type"`
}

// Timestamp is a time.Time that accepts RFC 3339 strings, ISO 8601 strings
// without a zone (treated as UTC) and Unix epoch numbers in JSON. Numbers
// of magnitude 1e11 or more are read as milliseconds, smaller ones as
// seconds. It marshals as RFC 3339.
type Timestamp time.Time

const (
	// Epoch numbers at or above this magnitude are milliseconds.
	epochMilliThreshold = 1e11

	// Larger numbers look like micro- or nanosecond epochs and are
	// rejected.
	maxEpochMilli = 1e15
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		for _, layout := range timestampLayouts {
			if tm, err := time.Parse(layout, s); err == nil {
				*t = Timestamp(tm)
				return nil
			}
		}
		return fmt.Errorf("ancapi: unrecognized timestamp %q", s)
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("ancapi: unrecognized timestamp %s", b)
	}
	switch abs := math.Abs(v); {
	case abs >= maxEpochMilli || math.IsNaN(v):
		return fmt.Errorf("ancapi: timestamp %s out of range", b)
	case abs >= epochMilliThreshold:
		ms := math.Floor(v)
		*t = Timestamp(time.UnixMilli(int64(ms)).Add(time.Duration((v - ms) * float64(time.Millisecond))).UTC())
	default:
		sec := math.Floor(v)
		*t = Timestamp(time.Unix(int64(sec), int64((v-sec)*float64(time.Second))).UTC())
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// NotificationList is the response of GET /api/notifications.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
}

// ToggleResponse is the response of POST /api/toggle_anc.
type ToggleResponse struct {
	Success    bool   `json:"success"`
	ANCEnabled bool   `json:"anc_enabled"`
	Message    string `json:"message"`
}

// IntensityResponse is the response of POST /api/set_intensity.
type IntensityResponse struct {
	Success   bool    `json:"success"`
	Intensity float64 `json:"intensity"`
}

// ProlongedDetectionUpdate changes prolonged detection settings. Nil fields
// are omitted from the request.
type ProlongedDetectionUpdate struct {
	Enabled          *bool `json:"enabled,omitempty"`
	ThresholdSeconds *int  `json:"threshold_seconds,omitempty"`
}

// ProlongedDetectionResponse is the response of POST /api/prolonged_detection.
type ProlongedDetectionResponse struct {
	Success            bool               `json:"success"`
	ProlongedDetection ProlongedDetection `json:"prolonged_detection"`
	Message            string             `json:"message"`
}

// SimulateNoiseRequest is the body of POST /api/simulate_noise.
type SimulateNoiseRequest struct {
	NoiseType  string   `json:"noise_type"`
	Emergency  bool     `json:"emergency"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Result is the {success, message} response shared by several endpoints.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
