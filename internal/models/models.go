package models

import (
	"encoding/json"
	"time"
)

// DeviceMode selects how the engine decides a device's state.
type DeviceMode string

const (
	ModeSchedule  DeviceMode = "schedule"
	ModeThreshold DeviceMode = "threshold"
	ModeAuto      DeviceMode = "auto"
	ModeManual    DeviceMode = "manual"
)

// Valid reports whether m is one of the four known modes.
func (m DeviceMode) Valid() bool {
	switch m {
	case ModeSchedule, ModeThreshold, ModeAuto, ModeManual:
		return true
	}
	return false
}

// ScheduleRule is one entry of a device schedule. Exactly one of the three
// rule shapes is populated:
//   - time window: On + Off set ("06:00".."22:00", half-open, wraps midnight)
//   - duty cycle:  DurationMin + IntervalMin set (on for d out of every i minutes)
//   - pulse:       Time + DurationMin set (daily pulse starting at Time)
type ScheduleRule struct {
	On          string `json:"on,omitempty"`
	Off         string `json:"off,omitempty"`
	Time        string `json:"time,omitempty"`
	DurationMin int    `json:"duration,omitempty"`
	IntervalMin int    `json:"interval,omitempty"`
}

// RuleKind classifies a schedule rule by which fields are set.
type RuleKind int

const (
	RuleUnknown RuleKind = iota
	RuleTimeWindow
	RuleDutyCycle
	RulePulseAt
)

// Kind derives the rule shape. A window beats a duty cycle beats a pulse,
// matching how the settings API writes them.
func (r ScheduleRule) Kind() RuleKind {
	switch {
	case r.On != "" && r.Off != "":
		return RuleTimeWindow
	case r.DurationMin > 0 && r.IntervalMin > 0:
		return RuleDutyCycle
	case r.Time != "" && r.DurationMin > 0:
		return RulePulseAt
	}
	return RuleUnknown
}

// Thresholds holds the optional environmental trigger points of a device.
// A nil pointer means the threshold is not configured.
type Thresholds struct {
	Temperature *float64 `json:"temp_threshold,omitempty"`
	Humidity    *float64 `json:"humidity_threshold,omitempty"`
}

// DeviceConfig is the persisted per-device configuration.
type DeviceConfig struct {
	Name       string         `json:"device_name"`
	Mode       DeviceMode     `json:"mode"`
	Enabled    bool           `json:"enabled"`
	Schedule   []ScheduleRule `json:"schedule"`
	Thresholds Thresholds     `json:"thresholds"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SensorReading is one BME680 sample. Immutable once produced; the control
// loop's sole unit of decision input per tick.
type SensorReading struct {
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	GasResistance float64   `json:"gas_resistance"`
	CapturedAt    time.Time `json:"captured_at"`
}

// SensorLog is a persisted reading, optionally attributed to a project.
type SensorLog struct {
	ID        int64  `json:"id"`
	ProjectID *int64 `json:"project_id"`
	SensorReading
}

// SensorStats are aggregates over a time range, used by the stats endpoint
// and the daily report.
type SensorStats struct {
	Samples int     `json:"samples"`
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
	TempAvg float64 `json:"temp_avg"`
	HumMin  float64 `json:"humidity_min"`
	HumMax  float64 `json:"humidity_max"`
	HumAvg  float64 `json:"humidity_avg"`
}

// ProjectStatus is the lifecycle state of a grow project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// Project is one grow cycle. At most one project is active at a time;
// the store enforces that on activation.
type Project struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	Notes             string        `json:"notes"`
	Status            ProjectStatus `json:"status"`
	StartDate         time.Time     `json:"start_date"`
	EndDate           *time.Time    `json:"end_date"`
	TimelapseEnabled  bool          `json:"timelapse_enabled"`
	TimelapseInterval int           `json:"timelapse_interval"` // seconds
	TimelapseLastCap  *time.Time    `json:"timelapse_last_capture"`
	CreatedAt         time.Time     `json:"created_at"`
}

// MinTimelapseInterval is the floor for per-project capture intervals, in seconds.
const MinTimelapseInterval = 30

// AlertSettings is the singleton alerting configuration row.
type AlertSettings struct {
	Enabled              bool     `json:"enabled"`
	TempMin              *float64 `json:"temp_min"`
	TempMax              *float64 `json:"temp_max"`
	HumidityMin          *float64 `json:"humidity_min"`
	HumidityMax          *float64 `json:"humidity_max"`
	NotificationInterval int      `json:"notification_interval"` // seconds
}

// AlertCondition is one fired alert: a stable key for throttling plus a
// human-readable message for the notification sink.
type AlertCondition struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// TimelapseImage is one captured frame record.
type TimelapseImage struct {
	ID        int64     `json:"id"`
	ProjectID *int64    `json:"project_id"`
	Timestamp time.Time `json:"timestamp"`
	Filepath  string    `json:"filepath"`
}

// DiaryEntry is a free-form grower note attached to a project.
type DiaryEntry struct {
	ID        int64           `json:"id"`
	ProjectID int64           `json:"project_id"`
	Timestamp time.Time       `json:"timestamp"`
	Title     string          `json:"title"`
	Text      string          `json:"text"`
	Photos    json.RawMessage `json:"photos"`
}

// HardwareStatus reflects the last known health of each hardware collaborator.
type HardwareStatus struct {
	Relay  bool `json:"relay"`
	Sensor bool `json:"sensor"`
	Camera bool `json:"camera"`
}
