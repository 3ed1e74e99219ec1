package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Is0cre/growtent/internal/models"
)

// Decision is the evaluator's verdict for one device.
type Decision int

const (
	// NoOpinion means the caller must leave the actuator untouched.
	NoOpinion Decision = iota
	Off
	On
)

func (d Decision) String() string {
	switch d {
	case On:
		return "on"
	case Off:
		return "off"
	}
	return "no-opinion"
}

// dutyCycleState tracks one duty-cycle rule's repeating window. Cycles are
// self-synchronizing: a new cycle starts at the first evaluation after the
// previous interval fully elapsed, not on wall-clock boundaries.
type dutyCycleState struct {
	cycleStartedAt time.Time
	running        bool
}

// Evaluator decides desired device states from configuration and the current
// environment. It owns the duty-cycle state for its devices, keyed by device
// name and rule position, so constructing a fresh Evaluator resets all cycles.
// The loop evaluates while settings handlers reset, so the state is mutex'd.
type Evaluator struct {
	log zerolog.Logger

	mu         sync.Mutex
	dutyCycles map[string]*dutyCycleState
}

// NewEvaluator creates an evaluator with no running duty cycles.
func NewEvaluator(log zerolog.Logger) *Evaluator {
	return &Evaluator{
		log:        log,
		dutyCycles: make(map[string]*dutyCycleState),
	}
}

// Evaluate returns the desired state for one device. Temperature and humidity
// are optional; a nil value skips the corresponding threshold. A disabled
// device is always Off so it cannot stay energized from a previous mode.
func (e *Evaluator) Evaluate(cfg models.DeviceConfig, now time.Time, temp, humidity *float64) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !cfg.Enabled {
		return Off
	}

	switch cfg.Mode {
	case models.ModeManual:
		return NoOpinion
	case models.ModeSchedule:
		return boolDecision(e.scheduleOn(cfg, now))
	case models.ModeThreshold:
		return boolDecision(e.thresholdOn(cfg, temp, humidity))
	case models.ModeAuto:
		// Either trigger wins; a threshold breach forces On even outside
		// the scheduled window.
		return boolDecision(e.scheduleOn(cfg, now) || e.thresholdOn(cfg, temp, humidity))
	}

	e.log.Warn().Str("device", cfg.Name).Str("mode", string(cfg.Mode)).Msg("unknown device mode")
	return NoOpinion
}

func boolDecision(on bool) Decision {
	if on {
		return On
	}
	return Off
}

// scheduleOn ORs all schedule rules. Malformed rules are logged and skipped;
// they never abort evaluation of the remaining rules.
func (e *Evaluator) scheduleOn(cfg models.DeviceConfig, now time.Time) bool {
	on := false
	for i, rule := range cfg.Schedule {
		match, err := e.ruleMatches(cfg.Name, i, rule, now)
		if err != nil {
			e.log.Error().Err(err).Str("device", cfg.Name).Int("rule", i).Msg("skipping malformed schedule rule")
			continue
		}
		// Duty-cycle rules are stateful and must be evaluated every tick,
		// so no early return here.
		on = on || match
	}
	return on
}

func (e *Evaluator) ruleMatches(device string, idx int, rule models.ScheduleRule, now time.Time) (bool, error) {
	switch rule.Kind() {
	case models.RuleTimeWindow:
		return timeWindowMatches(rule, now)
	case models.RuleDutyCycle:
		return e.dutyCycleMatches(device, idx, rule, now), nil
	case models.RulePulseAt:
		return pulseMatches(rule, now)
	}
	return false, fmt.Errorf("rule has no recognizable shape: %+v", rule)
}

// timeWindowMatches checks the half-open daily window [on, off), wrapping
// past midnight when off <= on.
func timeWindowMatches(rule models.ScheduleRule, now time.Time) (bool, error) {
	onMin, err := parseClock(rule.On)
	if err != nil {
		return false, err
	}
	offMin, err := parseClock(rule.Off)
	if err != nil {
		return false, err
	}

	cur := now.Hour()*60 + now.Minute()
	if onMin <= offMin {
		return onMin <= cur && cur < offMin, nil
	}
	return cur >= onMin || cur < offMin, nil
}

// dutyCycleMatches runs the device on for DurationMin out of every
// IntervalMin minutes.
func (e *Evaluator) dutyCycleMatches(device string, idx int, rule models.ScheduleRule, now time.Time) bool {
	key := fmt.Sprintf("%s/%d", device, idx)
	st, ok := e.dutyCycles[key]
	if !ok {
		st = &dutyCycleState{}
		e.dutyCycles[key] = st
	}

	interval := time.Duration(rule.IntervalMin) * time.Minute
	duration := time.Duration(rule.DurationMin) * time.Minute

	if st.cycleStartedAt.IsZero() || now.Sub(st.cycleStartedAt) >= interval {
		st.cycleStartedAt = now
		st.running = true
	}

	if st.running {
		if now.Sub(st.cycleStartedAt) < duration {
			return true
		}
		st.running = false
	}
	return false
}

// pulseMatches checks today's pulse window [trigger, trigger+duration), and
// yesterday's in case a pulse that started before midnight is still active.
func pulseMatches(rule models.ScheduleRule, now time.Time) (bool, error) {
	min, err := parseClock(rule.Time)
	if err != nil {
		return false, err
	}

	trigger := time.Date(now.Year(), now.Month(), now.Day(), min/60, min%60, 0, 0, now.Location())
	duration := time.Duration(rule.DurationMin) * time.Minute

	if !now.Before(trigger) && now.Before(trigger.Add(duration)) {
		return true, nil
	}
	yesterday := trigger.AddDate(0, 0, -1)
	return !now.Before(yesterday) && now.Before(yesterday.Add(duration)), nil
}

// Devices that shed excess turn on at or above their threshold; the heater
// and humidifier compensate a deficit and turn on at or below it.
var shedDevices = map[string]bool{"exhaust_fan": true, "dehumidifier": true}

// thresholdOn ORs the configured temperature and humidity thresholds against
// the device's semantic role. A missing reading skips that threshold without
// blocking the other.
func (e *Evaluator) thresholdOn(cfg models.DeviceConfig, temp, humidity *float64) bool {
	name := cfg.Name

	if th := cfg.Thresholds.Temperature; th != nil && temp != nil {
		// Humidifier has no temperature role; only shed devices and the
		// heater respond to temperature.
		if shedDevices[name] && *temp >= *th {
			return true
		}
		if name == "heater" && *temp <= *th {
			return true
		}
	}

	if th := cfg.Thresholds.Humidity; th != nil && humidity != nil {
		if shedDevices[name] && *humidity >= *th {
			return true
		}
		if name == "humidifier" && *humidity <= *th {
			return true
		}
	}

	return false
}

// ResetDutyCycles drops all duty-cycle state, restarting every cycle at the
// next evaluation. Called when device settings change, possibly from a
// request goroutine while the loop is mid-tick.
func (e *Evaluator) ResetDutyCycles(device string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key := range e.dutyCycles {
		if device == "" || keyDevice(key) == device {
			delete(e.dutyCycles, key)
		}
	}
}

func keyDevice(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[:i]
		}
	}
	return key
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
