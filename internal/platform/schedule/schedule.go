// Package schedule describes when the pipeline runs: collection slots and
// digest slots, each with optional weekday/weekend variants, in one timezone.
package schedule

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	// Embed tzdata for environments without zoneinfo.
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Time conversion constants.
const (
	minutesPerHour = 60
	maxHour        = 23
	daysPerWeek    = 7
)

const errFmtInvalidTimezone = "invalid timezone: %w"

// Static errors for schedule validation.
var (
	ErrMidnightCrossing = errors.New("hourly range crosses midnight")
	ErrTimeFormat       = errors.New("time must be HH:MM")
	ErrInvalidHour      = errors.New("invalid hour")
	ErrInvalidMinute    = errors.New("invalid minute")
	ErrHourOutOfRange   = errors.New("hour out of range")
	ErrEmptySchedule    = errors.New("schedule has no slots")
)

var timezoneAliases = map[string]string{
	"Asia/Nicosia": "Europe/Nicosia",
	"Europe/Kiev":  "Europe/Kyiv",
}

// Pipeline holds the slots of the two scheduled jobs. Delivery follows each
// digest run, so it has no slots of its own.
type Pipeline struct {
	Timezone string `yaml:"timezone"`
	Collect  Plan   `yaml:"collect"`
	Digest   Plan   `yaml:"digest"`
}

// Plan defines run times for weekdays and weekends.
type Plan struct {
	Weekdays DaySchedule `yaml:"weekdays"`
	Weekends DaySchedule `yaml:"weekends"`
}

// DaySchedule defines explicit times and an optional hourly range.
type DaySchedule struct {
	Times  []string     `yaml:"times,omitempty"`
	Hourly *HourlyRange `yaml:"hourly,omitempty"`
}

// HourlyRange defines an inclusive on-the-hour range.
type HourlyRange struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Load reads a pipeline schedule from a YAML file.
func Load(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("reading schedule file: %w", err)
	}

	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Pipeline{}, fmt.Errorf("parsing schedule file: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Pipeline{}, err
	}

	return p, nil
}

// FromTimes builds a pipeline that runs at the same times every day.
func FromTimes(timezone string, collect, digest []string) (Pipeline, error) {
	p := Pipeline{
		Timezone: timezone,
		Collect:  Daily(collect...),
		Digest:   Daily(digest...),
	}

	if err := p.Validate(); err != nil {
		return Pipeline{}, err
	}

	return p, nil
}

// Daily returns a plan with identical weekday and weekend times.
func Daily(times ...string) Plan {
	d := DaySchedule{Times: times}

	return Plan{Weekdays: d, Weekends: d}
}

// IsEmpty reports whether the plan has no slots.
func (p Plan) IsEmpty() bool {
	return p.Weekdays.IsEmpty() && p.Weekends.IsEmpty()
}

// IsEmpty reports whether the day schedule has any entries.
func (d DaySchedule) IsEmpty() bool {
	return len(d.Times) == 0 && d.Hourly == nil
}

// Location resolves the timezone or defaults to UTC.
func (p Pipeline) Location() (*time.Location, error) {
	if strings.TrimSpace(p.Timezone) == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(NormalizeTimezone(p.Timezone))
	if err != nil {
		return nil, fmt.Errorf(errFmtInvalidTimezone, err)
	}

	return loc, nil
}

// Validate checks every field and requires both jobs to have slots.
func (p Pipeline) Validate() error {
	if _, err := p.Location(); err != nil {
		return err
	}

	for label, plan := range map[string]Plan{"collect": p.Collect, "digest": p.Digest} {
		if plan.IsEmpty() {
			return fmt.Errorf("%s: %w", label, ErrEmptySchedule)
		}

		if err := plan.Weekdays.validate(label + " weekdays"); err != nil {
			return err
		}

		if err := plan.Weekends.validate(label + " weekends"); err != nil {
			return err
		}
	}

	return nil
}

// NormalizeTimezone maps known aliases to canonical IANA names.
func NormalizeTimezone(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	if canonical, ok := timezoneAliases[value]; ok {
		return canonical
	}

	return value
}

// TimesBetween returns the plan's slots within [start, end] in loc.
func (p Plan) TimesBetween(loc *time.Location, start, end time.Time) ([]time.Time, error) {
	if end.Before(start) {
		return nil, nil
	}

	startLocal := start.In(loc)
	endLocal := end.In(loc)

	var results []time.Time

	for d := dateOnly(startLocal); !d.After(dateOnly(endLocal)); d = d.AddDate(0, 0, 1) {
		minutes, err := expandDayTimes(p.daySchedule(d.Weekday()))
		if err != nil {
			return nil, err
		}

		for _, m := range minutes {
			t := atMinute(d, m)
			if t.Before(startLocal) || t.After(endLocal) {
				continue
			}

			results = append(results, t)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Before(results[j])
	})

	return results, nil
}

// NextAfter returns the first slot strictly after the given moment.
func (p Plan) NextAfter(loc *time.Location, after time.Time) (time.Time, bool, error) {
	afterLocal := after.In(loc)
	startDate := dateOnly(afterLocal)

	for offset := 0; offset <= daysPerWeek; offset++ {
		d := startDate.AddDate(0, 0, offset)

		minutes, err := expandDayTimes(p.daySchedule(d.Weekday()))
		if err != nil {
			return time.Time{}, false, err
		}

		for _, m := range minutes {
			if t := atMinute(d, m); t.After(afterLocal) {
				return t, true, nil
			}
		}
	}

	return time.Time{}, false, nil
}

// PreviousTimeBefore returns the latest slot before the given moment.
func (p Plan) PreviousTimeBefore(loc *time.Location, before time.Time) (time.Time, bool, error) {
	beforeLocal := before.In(loc)
	startDate := dateOnly(beforeLocal)

	for offset := 0; offset <= daysPerWeek; offset++ {
		d := startDate.AddDate(0, 0, -offset)

		minutes, err := expandDayTimes(p.daySchedule(d.Weekday()))
		if err != nil {
			return time.Time{}, false, err
		}

		for i := len(minutes) - 1; i >= 0; i-- {
			if t := atMinute(d, minutes[i]); t.Before(beforeLocal) {
				return t, true, nil
			}
		}
	}

	return time.Time{}, false, nil
}

func (p Plan) daySchedule(day time.Weekday) DaySchedule {
	if day == time.Saturday || day == time.Sunday {
		return p.Weekends
	}

	return p.Weekdays
}

func (d DaySchedule) validate(label string) error {
	for _, t := range d.Times {
		if _, err := parseTimeHM(t); err != nil {
			return fmt.Errorf("invalid %s time %q: %w", label, t, err)
		}
	}

	if d.Hourly != nil {
		start, err := parseTimeHM(d.Hourly.Start)
		if err != nil {
			return fmt.Errorf("invalid %s hourly start %q: %w", label, d.Hourly.Start, err)
		}

		end, err := parseTimeHM(d.Hourly.End)
		if err != nil {
			return fmt.Errorf("invalid %s hourly end %q: %w", label, d.Hourly.End, err)
		}

		if start > end {
			return fmt.Errorf("%s: %w", label, ErrMidnightCrossing)
		}
	}

	return nil
}

func expandDayTimes(d DaySchedule) ([]int, error) {
	if d.IsEmpty() {
		return nil, nil
	}

	set := make(map[int]struct{})

	for _, t := range d.Times {
		m, err := parseTimeHM(t)
		if err != nil {
			return nil, err
		}

		set[m] = struct{}{}
	}

	if err := addHourlyTimes(d.Hourly, set); err != nil {
		return nil, err
	}

	minutes := make([]int, 0, len(set))
	for m := range set {
		minutes = append(minutes, m)
	}

	sort.Ints(minutes)

	return minutes, nil
}

func addHourlyTimes(hourly *HourlyRange, set map[int]struct{}) error {
	if hourly == nil {
		return nil
	}

	startMin, err := parseTimeHM(hourly.Start)
	if err != nil {
		return err
	}

	endMin, err := parseTimeHM(hourly.End)
	if err != nil {
		return err
	}

	if startMin > endMin {
		return ErrMidnightCrossing
	}

	firstHour := startMin / minutesPerHour
	if startMin%minutesPerHour != 0 {
		firstHour++
	}

	for hour := firstHour; hour*minutesPerHour <= endMin; hour++ {
		set[hour*minutesPerHour] = struct{}{}
	}

	return nil
}

func parseTimeHM(value string) (int, error) {
	normalized, err := NormalizeTimeHM(value)
	if err != nil {
		return 0, err
	}

	hour, _ := strconv.Atoi(normalized[:2])
	minute, _ := strconv.Atoi(normalized[3:])

	return hour*minutesPerHour + minute, nil
}

// NormalizeTimeHM accepts H:MM or HH:MM and returns HH:MM.
func NormalizeTimeHM(value string) (string, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return "", ErrTimeFormat
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", ErrInvalidHour
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", ErrInvalidMinute
	}

	if hour > maxHour || hour < 0 {
		return "", ErrHourOutOfRange
	}

	if minute < 0 || minute >= minutesPerHour {
		return "", ErrInvalidMinute
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

func atMinute(day time.Time, m int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), m/minutesPerHour, m%minutesPerHour, 0, 0, day.Location())
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
