package schedule

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	testTimeFormat       = "15:04"
	testErrTimesBetween  = "TimesBetween returned error: %v"
	testErrExpectedTimes = "expected %d times, got %d"
)

func TestTimesBetweenHourlySemantics(t *testing.T) {
	p := Plan{
		Weekdays: DaySchedule{
			Hourly: &HourlyRange{Start: "06:30", End: "08:00"},
		},
	}

	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	times, err := p.TimesBetween(time.UTC, start, end)
	if err != nil {
		t.Fatalf(testErrTimesBetween, err)
	}

	expectedCount := 2
	if len(times) != expectedCount {
		t.Fatalf(testErrExpectedTimes, expectedCount, len(times))
	}

	if times[0].Format(testTimeFormat) != "07:00" || times[1].Format(testTimeFormat) != "08:00" {
		t.Fatalf("expected 07:00 and 08:00, got %s and %s", times[0].Format(testTimeFormat), times[1].Format(testTimeFormat))
	}
}

func TestTimesBetweenMergeAndDedup(t *testing.T) {
	p := Plan{
		Weekdays: DaySchedule{
			Times:  []string{"18:00", "19:30"},
			Hourly: &HourlyRange{Start: "18:00", End: "20:00"},
		},
	}

	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 23, 59, 0, 0, time.UTC)

	times, err := p.TimesBetween(time.UTC, start, end)
	if err != nil {
		t.Fatalf(testErrTimesBetween, err)
	}

	expected := []string{"18:00", "19:00", "19:30", "20:00"}
	if len(times) != len(expected) {
		t.Fatalf(testErrExpectedTimes, len(expected), len(times))
	}

	for i, exp := range expected {
		if times[i].Format(testTimeFormat) != exp {
			t.Fatalf("expected %s at index %d, got %s", exp, i, times[i].Format(testTimeFormat))
		}
	}
}

func TestNextAfterWeekendVariant(t *testing.T) {
	p := Plan{
		Weekdays: DaySchedule{Times: []string{"08:00"}},
		Weekends: DaySchedule{Times: []string{"10:00"}},
	}

	// Friday evening: next slot is Saturday's weekend time.
	friday := time.Date(2026, 1, 2, 20, 0, 0, 0, time.UTC)

	next, ok, err := p.NextAfter(time.UTC, friday)
	if err != nil || !ok {
		t.Fatalf("NextAfter() = %v, %v, %v", next, ok, err)
	}

	want := time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("NextAfter() = %s, want %s", next, want)
	}

	// A slot exactly at the given moment is not "after" it.
	next, _, _ = p.NextAfter(time.UTC, want)
	if !next.Equal(time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("NextAfter() at slot = %s, want Sunday 10:00", next)
	}
}

func TestNextAfterEmptyPlan(t *testing.T) {
	_, ok, err := Plan{}.NextAfter(time.UTC, time.Now())
	if err != nil || ok {
		t.Fatalf("NextAfter() on empty plan = %v, %v", ok, err)
	}
}

func TestPreviousTimeBefore(t *testing.T) {
	p := Daily("07:30", "19:30")
	now := time.Date(2026, 1, 2, 7, 0, 0, 0, time.UTC)

	prev, ok, err := p.PreviousTimeBefore(time.UTC, now)
	if err != nil || !ok {
		t.Fatalf("PreviousTimeBefore() = %v, %v, %v", prev, ok, err)
	}

	if want := time.Date(2026, 1, 1, 19, 30, 0, 0, time.UTC); !prev.Equal(want) {
		t.Fatalf("PreviousTimeBefore() = %s, want %s", prev, want)
	}
}

func TestValidateRejectsBadTime(t *testing.T) {
	p := Pipeline{
		Timezone: "UTC",
		Collect:  Daily("25:00"),
		Digest:   Daily("08:00"),
	}

	if err := p.Validate(); !errors.Is(err, ErrHourOutOfRange) {
		t.Fatalf("Validate() = %v, want %v", err, ErrHourOutOfRange)
	}
}

func TestValidateRequiresSlots(t *testing.T) {
	p := Pipeline{Collect: Daily("07:00")}

	if err := p.Validate(); !errors.Is(err, ErrEmptySchedule) {
		t.Fatalf("Validate() = %v, want %v", err, ErrEmptySchedule)
	}
}

func TestFromTimesRejectsBadTimezone(t *testing.T) {
	if _, err := FromTimes("Mars/Olympus", []string{"07:00"}, []string{"08:00"}); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestNormalizeTimezoneAlias(t *testing.T) {
	if NormalizeTimezone("Asia/Nicosia") != "Europe/Nicosia" {
		t.Fatal("expected Asia/Nicosia to normalize to Europe/Nicosia")
	}
}

func TestNormalizeTimeHM(t *testing.T) {
	got, err := NormalizeTimeHM(" 9:05 ")
	if err != nil || got != "09:05" {
		t.Fatalf("NormalizeTimeHM() = %q, %v", got, err)
	}

	if _, err := NormalizeTimeHM("9:5"); !errors.Is(err, ErrTimeFormat) {
		t.Fatalf("NormalizeTimeHM(9:5) error = %v, want %v", err, ErrTimeFormat)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	body := `timezone: Europe/Kiev
collect:
  weekdays:
    times: ["07:30"]
  weekends:
    hourly: {start: "09:00", end: "11:00"}
digest:
  weekdays:
    times: ["08:00", "20:00"]
  weekends:
    times: ["12:00"]
`

	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	loc, err := p.Location()
	if err != nil || loc.String() != "Europe/Kyiv" {
		t.Fatalf("Location() = %v, %v", loc, err)
	}

	if p.Collect.Weekends.Hourly == nil || p.Collect.Weekends.Hourly.End != "11:00" {
		t.Fatalf("weekend hourly range not parsed: %+v", p.Collect.Weekends)
	}

	if len(p.Digest.Weekdays.Times) != 2 {
		t.Fatalf("digest weekday times = %v", p.Digest.Weekdays.Times)
	}
}

func TestTimesBetweenDSTBoundary(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	p := Plan{
		Weekdays: DaySchedule{
			Times: []string{"02:00", "03:00"},
		},
	}

	start := time.Date(2026, 3, 28, 0, 0, 0, 0, loc)
	end := time.Date(2026, 3, 30, 4, 0, 0, 0, loc)

	times, err := p.TimesBetween(loc, start, end)
	if err != nil {
		t.Fatalf(testErrTimesBetween, err)
	}

	expectedCount := 2
	if len(times) != expectedCount {
		t.Fatalf(testErrExpectedTimes, expectedCount, len(times))
	}

	for _, tm := range times {
		if tm.Location().String() != loc.String() {
			t.Fatalf("expected location %s, got %s", loc, tm.Location())
		}
	}
}
