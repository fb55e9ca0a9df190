package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

const displayTime = "2006-01-02 15:04"

// parseID parses a positional id argument
func parseID(name, arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got: %s", name, arg)
	}
	return id, nil
}

var inputLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

// parseTime accepts RFC3339 or a minute-precision local timestamp interpreted as UTC
func parseTime(s string) (time.Time, error) {
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (expected RFC3339 or \"YYYY-MM-DD HH:MM\")", s)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(displayTime)
}

func formatDuration(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	return d.Round(time.Minute).String()
}

func formatOptional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func formatEndType(e *model.EndType) string {
	if e == nil {
		return "open"
	}
	return string(*e)
}

func formatKm(km *float64) string {
	if km == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%.1f km", *km)
}
