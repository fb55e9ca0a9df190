package model

import (
	"fmt"
	"strings"
)

// Status is the derived lifecycle state of a call. The numeric order is part of the
// public contract: counts by status are reported in this order.
type Status int

const (
	StatusOpen Status = iota
	StatusInTreatment
	StatusClosed
	StatusExpired
	StatusInRiskTreatment
	StatusOpenInRisk
)

// AllStatuses lists every status in code order
var AllStatuses = []Status{
	StatusOpen,
	StatusInTreatment,
	StatusClosed,
	StatusExpired,
	StatusInRiskTreatment,
	StatusOpenInRisk,
}

var statusNames = map[Status]string{
	StatusOpen:            "Open",
	StatusInTreatment:     "InTreatment",
	StatusClosed:          "Closed",
	StatusExpired:         "Expired",
	StatusInRiskTreatment: "InRiskTreatment",
	StatusOpenInRisk:      "OpenInRisk",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsOpenForAssignment reports whether a volunteer may take a call in this status
func (s Status) IsOpenForAssignment() bool {
	return s == StatusOpen || s == StatusOpenInRisk
}

// ParseStatus accepts either the status name (case-insensitive) or its numeric code
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for status, name := range statusNames {
		if strings.EqualFold(name, s) || fmt.Sprint(int(status)) == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}
