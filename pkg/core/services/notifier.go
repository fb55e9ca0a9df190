package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/geo"
	"github.com/jakechorley/volunteer-dispatch/pkg/metrics"
)

// Mailer sends a plain-text email
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// FailedEmail records a notification that could not be delivered
type FailedEmail struct {
	VolunteerID   int
	VolunteerName string
	Email         string
	Error         error
}

// Notifier emails volunteers about calls. A nil *Notifier sends nothing.
type Notifier struct {
	mailer Mailer
	logger *zap.Logger
}

func NewNotifier(mailer Mailer, logger *zap.Logger) *Notifier {
	return &Notifier{mailer: mailer, logger: logger}
}

// coversCall reports whether v can be asked to take a call at coords
func coversCall(v model.Volunteer, coords geo.Coordinates) bool {
	if !v.Active || v.Latitude == nil || v.Longitude == nil {
		return false
	}
	if v.MaxDistance == nil {
		return true
	}
	d := geo.Haversine(geo.Coordinates{Latitude: *v.Latitude, Longitude: *v.Longitude}, coords)
	return d <= *v.MaxDistance
}

// NewCallAvailable emails every active volunteer whose travel range covers call.
// Delivery failures are logged and returned but do not stop the remaining sends.
func (n *Notifier) NewCallAvailable(call model.Call, volunteers []model.Volunteer) (int, []FailedEmail) {
	if n == nil {
		return 0, nil
	}

	coords := geo.Coordinates{Latitude: call.Latitude, Longitude: call.Longitude}
	subject := fmt.Sprintf("New %s call near you: %s", call.Type, call.Address)

	sent := 0
	var failed []FailedEmail
	for _, v := range volunteers {
		if v.Email == "" || !coversCall(v, coords) {
			continue
		}
		body := newCallBody(v, call)
		if err := n.mailer.SendEmail(v.Email, subject, body); err != nil {
			n.logger.Warn("Failed to send new call notification",
				zap.Int("call_id", call.ID),
				zap.Int("volunteer_id", v.ID),
				zap.Error(err))
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			failed = append(failed, FailedEmail{VolunteerID: v.ID, VolunteerName: v.Name, Email: v.Email, Error: err})
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		sent++
	}

	n.logger.Info("New call notifications sent",
		zap.Int("call_id", call.ID),
		zap.Int("sent", sent),
		zap.Int("failed", len(failed)))
	return sent, failed
}

// AssignmentCancelled tells a volunteer that an administrator took them off a call
func (n *Notifier) AssignmentCancelled(v model.Volunteer, call model.Call) error {
	if n == nil || v.Email == "" {
		return nil
	}

	subject := fmt.Sprintf("Call %d was cancelled for you", call.ID)
	body := fmt.Sprintf("Hi %s,\n\nAn administrator cancelled your assignment to call %d at %s.\nYou are free to take another call.\n",
		firstName(v.Name), call.ID, call.Address)

	if err := n.mailer.SendEmail(v.Email, subject, body); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to notify volunteer %d: %w", v.ID, err)
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}

func newCallBody(v model.Volunteer, call model.Call) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", firstName(v.Name))
	fmt.Fprintf(&b, "A new %s call (#%d) was opened at %s.\n", call.Type, call.ID, call.Address)
	if call.Description != nil && *call.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", *call.Description)
	}
	if call.MaxTime != nil {
		fmt.Fprintf(&b, "It must be handled by %s.\n", call.MaxTime.Format("Mon 2 Jan 15:04"))
	}
	b.WriteString("\nOpen the dispatch app to take it.\n")
	return b.String()
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}
