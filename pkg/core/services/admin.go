package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/clock"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/errs"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
	"github.com/jakechorley/volunteer-dispatch/pkg/metrics"
)

// AdminService owns the simulated clock, the risk window and administrative resets
type AdminService struct {
	engine
	provider *clock.Provider
}

func NewAdminService(database db.Database, provider *clock.Provider, logger *zap.Logger) *AdminService {
	return &AdminService{
		engine:   engine{db: database, clock: provider, logger: logger},
		provider: provider,
	}
}

func (s *AdminService) GetClock() time.Time {
	return s.provider.Now()
}

func (s *AdminService) GetRiskRange() time.Duration {
	return s.provider.RiskRange()
}

// AdvanceClock moves the clock forward by one unit and expires overdue assignments
func (s *AdminService) AdvanceClock(ctx context.Context, unit clock.Unit) (time.Time, error) {
	now, err := s.provider.Advance(unit)
	if err != nil {
		return now, s.finish("AdvanceClock", errs.Validation("unit", "%v", err))
	}
	s.logger.Info("Clock advanced", zap.String("unit", string(unit)), zap.Time("now", now))
	metrics.SimulatedClockSeconds.Set(float64(now.Unix()))

	_, err = s.ExpireOverdueCalls(ctx)
	return now, s.finish("AdvanceClock", err)
}

// SetClock moves the clock to t and expires overdue assignments
func (s *AdminService) SetClock(ctx context.Context, t time.Time) error {
	s.provider.SetClock(t)
	s.logger.Info("Clock set", zap.Time("now", t))
	metrics.SimulatedClockSeconds.Set(float64(t.Unix()))

	_, err := s.ExpireOverdueCalls(ctx)
	return s.finish("SetClock", err)
}

func (s *AdminService) SetRiskRange(d time.Duration) error {
	if err := s.provider.SetRiskRange(d); err != nil {
		return s.finish("SetRiskRange", errs.Validation("risk_range", "%v", err))
	}
	s.logger.Info("Risk range set", zap.Duration("risk_range", d))
	return s.finish("SetRiskRange", nil)
}

// ResetConfig restores the initial clock and risk window
func (s *AdminService) ResetConfig() {
	s.provider.Reset()
	s.logger.Info("Configuration reset",
		zap.Time("now", s.provider.Now()),
		zap.Duration("risk_range", s.provider.RiskRange()))
}

// ResetDatabase deletes every assignment, call and volunteer
func (s *AdminService) ResetDatabase(ctx context.Context) error {
	err := s.db.InTx(ctx, func(tx db.Store) error {
		if err := tx.DeleteAllAssignments(ctx); err != nil {
			return storeErr(err, "assignments")
		}
		if err := tx.DeleteAllCalls(ctx); err != nil {
			return storeErr(err, "calls")
		}
		return storeErr(tx.DeleteAllVolunteers(ctx), "volunteers")
	})
	if err == nil {
		s.logger.Info("Database reset")
	}
	return s.finish("ResetDatabase", err)
}

// ExpireOverdueCalls ends every started open assignment whose call deadline has
// passed, with end type ExpiredCancellation. It returns how many were ended.
func (s *AdminService) ExpireOverdueCalls(ctx context.Context) (int, error) {
	n, err := s.expireOverdue(ctx)
	return n, s.finish("ExpireOverdueCalls", err)
}

func (s *AdminService) expireOverdue(ctx context.Context) (int, error) {
	var expired []model.Assignment
	err := s.db.InTx(ctx, func(tx db.Store) error {
		now := s.provider.Now()
		overdue, err := tx.ListCalls(ctx, func(c model.Call) bool {
			return c.MaxTime != nil && !c.MaxTime.After(now)
		})
		if err != nil {
			return storeErr(err, "calls")
		}
		if len(overdue) == 0 {
			return nil
		}
		isOverdue := make(map[int]bool, len(overdue))
		for _, c := range overdue {
			isOverdue[c.ID] = true
		}

		open, err := tx.ListAssignments(ctx, func(a model.Assignment) bool {
			return isOverdue[a.CallID] && a.IsOpen() && !a.EntryTime.After(now)
		})
		if err != nil {
			return storeErr(err, "assignments")
		}
		for _, a := range open {
			if err := endAssignment(ctx, tx, a, now, model.EndTypeExpiredCancellation); err != nil {
				return err
			}
		}
		expired = open
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, a := range expired {
		metrics.RecordAssignmentEnded(model.EndTypeExpiredCancellation)
		s.logger.Info("Assignment expired",
			zap.Int("assignment_id", a.ID),
			zap.Int("call_id", a.CallID),
			zap.Int("volunteer_id", a.VolunteerID))
	}
	return len(expired), nil
}
