package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
)

const assignmentColumns = `id, call_id, volunteer_id, entry_time, end_time, end_type`

func scanAssignment(row pgx.Row) (model.Assignment, error) {
	var a model.Assignment
	var endType *string
	if err := row.Scan(&a.ID, &a.CallID, &a.VolunteerID, &a.EntryTime, &a.EndTime, &endType); err != nil {
		return model.Assignment{}, err
	}
	a.EntryTime = a.EntryTime.UTC()
	if a.EndTime != nil {
		t := a.EndTime.UTC()
		a.EndTime = &t
	}
	if endType != nil {
		e := model.EndType(*endType)
		a.EndType = &e
	}
	return a, nil
}

func endTypeArg(e *model.EndType) *string {
	if e == nil {
		return nil
	}
	s := string(*e)
	return &s
}

// CreateAssignment inserts an assignment and returns its generated id
func (s *queries) CreateAssignment(ctx context.Context, a model.Assignment) (int, error) {
	var id int
	err := s.q.QueryRow(ctx, `
		INSERT INTO assignment (call_id, volunteer_id, entry_time, end_time, end_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, a.CallID, a.VolunteerID, a.EntryTime, a.EndTime, endTypeArg(a.EndType)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert assignment: %w", err)
	}
	return id, nil
}

// GetAssignment retrieves an assignment by id
func (s *queries) GetAssignment(ctx context.Context, id int) (model.Assignment, error) {
	a, err := scanAssignment(s.q.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Assignment{}, fmt.Errorf("assignment %d: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return model.Assignment{}, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// FindAssignment returns the lowest-id assignment accepted by match
func (s *queries) FindAssignment(ctx context.Context, match func(model.Assignment) bool) (model.Assignment, error) {
	as, err := s.ListAssignments(ctx, match)
	if err != nil {
		return model.Assignment{}, err
	}
	if len(as) == 0 {
		return model.Assignment{}, fmt.Errorf("assignment matching filter: %w", db.ErrNotFound)
	}
	return as[0], nil
}

// ListAssignments retrieves all assignments accepted by match, ordered by id
func (s *queries) ListAssignments(ctx context.Context, match func(model.Assignment) bool) ([]model.Assignment, error) {
	rows, err := s.q.Query(ctx, `SELECT `+assignmentColumns+` FROM assignment ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if match == nil || match(a) {
			assignments = append(assignments, a)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

// UpdateAssignment overwrites every column of an existing assignment
func (s *queries) UpdateAssignment(ctx context.Context, a model.Assignment) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE assignment
		SET call_id = $2, volunteer_id = $3, entry_time = $4, end_time = $5, end_type = $6
		WHERE id = $1
	`, a.ID, a.CallID, a.VolunteerID, a.EntryTime, a.EndTime, endTypeArg(a.EndType))
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	return notFoundIfNone(tag, "assignment", a.ID)
}

// DeleteAssignment removes an assignment
func (s *queries) DeleteAssignment(ctx context.Context, id int) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM assignment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return notFoundIfNone(tag, "assignment", id)
}

// DeleteAllAssignments removes every assignment
func (s *queries) DeleteAllAssignments(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM assignment`); err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}
	return nil
}
