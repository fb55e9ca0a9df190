package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
)

const callColumns = `id, type, description, address, latitude, longitude, opened_at, max_time`

func scanCall(row pgx.Row) (model.Call, error) {
	var c model.Call
	var callType string
	err := row.Scan(&c.ID, &callType, &c.Description, &c.Address, &c.Latitude, &c.Longitude, &c.OpenedAt, &c.MaxTime)
	if err != nil {
		return model.Call{}, err
	}
	c.Type = model.CallType(callType)
	c.OpenedAt = c.OpenedAt.UTC()
	if c.MaxTime != nil {
		t := c.MaxTime.UTC()
		c.MaxTime = &t
	}
	return c, nil
}

// CreateCall inserts a call and returns its generated id
func (s *queries) CreateCall(ctx context.Context, c model.Call) (int, error) {
	var id int
	err := s.q.QueryRow(ctx, `
		INSERT INTO call (type, description, address, latitude, longitude, opened_at, max_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, string(c.Type), c.Description, c.Address, c.Latitude, c.Longitude, c.OpenedAt, c.MaxTime).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert call: %w", err)
	}
	return id, nil
}

// GetCall retrieves a call by id
func (s *queries) GetCall(ctx context.Context, id int) (model.Call, error) {
	c, err := scanCall(s.q.QueryRow(ctx, `SELECT `+callColumns+` FROM call WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Call{}, fmt.Errorf("call %d: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return model.Call{}, fmt.Errorf("failed to get call: %w", err)
	}
	return c, nil
}

// FindCall returns the lowest-id call accepted by match
func (s *queries) FindCall(ctx context.Context, match func(model.Call) bool) (model.Call, error) {
	cs, err := s.ListCalls(ctx, match)
	if err != nil {
		return model.Call{}, err
	}
	if len(cs) == 0 {
		return model.Call{}, fmt.Errorf("call matching filter: %w", db.ErrNotFound)
	}
	return cs[0], nil
}

// ListCalls retrieves all calls accepted by match, ordered by id
func (s *queries) ListCalls(ctx context.Context, match func(model.Call) bool) ([]model.Call, error) {
	rows, err := s.q.Query(ctx, `SELECT `+callColumns+` FROM call ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close()

	var calls []model.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		if match == nil || match(c) {
			calls = append(calls, c)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calls: %w", err)
	}

	return calls, nil
}

// UpdateCall overwrites every column of an existing call
func (s *queries) UpdateCall(ctx context.Context, c model.Call) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE call
		SET type = $2, description = $3, address = $4, latitude = $5, longitude = $6, opened_at = $7, max_time = $8
		WHERE id = $1
	`, c.ID, string(c.Type), c.Description, c.Address, c.Latitude, c.Longitude, c.OpenedAt, c.MaxTime)
	if err != nil {
		return fmt.Errorf("failed to update call: %w", err)
	}
	return notFoundIfNone(tag, "call", c.ID)
}

// DeleteCall removes a call
func (s *queries) DeleteCall(ctx context.Context, id int) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM call WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete call: %w", err)
	}
	return notFoundIfNone(tag, "call", id)
}

// DeleteAllCalls removes every call. The id sequence is not reset.
func (s *queries) DeleteAllCalls(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM call`); err != nil {
		return fmt.Errorf("failed to delete calls: %w", err)
	}
	return nil
}
