package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
)

const volunteerColumns = `id, name, phone, email, password_hash, address, latitude, longitude, role, active, max_distance, distance_type`

func scanVolunteer(row pgx.Row) (model.Volunteer, error) {
	var v model.Volunteer
	var role, distanceType string
	err := row.Scan(&v.ID, &v.Name, &v.Phone, &v.Email, &v.PasswordHash, &v.Address,
		&v.Latitude, &v.Longitude, &role, &v.Active, &v.MaxDistance, &distanceType)
	if err != nil {
		return model.Volunteer{}, err
	}
	v.Role = model.Role(role)
	v.DistanceType = model.DistanceType(distanceType)
	return v, nil
}

// CreateVolunteer inserts a volunteer with its caller-supplied id
func (s *queries) CreateVolunteer(ctx context.Context, v model.Volunteer) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO volunteer (`+volunteerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, v.ID, v.Name, v.Phone, v.Email, v.PasswordHash, v.Address,
		v.Latitude, v.Longitude, string(v.Role), v.Active, v.MaxDistance, string(v.DistanceType))
	if isUniqueViolation(err) {
		return fmt.Errorf("volunteer %d: %w", v.ID, db.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert volunteer: %w", err)
	}
	return nil
}

// GetVolunteer retrieves a volunteer by id
func (s *queries) GetVolunteer(ctx context.Context, id int) (model.Volunteer, error) {
	v, err := scanVolunteer(s.q.QueryRow(ctx, `SELECT `+volunteerColumns+` FROM volunteer WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Volunteer{}, fmt.Errorf("volunteer %d: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return model.Volunteer{}, fmt.Errorf("failed to get volunteer: %w", err)
	}
	return v, nil
}

// FindVolunteer returns the lowest-id volunteer accepted by match
func (s *queries) FindVolunteer(ctx context.Context, match func(model.Volunteer) bool) (model.Volunteer, error) {
	vs, err := s.ListVolunteers(ctx, match)
	if err != nil {
		return model.Volunteer{}, err
	}
	if len(vs) == 0 {
		return model.Volunteer{}, fmt.Errorf("volunteer matching filter: %w", db.ErrNotFound)
	}
	return vs[0], nil
}

// ListVolunteers retrieves all volunteers accepted by match, ordered by id
func (s *queries) ListVolunteers(ctx context.Context, match func(model.Volunteer) bool) ([]model.Volunteer, error) {
	rows, err := s.q.Query(ctx, `SELECT `+volunteerColumns+` FROM volunteer ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteers: %w", err)
	}
	defer rows.Close()

	var volunteers []model.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan volunteer: %w", err)
		}
		if match == nil || match(v) {
			volunteers = append(volunteers, v)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volunteers: %w", err)
	}

	return volunteers, nil
}

// UpdateVolunteer overwrites every column of an existing volunteer
func (s *queries) UpdateVolunteer(ctx context.Context, v model.Volunteer) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE volunteer
		SET name = $2, phone = $3, email = $4, password_hash = $5, address = $6,
			latitude = $7, longitude = $8, role = $9, active = $10, max_distance = $11, distance_type = $12
		WHERE id = $1
	`, v.ID, v.Name, v.Phone, v.Email, v.PasswordHash, v.Address,
		v.Latitude, v.Longitude, string(v.Role), v.Active, v.MaxDistance, string(v.DistanceType))
	if err != nil {
		return fmt.Errorf("failed to update volunteer: %w", err)
	}
	return notFoundIfNone(tag, "volunteer", v.ID)
}

// DeleteVolunteer removes a volunteer
func (s *queries) DeleteVolunteer(ctx context.Context, id int) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM volunteer WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete volunteer: %w", err)
	}
	return notFoundIfNone(tag, "volunteer", id)
}

// DeleteAllVolunteers removes every volunteer
func (s *queries) DeleteAllVolunteers(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM volunteer`); err != nil {
		return fmt.Errorf("failed to delete volunteers: %w", err)
	}
	return nil
}
