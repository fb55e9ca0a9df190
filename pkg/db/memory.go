package db

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

// table is one in-memory entity collection. It is not synchronised; MemoryDB
// guards every table with a single lock.
type table[T any] struct {
	kind   string
	rows   map[int]T
	nextID int
	idOf   func(T) int
	setID  func(*T, int) // nil when ids are supplied by the caller
	clone  func(T) T
}

func (t *table[T]) create(v T) (int, error) {
	if t.setID != nil {
		t.nextID++
		t.setID(&v, t.nextID)
	}
	id := t.idOf(v)
	if _, exists := t.rows[id]; exists {
		return 0, fmt.Errorf("%s %d: %w", t.kind, id, ErrAlreadyExists)
	}
	t.rows[id] = t.clone(v)
	return id, nil
}

func (t *table[T]) get(id int) (T, error) {
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %d: %w", t.kind, id, ErrNotFound)
	}
	return t.clone(v), nil
}

func (t *table[T]) list(match func(T) bool) []T {
	ids := slices.Sorted(maps.Keys(t.rows))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v := t.rows[id]
		if match == nil || match(v) {
			out = append(out, t.clone(v))
		}
	}
	return out
}

func (t *table[T]) find(match func(T) bool) (T, error) {
	for _, v := range t.list(match) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("%s matching filter: %w", t.kind, ErrNotFound)
}

func (t *table[T]) update(v T) error {
	id := t.idOf(v)
	if _, ok := t.rows[id]; !ok {
		return fmt.Errorf("%s %d: %w", t.kind, id, ErrNotFound)
	}
	t.rows[id] = t.clone(v)
	return nil
}

func (t *table[T]) delete(id int) error {
	if _, ok := t.rows[id]; !ok {
		return fmt.Errorf("%s %d: %w", t.kind, id, ErrNotFound)
	}
	delete(t.rows, id)
	return nil
}

// deleteAll clears the rows. Generated ids keep increasing.
func (t *table[T]) deleteAll() {
	t.rows = make(map[int]T)
}

func (t *table[T]) snapshot() *table[T] {
	cp := *t
	cp.rows = maps.Clone(t.rows)
	return &cp
}

// memState implements Store without locking
type memState struct {
	volunteers  *table[model.Volunteer]
	calls       *table[model.Call]
	assignments *table[model.Assignment]
}

// MemoryDB is an in-process implementation of Database.
// It is safe for concurrent use.
type MemoryDB struct {
	mu    sync.RWMutex
	state memState
}

// NewMemoryDB creates an empty in-memory database
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		state: memState{
			volunteers: &table[model.Volunteer]{
				kind:  "volunteer",
				rows:  make(map[int]model.Volunteer),
				idOf:  func(v model.Volunteer) int { return v.ID },
				clone: cloneVolunteer,
			},
			calls: &table[model.Call]{
				kind:  "call",
				rows:  make(map[int]model.Call),
				idOf:  func(c model.Call) int { return c.ID },
				setID: func(c *model.Call, id int) { c.ID = id },
				clone: cloneCall,
			},
			assignments: &table[model.Assignment]{
				kind:  "assignment",
				rows:  make(map[int]model.Assignment),
				idOf:  func(a model.Assignment) int { return a.ID },
				setID: func(a *model.Assignment, id int) { a.ID = id },
				clone: cloneAssignment,
			},
		},
	}
}

// InTx holds the write lock for the whole of fn and restores the previous
// contents if fn fails.
func (db *MemoryDB) InTx(ctx context.Context, fn func(tx Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	saved := memState{
		volunteers:  db.state.volunteers.snapshot(),
		calls:       db.state.calls.snapshot(),
		assignments: db.state.assignments.snapshot(),
	}
	if err := fn(&db.state); err != nil {
		db.state = saved
		return err
	}
	return nil
}

// View holds the read lock for the whole of fn.
func (db *MemoryDB) View(ctx context.Context, fn func(tx Store) error) error {
	return db.read(func(s *memState) error { return fn(s) })
}

func (db *MemoryDB) read(fn func(s *memState) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(&db.state)
}

func (db *MemoryDB) write(fn func(s *memState) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(&db.state)
}

// Volunteers

func (s *memState) CreateVolunteer(ctx context.Context, v model.Volunteer) error {
	_, err := s.volunteers.create(v)
	return err
}

func (s *memState) GetVolunteer(ctx context.Context, id int) (model.Volunteer, error) {
	return s.volunteers.get(id)
}

func (s *memState) FindVolunteer(ctx context.Context, match func(model.Volunteer) bool) (model.Volunteer, error) {
	return s.volunteers.find(match)
}

func (s *memState) ListVolunteers(ctx context.Context, match func(model.Volunteer) bool) ([]model.Volunteer, error) {
	return s.volunteers.list(match), nil
}

func (s *memState) UpdateVolunteer(ctx context.Context, v model.Volunteer) error {
	return s.volunteers.update(v)
}

func (s *memState) DeleteVolunteer(ctx context.Context, id int) error {
	return s.volunteers.delete(id)
}

func (s *memState) DeleteAllVolunteers(ctx context.Context) error {
	s.volunteers.deleteAll()
	return nil
}

// Calls

func (s *memState) CreateCall(ctx context.Context, c model.Call) (int, error) {
	return s.calls.create(c)
}

func (s *memState) GetCall(ctx context.Context, id int) (model.Call, error) {
	return s.calls.get(id)
}

func (s *memState) FindCall(ctx context.Context, match func(model.Call) bool) (model.Call, error) {
	return s.calls.find(match)
}

func (s *memState) ListCalls(ctx context.Context, match func(model.Call) bool) ([]model.Call, error) {
	return s.calls.list(match), nil
}

func (s *memState) UpdateCall(ctx context.Context, c model.Call) error {
	return s.calls.update(c)
}

func (s *memState) DeleteCall(ctx context.Context, id int) error {
	return s.calls.delete(id)
}

func (s *memState) DeleteAllCalls(ctx context.Context) error {
	s.calls.deleteAll()
	return nil
}

// Assignments

func (s *memState) CreateAssignment(ctx context.Context, a model.Assignment) (int, error) {
	return s.assignments.create(a)
}

func (s *memState) GetAssignment(ctx context.Context, id int) (model.Assignment, error) {
	return s.assignments.get(id)
}

func (s *memState) FindAssignment(ctx context.Context, match func(model.Assignment) bool) (model.Assignment, error) {
	return s.assignments.find(match)
}

func (s *memState) ListAssignments(ctx context.Context, match func(model.Assignment) bool) ([]model.Assignment, error) {
	return s.assignments.list(match), nil
}

func (s *memState) UpdateAssignment(ctx context.Context, a model.Assignment) error {
	return s.assignments.update(a)
}

func (s *memState) DeleteAssignment(ctx context.Context, id int) error {
	return s.assignments.delete(id)
}

func (s *memState) DeleteAllAssignments(ctx context.Context) error {
	s.assignments.deleteAll()
	return nil
}

// Locked wrappers

func (db *MemoryDB) CreateVolunteer(ctx context.Context, v model.Volunteer) error {
	return db.write(func(s *memState) error { return s.CreateVolunteer(ctx, v) })
}

func (db *MemoryDB) GetVolunteer(ctx context.Context, id int) (v model.Volunteer, err error) {
	err = db.read(func(s *memState) error { v, err = s.GetVolunteer(ctx, id); return err })
	return v, err
}

func (db *MemoryDB) FindVolunteer(ctx context.Context, match func(model.Volunteer) bool) (v model.Volunteer, err error) {
	err = db.read(func(s *memState) error { v, err = s.FindVolunteer(ctx, match); return err })
	return v, err
}

func (db *MemoryDB) ListVolunteers(ctx context.Context, match func(model.Volunteer) bool) (vs []model.Volunteer, err error) {
	err = db.read(func(s *memState) error { vs, err = s.ListVolunteers(ctx, match); return err })
	return vs, err
}

func (db *MemoryDB) UpdateVolunteer(ctx context.Context, v model.Volunteer) error {
	return db.write(func(s *memState) error { return s.UpdateVolunteer(ctx, v) })
}

func (db *MemoryDB) DeleteVolunteer(ctx context.Context, id int) error {
	return db.write(func(s *memState) error { return s.DeleteVolunteer(ctx, id) })
}

func (db *MemoryDB) DeleteAllVolunteers(ctx context.Context) error {
	return db.write(func(s *memState) error { return s.DeleteAllVolunteers(ctx) })
}

func (db *MemoryDB) CreateCall(ctx context.Context, c model.Call) (id int, err error) {
	err = db.write(func(s *memState) error { id, err = s.CreateCall(ctx, c); return err })
	return id, err
}

func (db *MemoryDB) GetCall(ctx context.Context, id int) (c model.Call, err error) {
	err = db.read(func(s *memState) error { c, err = s.GetCall(ctx, id); return err })
	return c, err
}

func (db *MemoryDB) FindCall(ctx context.Context, match func(model.Call) bool) (c model.Call, err error) {
	err = db.read(func(s *memState) error { c, err = s.FindCall(ctx, match); return err })
	return c, err
}

func (db *MemoryDB) ListCalls(ctx context.Context, match func(model.Call) bool) (cs []model.Call, err error) {
	err = db.read(func(s *memState) error { cs, err = s.ListCalls(ctx, match); return err })
	return cs, err
}

func (db *MemoryDB) UpdateCall(ctx context.Context, c model.Call) error {
	return db.write(func(s *memState) error { return s.UpdateCall(ctx, c) })
}

func (db *MemoryDB) DeleteCall(ctx context.Context, id int) error {
	return db.write(func(s *memState) error { return s.DeleteCall(ctx, id) })
}

func (db *MemoryDB) DeleteAllCalls(ctx context.Context) error {
	return db.write(func(s *memState) error { return s.DeleteAllCalls(ctx) })
}

func (db *MemoryDB) CreateAssignment(ctx context.Context, a model.Assignment) (id int, err error) {
	err = db.write(func(s *memState) error { id, err = s.CreateAssignment(ctx, a); return err })
	return id, err
}

func (db *MemoryDB) GetAssignment(ctx context.Context, id int) (a model.Assignment, err error) {
	err = db.read(func(s *memState) error { a, err = s.GetAssignment(ctx, id); return err })
	return a, err
}

func (db *MemoryDB) FindAssignment(ctx context.Context, match func(model.Assignment) bool) (a model.Assignment, err error) {
	err = db.read(func(s *memState) error { a, err = s.FindAssignment(ctx, match); return err })
	return a, err
}

func (db *MemoryDB) ListAssignments(ctx context.Context, match func(model.Assignment) bool) (as []model.Assignment, err error) {
	err = db.read(func(s *memState) error { as, err = s.ListAssignments(ctx, match); return err })
	return as, err
}

func (db *MemoryDB) UpdateAssignment(ctx context.Context, a model.Assignment) error {
	return db.write(func(s *memState) error { return s.UpdateAssignment(ctx, a) })
}

func (db *MemoryDB) DeleteAssignment(ctx context.Context, id int) error {
	return db.write(func(s *memState) error { return s.DeleteAssignment(ctx, id) })
}

func (db *MemoryDB) DeleteAllAssignments(ctx context.Context) error {
	return db.write(func(s *memState) error { return s.DeleteAllAssignments(ctx) })
}

func cloneVolunteer(v model.Volunteer) model.Volunteer {
	out := v
	out.Latitude = clonePtr(v.Latitude)
	out.Longitude = clonePtr(v.Longitude)
	out.MaxDistance = clonePtr(v.MaxDistance)
	return out
}

func cloneCall(c model.Call) model.Call {
	out := c
	out.Description = clonePtr(c.Description)
	out.MaxTime = clonePtr(c.MaxTime)
	return out
}

func cloneAssignment(a model.Assignment) model.Assignment {
	out := a
	out.EndTime = clonePtr(a.EndTime)
	out.EndType = clonePtr(a.EndType)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
