package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jakechorley/volunteer-dispatch/pkg/clock"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/validation"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
	"github.com/jakechorley/volunteer-dispatch/pkg/geo"
)

func init() {
	validation.BcryptCost = bcrypt.MinCost
}

var t0 = time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)

const (
	addrJaffa       = "1 Jaffa Rd, Jerusalem"
	addrKingGeorge  = "5 King George St, Jerusalem"
	addrTelAviv     = "10 Rothschild Blvd, Tel Aviv"
	addrHaifa       = "2 Herzl St, Haifa"
	testPassword    = "Str0ng!pass"
	adminID         = 123456782
	workerID        = 18
	otherWorkerID   = 26
	distantWorkerID = 34
)

var knownAddresses = map[string]geo.Coordinates{
	addrJaffa:      {Latitude: 31.7830, Longitude: 35.2200},
	addrKingGeorge: {Latitude: 31.7800, Longitude: 35.2170},
	addrTelAviv:    {Latitude: 32.0853, Longitude: 34.7818},
	addrHaifa:      {Latitude: 32.8150, Longitude: 34.9890},
}

// fakeGeocoder resolves the fixed test addresses
type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (geo.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	c, ok := knownAddresses[address]
	if !ok {
		return geo.Coordinates{}, geo.ErrNoMatch
	}
	return c, nil
}

type sentEmail struct {
	To, Subject, Body string
}

// fakeMailer records sent emails and fails for addresses in failFor
type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentEmail
	failFor map[string]bool
}

func (m *fakeMailer) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[to] {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var to []string
	for _, e := range m.sent {
		to = append(to, e.To)
	}
	return to
}

type testEnv struct {
	ctx        context.Context
	db         *db.MemoryDB
	clock      *clock.Provider
	geocoder   *fakeGeocoder
	mailer     *fakeMailer
	calls      *CallService
	volunteers *VolunteerService
	admin      *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	env := &testEnv{
		ctx:      context.Background(),
		db:       db.NewMemoryDB(),
		clock:    clock.NewProvider(t0, 30*time.Minute),
		geocoder: &fakeGeocoder{},
		mailer:   &fakeMailer{failFor: map[string]bool{}},
	}
	v := validation.New(env.geocoder)
	env.calls = NewCallService(env.db, env.clock, v, env.geocoder, NewNotifier(env.mailer, logger), logger)
	env.volunteers = NewVolunteerService(env.db, env.clock, v, logger)
	env.admin = NewAdminService(env.db, env.clock, logger)
	return env
}

func ptr[T any](v T) *T { return &v }

func newVolunteer(id int, name string, role model.Role, address string) model.Volunteer {
	return model.Volunteer{
		ID:           id,
		Name:         name,
		Phone:        "0521234567",
		Email:        name + "@example.org",
		Address:      address,
		Role:         role,
		Active:       true,
		DistanceType: model.DistanceAir,
	}
}

func (e *testEnv) createVolunteer(t *testing.T, vol model.Volunteer) {
	t.Helper()
	require.NoError(t, e.volunteers.CreateVolunteer(e.ctx, vol, testPassword))
}

// seedVolunteers creates an administrator and two workers living in Jerusalem
// and one worker in Haifa
func (e *testEnv) seedVolunteers(t *testing.T) {
	t.Helper()
	e.createVolunteer(t, newVolunteer(adminID, "admin", model.RoleAdministrator, addrKingGeorge))
	e.createVolunteer(t, newVolunteer(workerID, "dana", model.RoleWorker, addrKingGeorge))
	e.createVolunteer(t, newVolunteer(otherWorkerID, "noa", model.RoleWorker, addrJaffa))
	e.createVolunteer(t, newVolunteer(distantWorkerID, "omer", model.RoleWorker, addrHaifa))
}

func (e *testEnv) addCall(t *testing.T, callType model.CallType, address string, deadline time.Duration) int {
	t.Helper()
	call := model.Call{Type: callType, Address: address}
	if deadline > 0 {
		call.MaxTime = ptr(e.clock.Now().Add(deadline))
	}
	id, err := e.calls.AddCall(e.ctx, call)
	require.NoError(t, err)
	return id
}

func (e *testEnv) assign(t *testing.T, volunteerID, callID int) int {
	t.Helper()
	id, err := e.calls.AssignCallToVolunteer(e.ctx, volunteerID, callID)
	require.NoError(t, err)
	return id
}

func (e *testEnv) status(t *testing.T, callID int) model.Status {
	t.Helper()
	st, err := e.calls.DetermineStatus(e.ctx, callID)
	require.NoError(t, err)
	return st
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}
