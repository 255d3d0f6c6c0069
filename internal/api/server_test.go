// Tracking Device System - Mobile Location Tracking and Geofence Alerts
// Copyright 2026 KOBRA-1337
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/KOBRA-1337/Tracking-Device-system

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/KOBRA-1337/Tracking-Device-system/internal/auth"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/database"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/events"
	"github.com/KOBRA-1337/Tracking-Device-system/internal/models"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{nextID: 1, byID: map[int64]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return database.ErrDuplicateUser
		}
	}
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	f.nextID++
	clone := *user
	f.byID[user.ID] = &clone
	return nil
}

func (f *fakeUsers) GetUser(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeUsers) List(_ context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []*models.User
	for _, u := range f.byID {
		if u.IsActive {
			clone := *u
			users = append(users, &clone)
		}
	}
	return users, nil
}

type fakeLocations struct {
	mu      sync.Mutex
	nextSeq int64
	rows    []*models.Position
	failing bool
}

func (f *fakeLocations) Insert(_ context.Context, pos *models.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("storage down")
	}
	f.nextSeq++
	pos.SequenceID = f.nextSeq
	clone := *pos
	f.rows = append(f.rows, &clone)
	return nil
}

func (f *fakeLocations) History(_ context.Context, userID int64, limit int, _, _ *time.Time) ([]*models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Position
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if f.rows[i].UserID == userID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeLocations) Latest(_ context.Context, userID int64) (*models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].UserID == userID {
			return f.rows[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeLocations) LatestPerUser(_ context.Context) ([]*models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[int64]bool{}
	var out []*models.Position
	for i := len(f.rows) - 1; i >= 0; i-- {
		if !seen[f.rows[i].UserID] {
			seen[f.rows[i].UserID] = true
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

type fakeGeofences struct {
	mu          sync.Mutex
	nextID      int64
	zones       map[int64]*models.Geofence
	assignments map[string]*models.Assignment
}

func newFakeGeofences() *fakeGeofences {
	return &fakeGeofences{nextID: 1, zones: map[int64]*models.Geofence{}, assignments: map[string]*models.Assignment{}}
}

func assignKey(userID, geofenceID int64) string {
	return fmt.Sprintf("%d:%d", userID, geofenceID)
}

func (f *fakeGeofences) Create(_ context.Context, g *models.Geofence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.ID = f.nextID
	g.CreatedAt = time.Now()
	f.nextID++
	clone := *g
	f.zones[g.ID] = &clone
	return nil
}

func (f *fakeGeofences) Update(_ context.Context, g *models.Geofence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.zones[g.ID]; !ok {
		return database.ErrNotFound
	}
	clone := *g
	f.zones[g.ID] = &clone
	return nil
}

func (f *fakeGeofences) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.zones[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.zones, id)
	return nil
}

func (f *fakeGeofences) Get(_ context.Context, id int64) (*models.Geofence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.zones[id]; ok {
		clone := *g
		return &clone, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeGeofences) List(_ context.Context, activeOnly bool) ([]*models.Geofence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Geofence
	for _, g := range f.zones {
		if !activeOnly || g.IsActive {
			clone := *g
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeGeofences) Assign(_ context.Context, a *models.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.CreatedAt = time.Now()
	clone := *a
	f.assignments[assignKey(a.UserID, a.GeofenceID)] = &clone
	return nil
}

func (f *fakeGeofences) Unassign(_ context.Context, userID, geofenceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := assignKey(userID, geofenceID)
	if _, ok := f.assignments[key]; !ok {
		return database.ErrNotFound
	}
	delete(f.assignments, key)
	return nil
}

func (f *fakeGeofences) ActiveAssignedGeofences(_ context.Context, userID int64) ([]models.AssignedGeofence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AssignedGeofence
	for _, a := range f.assignments {
		if a.UserID != userID {
			continue
		}
		g, ok := f.zones[a.GeofenceID]
		if !ok || !g.IsActive {
			continue
		}
		out = append(out, models.AssignedGeofence{
			Geofence:     *g,
			AlertOnEntry: a.AlertOnEntry,
			AlertOnExit:  a.AlertOnExit,
		})
	}
	return out, nil
}

type fakeAlerts struct {
	mu   sync.Mutex
	rows []*models.Alert
}

func (f *fakeAlerts) ListForUser(_ context.Context, userID int64, limit int, unreadOnly bool) ([]*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Alert
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		a := f.rows[i]
		if a.UserID == userID && (!unreadOnly || !a.IsRead) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlerts) ListAll(_ context.Context, limit int, unreadOnly bool) ([]*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Alert
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		a := f.rows[i]
		if !unreadOnly || !a.IsRead {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlerts) UnreadCount(_ context.Context, userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.rows {
		if a.UserID == userID && !a.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeAlerts) MarkRead(_ context.Context, alertID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.ID == alertID && a.UserID == userID {
			a.IsRead = true
			return nil
		}
	}
	return database.ErrNotFound
}

func (f *fakeAlerts) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var updated int64
	for _, a := range f.rows {
		if a.UserID == userID && !a.IsRead {
			a.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeAlerts) Delete(_ context.Context, alertID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.rows {
		if a.ID == alertID && a.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

type fakeTokens struct {
	mu     sync.Mutex
	nextID int64
	byHash map[string]*database.RefreshToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{nextID: 1, byHash: map[string]*database.RefreshToken{}}
}

func (f *fakeTokens) Save(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[tokenHash] = &database.RefreshToken{
		ID:        f.nextID,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	f.nextID++
	return nil
}

func (f *fakeTokens) Find(_ context.Context, tokenHash string) (*database.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.byHash[tokenHash]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeTokens) Revoke(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.byHash[tokenHash]; ok && t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, t := range f.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

type capturePublisher struct {
	mu        sync.Mutex
	locations []*events.LocationEvent
}

func (p *capturePublisher) PublishLocation(_ context.Context, topic string, event *events.LocationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locations = append(p.locations, event)
	return nil
}

type testEnv struct {
	server      *httptest.Server
	users       *fakeUsers
	locations   *fakeLocations
	geofences   *fakeGeofences
	alerts      *fakeAlerts
	tokens      *fakeTokens
	publisher   *capturePublisher
	invalidator *fakeInvalidator
}

type fakeInvalidator struct {
	mu          sync.Mutex
	invalidated []int64
	purges      int
}

func (f *fakeInvalidator) Invalidate(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
}

func (f *fakeInvalidator) InvalidateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	manager, err := auth.NewManager(auth.Config{Secret: "test-secret-0123456789abcdef0123"})
	if err != nil {
		t.Fatalf("auth.NewManager: %v", err)
	}

	env := &testEnv{
		users:       newFakeUsers(),
		locations:   &fakeLocations{},
		geofences:   newFakeGeofences(),
		alerts:      &fakeAlerts{},
		tokens:      newFakeTokens(),
		publisher:   &capturePublisher{},
		invalidator: &fakeInvalidator{},
	}

	srv := NewServer(Config{CORSOrigins: []string{"*"}},
		manager, env.users, env.locations, env.geofences, env.alerts, env.tokens,
		env.publisher, nil, nil, nil)
	srv.SetAssignmentInvalidator(env.invalidator)
	env.server = httptest.NewServer(srv.Router())
	t.Cleanup(env.server.Close)
	return env
}

// do issues a JSON request and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, envelope
}

// registerAndLogin creates an account and returns its access token and id.
func (e *testEnv) registerAndLogin(t *testing.T, username string, admin bool) (string, int64) {
	t.Helper()

	status, envelope := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse-battery",
	})
	if status != http.StatusCreated {
		t.Fatalf("register status = %d: %s", status, envelope["error"])
	}

	var user models.User
	if err := json.Unmarshal(envelope["data"], &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if admin {
		e.users.mu.Lock()
		e.users.byID[user.ID].Role = models.RoleAdmin
		e.users.mu.Unlock()
	}

	status, envelope = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "correct-horse-battery",
	})
	if status != http.StatusOK {
		t.Fatalf("login status = %d: %s", status, envelope["error"])
	}

	var tokens tokenResponse
	if err := json.Unmarshal(envelope["data"], &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	return tokens.AccessToken, user.ID
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.registerAndLogin(t, "jdoe", false)

	status, envelope := env.do(t, http.MethodGet, "/api/v1/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("me status = %d", status)
	}
	var user models.User
	if err := json.Unmarshal(envelope["data"], &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.ID != userID || user.Username != "jdoe" {
		t.Errorf("me = %+v", user)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "jdoe", false)

	status, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "jdoe",
		"password": "wrong-password-entirely",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestDuplicateUsernameConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "jdoe", false)

	status, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "jdoe",
		"email":    "other@example.com",
		"password": "correct-horse-battery",
	})
	if status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/v1/me", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", status)
	}

	status, _ = env.do(t, http.MethodGet, "/api/v1/me", "bogus-token", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("bogus token status = %d, want 401", status)
	}
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "jdoe", false)

	status, envelope := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "jdoe",
		"password": "correct-horse-battery",
	})
	if status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	var tokens tokenResponse
	if err := json.Unmarshal(envelope["data"], &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}

	status, _ = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": tokens.RefreshToken,
	})
	if status != http.StatusOK {
		t.Fatalf("first refresh status = %d", status)
	}

	// The rotated-out token must be dead.
	status, _ = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": tokens.RefreshToken,
	})
	if status != http.StatusUnauthorized {
		t.Errorf("reused refresh status = %d, want 401", status)
	}
}

func TestIngestLocationPublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.registerAndLogin(t, "jdoe", false)

	status, envelope := env.do(t, http.MethodPost, "/api/v1/locations", token, map[string]float64{
		"latitude":  40.4093,
		"longitude": 49.8671,
	})
	if status != http.StatusCreated {
		t.Fatalf("ingest status = %d: %s", status, envelope["error"])
	}

	var pos models.Position
	if err := json.Unmarshal(envelope["data"], &pos); err != nil {
		t.Fatalf("decode position: %v", err)
	}
	if pos.SequenceID == 0 {
		t.Error("sequence id not assigned")
	}
	if pos.UserID != userID {
		t.Errorf("user id = %d, want %d", pos.UserID, userID)
	}

	env.publisher.mu.Lock()
	defer env.publisher.mu.Unlock()
	if len(env.publisher.locations) != 1 {
		t.Fatalf("published %d events, want 1", len(env.publisher.locations))
	}
	if env.publisher.locations[0].SequenceID != pos.SequenceID {
		t.Errorf("event sequence id = %d, want %d",
			env.publisher.locations[0].SequenceID, pos.SequenceID)
	}
}

func TestIngestLocationRejectsBadCoordinates(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerAndLogin(t, "jdoe", false)

	status, _ := env.do(t, http.MethodPost, "/api/v1/locations", token, map[string]float64{
		"latitude":  91.0,
		"longitude": 0.0,
	})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestGeofenceAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	userToken, _ := env.registerAndLogin(t, "jdoe", false)
	adminToken, _ := env.registerAndLogin(t, "admin", true)

	body := map[string]interface{}{
		"name":             "Home",
		"center_latitude":  40.4093,
		"center_longitude": 49.8671,
		"radius_meters":    200.0,
	}

	status, _ := env.do(t, http.MethodPost, "/api/v1/geofences", userToken, body)
	if status != http.StatusForbidden {
		t.Errorf("user create status = %d, want 403", status)
	}

	status, envelope := env.do(t, http.MethodPost, "/api/v1/geofences", adminToken, body)
	if status != http.StatusCreated {
		t.Fatalf("admin create status = %d: %s", status, envelope["error"])
	}
}

func TestGeofenceRadiusValidated(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.registerAndLogin(t, "admin", true)

	status, _ := env.do(t, http.MethodPost, "/api/v1/geofences", adminToken, map[string]interface{}{
		"name":             "Too small",
		"center_latitude":  0.0,
		"center_longitude": 0.0,
		"radius_meters":    5.0,
	})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestAssignAndListAssignedGeofences(t *testing.T) {
	env := newTestEnv(t)
	userToken, userID := env.registerAndLogin(t, "jdoe", false)
	adminToken, _ := env.registerAndLogin(t, "admin", true)

	status, envelope := env.do(t, http.MethodPost, "/api/v1/geofences", adminToken, map[string]interface{}{
		"name":             "School",
		"center_latitude":  40.4093,
		"center_longitude": 49.8671,
		"radius_meters":    300.0,
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	var zone models.Geofence
	if err := json.Unmarshal(envelope["data"], &zone); err != nil {
		t.Fatalf("decode geofence: %v", err)
	}

	status, _ = env.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/geofences/%d/assign", zone.ID), adminToken,
		map[string]interface{}{"user_id": userID, "alert_on_entry": true, "alert_on_exit": true})
	if status != http.StatusCreated {
		t.Fatalf("assign status = %d", status)
	}

	status, envelope = env.do(t, http.MethodGet, "/api/v1/geofences/assigned", userToken, nil)
	if status != http.StatusOK {
		t.Fatalf("assigned status = %d", status)
	}
	var zones []models.AssignedGeofence
	if err := json.Unmarshal(envelope["data"], &zones); err != nil {
		t.Fatalf("decode assigned: %v", err)
	}
	if len(zones) != 1 || zones[0].ID != zone.ID || !zones[0].AlertOnExit {
		t.Errorf("assigned zones = %+v", zones)
	}
}

func TestGeofenceMutationsInvalidateAssignmentCache(t *testing.T) {
	env := newTestEnv(t)
	_, userID := env.registerAndLogin(t, "jdoe", false)
	adminToken, _ := env.registerAndLogin(t, "admin", true)

	status, envelope := env.do(t, http.MethodPost, "/api/v1/geofences", adminToken, map[string]interface{}{
		"name":             "School",
		"center_latitude":  40.4093,
		"center_longitude": 49.8671,
		"radius_meters":    300.0,
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	var zone models.Geofence
	if err := json.Unmarshal(envelope["data"], &zone); err != nil {
		t.Fatalf("decode geofence: %v", err)
	}

	// Assigning and unassigning drop the affected user's cached set.
	status, _ = env.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/geofences/%d/assign", zone.ID), adminToken,
		map[string]interface{}{"user_id": userID, "alert_on_entry": true})
	if status != http.StatusCreated {
		t.Fatalf("assign status = %d", status)
	}
	status, _ = env.do(t, http.MethodDelete,
		fmt.Sprintf("/api/v1/geofences/%d/assign/%d", zone.ID, userID), adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("unassign status = %d", status)
	}

	env.invalidator.mu.Lock()
	invalidated := append([]int64(nil), env.invalidator.invalidated...)
	env.invalidator.mu.Unlock()
	if len(invalidated) != 2 || invalidated[0] != userID || invalidated[1] != userID {
		t.Errorf("invalidated users = %v, want [%d %d]", invalidated, userID, userID)
	}

	// Zone-level changes may affect unknown users, so they purge everything.
	status, _ = env.do(t, http.MethodPut,
		fmt.Sprintf("/api/v1/geofences/%d", zone.ID), adminToken, map[string]interface{}{
			"name":             "School",
			"center_latitude":  40.4093,
			"center_longitude": 49.8671,
			"radius_meters":    500.0,
		})
	if status != http.StatusOK {
		t.Fatalf("update status = %d", status)
	}
	status, _ = env.do(t, http.MethodDelete,
		fmt.Sprintf("/api/v1/geofences/%d", zone.ID), adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("delete status = %d", status)
	}

	env.invalidator.mu.Lock()
	purges := env.invalidator.purges
	env.invalidator.mu.Unlock()
	if purges != 2 {
		t.Errorf("purges = %d, want 2", purges)
	}
}

func TestAlertsReadSide(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.registerAndLogin(t, "jdoe", false)

	env.alerts.rows = []*models.Alert{
		{ID: 1, UserID: userID, Kind: models.AlertKindEntry, Message: "Entered geofence: Home"},
		{ID: 2, UserID: userID, Kind: models.AlertKindExit, Message: "Exited geofence: Home"},
		{ID: 3, UserID: userID + 99, Kind: models.AlertKindEntry, Message: "someone else's"},
	}

	status, envelope := env.do(t, http.MethodGet, "/api/v1/alerts", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var alerts []*models.Alert
	if err := json.Unmarshal(envelope["data"], &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("listed %d alerts, want 2", len(alerts))
	}

	status, envelope = env.do(t, http.MethodGet, "/api/v1/alerts/unread-count", token, nil)
	if status != http.StatusOK {
		t.Fatalf("unread-count status = %d", status)
	}
	var count map[string]int
	if err := json.Unmarshal(envelope["data"], &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count["unread_count"] != 2 {
		t.Errorf("unread = %d, want 2", count["unread_count"])
	}

	if status, _ = env.do(t, http.MethodPut, "/api/v1/alerts/1/read", token, nil); status != http.StatusOK {
		t.Errorf("mark read status = %d", status)
	}

	// Cannot touch another user's alert.
	if status, _ = env.do(t, http.MethodPut, "/api/v1/alerts/3/read", token, nil); status != http.StatusNotFound {
		t.Errorf("foreign mark read status = %d, want 404", status)
	}
	if status, _ = env.do(t, http.MethodDelete, "/api/v1/alerts/3", token, nil); status != http.StatusNotFound {
		t.Errorf("foreign delete status = %d, want 404", status)
	}
}

func TestAllAlertsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	userToken, userID := env.registerAndLogin(t, "jdoe", false)
	adminToken, _ := env.registerAndLogin(t, "admin", true)

	env.alerts.rows = []*models.Alert{
		{ID: 1, UserID: userID, Kind: models.AlertKindEntry, Message: "Entered geofence: Home"},
		{ID: 2, UserID: userID + 99, Kind: models.AlertKindExit, Message: "Exited geofence: Work"},
	}

	if status, _ := env.do(t, http.MethodGet, "/api/v1/alerts/all", userToken, nil); status != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want 403", status)
	}

	status, envelope := env.do(t, http.MethodGet, "/api/v1/alerts/all", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("admin status = %d", status)
	}
	var alerts []*models.Alert
	if err := json.Unmarshal(envelope["data"], &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Errorf("listed %d alerts, want 2", len(alerts))
	}
}

func TestHistoryVisibility(t *testing.T) {
	env := newTestEnv(t)
	userToken, userID := env.registerAndLogin(t, "jdoe", false)
	adminToken, _ := env.registerAndLogin(t, "admin", true)

	env.locations.rows = []*models.Position{
		{SequenceID: 1, UserID: userID, Latitude: 1, Longitude: 1},
		{SequenceID: 2, UserID: userID + 99, Latitude: 2, Longitude: 2},
	}

	// Non-admin asking for someone else's history is refused.
	status, _ := env.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/locations/history?user_id=%d", userID+99), userToken, nil)
	if status != http.StatusForbidden {
		t.Errorf("foreign history status = %d, want 403", status)
	}

	// Admin may.
	status, envelope := env.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/locations/history?user_id=%d", userID+99), adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("admin history status = %d", status)
	}
	var positions []*models.Position
	if err := json.Unmarshal(envelope["data"], &positions); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(positions) != 1 || positions[0].SequenceID != 2 {
		t.Errorf("admin history = %+v", positions)
	}

	// /locations/all is admin only.
	if status, _ = env.do(t, http.MethodGet, "/api/v1/locations/all", userToken, nil); status != http.StatusForbidden {
		t.Errorf("user /all status = %d, want 403", status)
	}
	if status, _ = env.do(t, http.MethodGet, "/api/v1/locations/all", adminToken, nil); status != http.StatusOK {
		t.Errorf("admin /all status = %d, want 200", status)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthEndpoints(t *testing.T) {
	manager, err := auth.NewManager(auth.Config{Secret: "test-secret-0123456789abcdef0123"})
	if err != nil {
		t.Fatalf("auth.NewManager: %v", err)
	}
	srv := NewServer(Config{}, manager, newFakeUsers(), &fakeLocations{}, newFakeGeofences(),
		&fakeAlerts{}, newFakeTokens(), nil, nil, failingPinger{}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health/live")
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503 with database down", resp.StatusCode)
	}
}
