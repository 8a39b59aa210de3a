// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/admitly/internal/platform/apperr"
	"github.com/taibuivan/admitly/internal/platform/mail"
	"github.com/taibuivan/admitly/internal/platform/sec"
	"github.com/taibuivan/admitly/internal/users/auth"
)

// # Clock

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// # Users

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*auth.User
	// failIncrement makes IncrementTokenVersion fail.
	failIncrement error
	// failPasswordUpdate makes password writes fail.
	failPasswordUpdate error
	// findGate, when set, runs after every FindByID read.
	findGate func()
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*auth.User{}}
}

func (m *memoryUsers) clone(user *auth.User) *auth.User {
	copied := *user
	copied.UniversityIDs = append([]string(nil), user.UniversityIDs...)
	copied.CourseIDs = append([]string(nil), user.CourseIDs...)
	return &copied
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	user, ok := m.users[id]
	if ok {
		user = m.clone(user)
	}
	gate := m.findGate
	m.mu.Unlock()

	if gate != nil {
		gate()
	}
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return user, nil
}

func (m *memoryUsers) setFindGate(gate func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findGate = gate
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return m.clone(user), nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (m *memoryUsers) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return m.clone(user), nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (m *memoryUsers) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return apperr.Conflict(auth.MsgEmailRegistered)
		}
		if existing.Username == user.Username {
			return apperr.Conflict(auth.MsgUsernameTaken)
		}
	}
	m.users[user.ID] = m.clone(user)
	return nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPasswordUpdate != nil {
		return m.failPasswordUpdate
	}
	user, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("Account")
	}
	user.PasswordHash = newHash
	return nil
}

func (m *memoryUsers) IncrementTokenVersion(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIncrement != nil {
		return 0, m.failIncrement
	}
	user, ok := m.users[userID]
	if !ok {
		return 0, apperr.NotFound("Account")
	}
	user.TokenVersion++
	return user.TokenVersion, nil
}

// version reads the stored counter.
func (m *memoryUsers) version(t *testing.T, userID string) int64 {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	require.True(t, ok, "unknown user %s", userID)
	return user.TokenVersion
}

func (m *memoryUsers) setActive(userID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].IsActive = active
}

// # Reset records

type memoryResets struct {
	mu      sync.Mutex
	clock   *testClock
	users   *memoryUsers
	records []*auth.PasswordResetRecord
}

func newMemoryResets(clock *testClock, users *memoryUsers) *memoryResets {
	return &memoryResets{clock: clock, users: users}
}

func (m *memoryResets) ReplaceForEmail(_ context.Context, record *auth.PasswordResetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supersede(record.Email)
	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

func (m *memoryResets) FindValid(_ context.Context, email, tokenHash string) (*auth.PasswordResetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for _, record := range m.records {
		if record.Email == email && record.TokenHash == tokenHash && !record.IsUsed && record.ExpiresAt.After(now) {
			copied := *record
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Reset token")
}

// Redeem mirrors the transactional store: nothing changes unless every step succeeds.
func (m *memoryResets) Redeem(ctx context.Context, record *auth.PasswordResetRecord, userID, newHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var grant *auth.PasswordResetRecord
	for _, candidate := range m.records {
		if candidate.ID == record.ID && !candidate.IsUsed && candidate.ExpiresAt.After(now) {
			grant = candidate
		}
	}
	if grant == nil {
		return 0, apperr.NotFound("Reset token")
	}

	if err := m.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return 0, err
	}

	grant.IsUsed = true
	grant.UsedAt = &now
	return m.supersede(record.Email), nil
}

func (m *memoryResets) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var removed int64
	for _, record := range m.records {
		if record.ExpiresAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	m.records = kept
	return removed, nil
}

func (m *memoryResets) supersede(email string) int64 {
	now := m.clock.Now()
	var count int64
	for _, record := range m.records {
		if record.Email == email && !record.IsUsed {
			record.IsUsed = true
			record.UsedAt = &now
			count++
		}
	}
	return count
}

func (m *memoryResets) unused(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, record := range m.records {
		if record.Email == email && !record.IsUsed {
			count++
		}
	}
	return count
}

// # Directory

type memoryDirectory struct {
	organizations map[string]auth.Organization
	universities  map[string]auth.University
	courses       map[string]auth.Course
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		organizations: map[string]auth.Organization{},
		universities:  map[string]auth.University{},
		courses:       map[string]auth.Course{},
	}
}

func (m *memoryDirectory) FindOrganization(_ context.Context, id string) (*auth.Organization, error) {
	if organization, ok := m.organizations[id]; ok {
		return &organization, nil
	}
	return nil, apperr.NotFound("Organization")
}

func (m *memoryDirectory) FindUniversity(_ context.Context, id string) (*auth.University, error) {
	if university, ok := m.universities[id]; ok {
		return &university, nil
	}
	return nil, apperr.NotFound("University")
}

func (m *memoryDirectory) FindCourses(_ context.Context, ids []string) ([]auth.Course, error) {
	courses := []auth.Course{}
	for _, id := range ids {
		if course, ok := m.courses[id]; ok {
			courses = append(courses, course)
		}
	}
	return courses, nil
}

// # Collaborators

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (r *recordingMailer) Go(_ context.Context, message mail.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingMailer) sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.messages...)
}

type stubThrottle struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubThrottle) Allow(context.Context, string) (bool, error) {
	s.calls++
	return s.allowed, s.err
}

var errStoreDown = errors.New("store unavailable")

// # Fixture

const (
	accessSecret  = "access-secret-for-auth-tests"
	refreshSecret = "refresh-secret-for-auth-tests"

	orgID        = "0190a6f1-0000-7000-8000-000000000001"
	universityID = "0190a6f1-0000-7000-8000-000000000002"
	otherUniID   = "0190a6f1-0000-7000-8000-000000000003"
	courseID     = "0190a6f1-0000-7000-8000-000000000004"
	formlessID   = "0190a6f1-0000-7000-8000-000000000005"
	foreignID    = "0190a6f1-0000-7000-8000-000000000006"
	formID       = "0190a6f1-0000-7000-8000-000000000007"
)

type fixture struct {
	clock     *testClock
	users     *memoryUsers
	resets    *memoryResets
	directory *memoryDirectory
	issuer    *sec.TokenIssuer
	mailer    *recordingMailer
	service   *auth.Service
	reset     *auth.ResetService
}

func newFixture(t *testing.T, options ...auth.ResetOption) *fixture {
	t.Helper()

	clock := newTestClock()
	issuer, err := sec.NewTokenIssuer(sec.TokenConfig{
		AccessSecret:    accessSecret,
		RefreshSecret:   refreshSecret,
		AccessLifetime:  sec.MustLifetime("15m"),
		RefreshLifetime: sec.MustLifetime("7d"),
		Issuer:          "admitly-test",
	}, sec.WithClock(clock.Now))
	require.NoError(t, err)

	directory := newMemoryDirectory()
	directory.organizations[orgID] = auth.Organization{ID: orgID, Name: "Northwind Admissions"}
	directory.universities[universityID] = auth.University{ID: universityID, Name: "Harbor University", OrganizationID: orgID}
	directory.universities[otherUniID] = auth.University{ID: otherUniID, Name: "Elsewhere", OrganizationID: "0190a6f1-0000-7000-8000-0000000000ff"}
	form := formID
	directory.courses[courseID] = auth.Course{ID: courseID, Name: "Marine Biology", UniversityID: universityID, FormID: &form}
	directory.courses[formlessID] = auth.Course{ID: formlessID, Name: "Draft Course", UniversityID: universityID}
	directory.courses[foreignID] = auth.Course{ID: foreignID, Name: "Elsewhere 101", UniversityID: otherUniID, FormID: &form}

	users := newMemoryUsers()
	resets := newMemoryResets(clock, users)
	mailer := &recordingMailer{}
	service := auth.NewService(users, directory, issuer)

	options = append([]auth.ResetOption{auth.WithResetClock(clock.Now)}, options...)
	reset := auth.NewResetService(users, resets, mailer, auth.ResetConfig{
		FrontendBaseURL: "https://app.admitly.test/",
	}, options...)

	return &fixture{
		clock:     clock,
		users:     users,
		resets:    resets,
		directory: directory,
		issuer:    issuer,
		mailer:    mailer,
		service:   service,
		reset:     reset,
	}
}

// register creates a learner through the service and returns its first session.
func (f *fixture) register(t *testing.T, email, password string) *auth.Session {
	t.Helper()

	session, err := f.service.Register(context.Background(), auth.RegisterInput{
		Email:    email,
		Password: password,
		Name:     "Ada Learner",
		Username: usernameFor(email),
	})
	require.NoError(t, err)
	return session
}

func usernameFor(email string) string {
	for i, r := range email {
		if r == '@' {
			return "user-" + email[:i]
		}
	}
	return "user-" + email
}

// refreshVersion decodes the version embedded in a refresh token.
func (f *fixture) refreshVersion(t *testing.T, token string) int64 {
	t.Helper()
	claims, err := f.issuer.VerifyRefresh(token)
	require.NoError(t, err)
	return claims.TokenVersion
}
