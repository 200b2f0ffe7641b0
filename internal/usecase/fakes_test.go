package usecase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"account-service/internal/data/entity"
	"account-service/internal/data/repository"
	"account-service/pkg/metrics"
	"account-service/pkg/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeStore keeps users, verifications and sessions in memory behind one lock
// so conditional updates behave like the SQL they stand in for.
type fakeStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*entity.User
	verifications map[uuid.UUID]*entity.Verification
	sessions      map[uuid.UUID]*entity.Session
	nextCode      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[uuid.UUID]*entity.User),
		verifications: make(map[uuid.UUID]*entity.Verification),
		sessions:      make(map[uuid.UUID]*entity.Session),
		nextCode:      100000,
	}
}

func (f *fakeStore) repository() *repository.Repository {
	return &repository.Repository{
		User:         fakeUsers{f},
		Verification: fakeVerifications{f},
		Session:      fakeSessions{f},
	}
}

func (f *fakeStore) addUser(u *entity.User) *entity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
	return u
}

func (f *fakeStore) user(id uuid.UUID) entity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeStore) verification(id uuid.UUID) entity.Verification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.verifications[id]
}

func (f *fakeStore) verificationsFor(userID uuid.UUID) []entity.Verification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Verification
	for _, v := range f.verifications {
		if v.UserID == userID {
			out = append(out, *v)
		}
	}
	return out
}

func (f *fakeStore) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeUsers struct{ f *fakeStore }

func (r fakeUsers) Create(_ context.Context, user *entity.User) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, u := range r.f.users {
		if user.Phone != nil && u.Phone != nil && *u.Phone == *user.Phone {
			return repository.ErrDuplicatePhone
		}
	}
	cp := *user
	r.f.users[user.ID] = &cp
	return nil
}

func (r fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	u, ok := r.f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r fakeUsers) find(match func(*entity.User) bool) *entity.User {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, u := range r.f.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r fakeUsers) FindByPhone(_ context.Context, phone string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.PhoneNumber() == phone }), nil
}

func (r fakeUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.EmailAddress() == email }), nil
}

func (r fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.users[id].PasswordHash = hash
	return nil
}

func (r fakeUsers) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.users[id].IsEmailVerified = true
	return nil
}

func (r fakeUsers) UpdateVerificationStatus(_ context.Context, id uuid.UUID, from, to entity.VerificationStatus) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	u, ok := r.f.users[id]
	if !ok || u.VerificationStatus != from {
		return false, nil
	}
	u.VerificationStatus = to
	return true, nil
}

func (r fakeUsers) SetIdentityDocument(_ context.Context, id uuid.UUID, nid, key string, from entity.VerificationStatus) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	u, ok := r.f.users[id]
	if !ok || u.VerificationStatus != from {
		return false, nil
	}
	u.NIDNumber = &nid
	u.NIDDocumentKey = &key
	u.VerificationStatus = entity.StatusPending
	return true, nil
}

func (r fakeUsers) ListByVerificationStatus(_ context.Context, status entity.VerificationStatus, limit, offset int) ([]entity.User, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var matched []entity.User
	for _, u := range r.f.users {
		if u.IsActive && u.VerificationStatus == status {
			matched = append(matched, *u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID.String() < matched[j].ID.String() })
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

type fakeVerifications struct{ f *fakeStore }

func (r fakeVerifications) newLocked(userID uuid.UUID, channel entity.Channel) *entity.Verification {
	r.f.nextCode++
	v := &entity.Verification{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: time.Now()},
		Code:       fmt.Sprintf("%06d", r.f.nextCode),
		UserID:     userID,
		Channel:    channel,
		IsValid:    true,
	}
	r.f.verifications[v.ID] = v
	return v
}

func (r fakeVerifications) CreatePending(_ context.Context, userID uuid.UUID, channel entity.Channel) (*entity.Verification, bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.users[userID]; !ok {
		return nil, false, repository.ErrUserNotFound
	}
	for _, v := range r.f.verifications {
		if v.UserID == userID && v.Channel == channel && v.Usable() {
			cp := *v
			return &cp, false, nil
		}
	}
	cp := *r.newLocked(userID, channel)
	return &cp, true, nil
}

func (r fakeVerifications) Create(_ context.Context, userID uuid.UUID, channel entity.Channel) (*entity.Verification, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	cp := *r.newLocked(userID, channel)
	return &cp, nil
}

func (r fakeVerifications) FindByID(_ context.Context, id uuid.UUID) (*entity.Verification, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	v, ok := r.f.verifications[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (r fakeVerifications) FindUsable(_ context.Context, code string, userID uuid.UUID, channel *entity.Channel) (*entity.Verification, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, v := range r.f.verifications {
		if v.Code == code && v.UserID == userID && v.Usable() && (channel == nil || v.Channel == *channel) {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeVerifications) FindUsableByID(_ context.Context, id uuid.UUID, channel entity.Channel) (*entity.Verification, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	v, ok := r.f.verifications[id]
	if !ok || !v.Usable() || v.Channel != channel {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (r fakeVerifications) Consume(_ context.Context, id uuid.UUID) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	v, ok := r.f.verifications[id]
	if !ok || !v.Usable() {
		return false, nil
	}
	v.IsValid, v.IsUsed = false, true
	return true, nil
}

func (r fakeVerifications) Invalidate(_ context.Context, id uuid.UUID) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	v, ok := r.f.verifications[id]
	if !ok || !v.Usable() {
		return false, nil
	}
	v.IsValid = false
	return true, nil
}

type fakeSessions struct{ f *fakeStore }

func (r fakeSessions) GetOrCreate(_ context.Context, userID uuid.UUID) (*entity.Session, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if s, ok := r.f.sessions[userID]; ok {
		cp := *s
		return &cp, nil
	}
	s := &entity.Session{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: time.Now()},
		UserID:     userID,
		Token:      uuid.New(),
	}
	r.f.sessions[userID] = s
	cp := *s
	return &cp, nil
}

func (r fakeSessions) FindByToken(_ context.Context, token uuid.UUID) (*entity.Session, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, s := range r.f.sessions {
		if s.Token == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeSessions) DeleteByUser(_ context.Context, userID uuid.UUID) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	_, ok := r.f.sessions[userID]
	delete(r.f.sessions, userID)
	return ok, nil
}

type sentMessage struct {
	Kind       string
	Recipients []string
	Subject    string
	Body       string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (d *recordingDispatcher) SendSMS(_ context.Context, numbers []string, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{Kind: "sms", Recipients: numbers, Body: message})
}

func (d *recordingDispatcher) SendEmail(_ context.Context, addresses []string, subject, body, _ string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{Kind: "email", Recipients: addresses, Subject: subject, Body: body})
}

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentMessage(nil), d.sent...)
}

type scheduledExpiry struct {
	ID    uuid.UUID
	Delay time.Duration
}

type recordingExpiry struct {
	mu        sync.Mutex
	scheduled []scheduledExpiry
	err       error
}

func (e *recordingExpiry) ScheduleExpiration(_ context.Context, id uuid.UUID, delay time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.scheduled = append(e.scheduled, scheduledExpiry{ID: id, Delay: delay})
	return nil
}

func (e *recordingExpiry) calls() []scheduledExpiry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]scheduledExpiry(nil), e.scheduled...)
}

type recordingDocuments struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (d *recordingDocuments) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.keys = append(d.keys, key)
	return nil
}

type testEnv struct {
	store     *fakeStore
	notifier  *recordingDispatcher
	expiry    *recordingExpiry
	documents *recordingDocuments
	metrics   *metrics.Verification
	service   *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	m, err := metrics.NewVerification(metrics.Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	env := &testEnv{
		store:     newFakeStore(),
		notifier:  &recordingDispatcher{},
		expiry:    &recordingExpiry{},
		documents: &recordingDocuments{},
		metrics:   m,
	}

	config := &utils.Config{
		App: utils.AppConfig{MagicLinkBaseURL: "https://accounts.example.com/login"},
		OTP: utils.OTPConfig{ExpiryMinutes: 5, Length: 6, MaxAttempts: 10},
	}

	env.service = NewService(env.store.repository(), Dependencies{
		Notifier:  env.notifier,
		Expiry:    env.expiry,
		Documents: env.documents,
		Metrics:   m,
	}, config, zaptest.NewLogger(t))

	return env
}

type userOption func(*entity.User)

func withPassword(t *testing.T, password string) userOption {
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	return func(u *entity.User) { u.PasswordHash = hash }
}

func withEmail(email string, verified bool) userOption {
	return func(u *entity.User) {
		u.Email = &email
		u.IsEmailVerified = verified
	}
}

func inactive(u *entity.User) { u.IsActive = false }

func staff(u *entity.User) { u.IsStaff = true }

func withStatus(s entity.VerificationStatus) userOption {
	return func(u *entity.User) { u.VerificationStatus = s }
}

func (e *testEnv) addUser(phone string, opts ...userOption) *entity.User {
	u := newUser(time.Now())
	if phone != "" {
		u.Phone = &phone
	}
	u.PasswordHash = utils.UnusablePassword()
	for _, opt := range opts {
		opt(u)
	}
	return e.store.addUser(u)
}

// issueCode runs RequestCode and returns the pending CODE verification it left behind.
func (e *testEnv) issueCode(t *testing.T, identifier string, userID uuid.UUID) entity.Verification {
	t.Helper()
	require.NoError(t, e.service.Auth.RequestCode(context.Background(), identifier))
	for _, v := range e.store.verificationsFor(userID) {
		if v.Channel == entity.ChannelCode && v.Usable() {
			return v
		}
	}
	t.Fatalf("no pending code for user %s", userID)
	return entity.Verification{}
}
