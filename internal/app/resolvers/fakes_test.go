package resolvers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dalemusser/voluntahub/internal/app/store/audit"
	userstore "github.com/dalemusser/voluntahub/internal/app/store/users"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

// fakeUsers keeps users in insertion order, like the Mongo listing by _id.
type fakeUsers struct {
	mu      sync.Mutex
	users   []models.User
	failErr error
}

func (f *fakeUsers) Create(_ context.Context, u models.User) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return models.User{}, f.failErr
	}
	for _, x := range f.users {
		if x.Email == u.Email {
			return models.User{}, userstore.ErrDuplicateEmail
		}
	}
	u.ID = primitive.NewObjectID()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeUsers) List(context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	return append([]models.User(nil), f.users...), nil
}

func (f *fakeUsers) DeleteByEmail(_ context.Context, email string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if u.Email == email {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeUsers) DeleteByID(_ context.Context, id primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if u.ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type fakePostings struct {
	mu       sync.Mutex
	postings []models.Posting
	calls    int
}

func (f *fakePostings) Create(_ context.Context, p models.Posting) (models.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p.ID = primitive.NewObjectID()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	f.postings = append(f.postings, p)
	return p, nil
}

func (f *fakePostings) GetByID(_ context.Context, id primitive.ObjectID) (*models.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, p := range f.postings {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakePostings) List(_ context.Context, owner string) ([]models.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]models.Posting, 0)
	for _, p := range f.postings {
		if owner == "" || p.OwnerEmail == strings.ToLower(owner) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePostings) Update(_ context.Context, id primitive.ObjectID, patch models.PostingPatch) (*models.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i := range f.postings {
		p := &f.postings[i]
		if p.ID != id {
			continue
		}
		if patch.Title != nil {
			p.Title = *patch.Title
		}
		if patch.Date != nil {
			p.Date = *patch.Date
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Kind != nil {
			p.Kind = *patch.Kind
		}
		if patch.Image != nil {
			p.Image = *patch.Image
		}
		cp := *p
		return &cp, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakePostings) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i, p := range f.postings {
		if p.ID == id {
			f.postings = append(f.postings[:i], f.postings[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakePostings) snapshot() []models.Posting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Posting(nil), f.postings...)
}

func (f *fakePostings) storeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// plainHasher "hashes" by prefixing, which keeps tests fast and readable.
type plainHasher struct {
	dummyCalls int
}

func (h *plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }

func (h *plainHasher) Compare(hash, pw string) bool { return hash == "hashed:"+pw }

func (h *plainHasher) CompareDummy(string) bool {
	h.dummyCalls++
	return false
}

type fakeTokens struct{}

func (fakeTokens) Issue(id auth.Identity) (string, time.Time, error) {
	return "token-for-" + id.Email, time.Now().Add(time.Hour), nil
}

type sentEvent struct {
	Event   string
	Payload any
	Owners  []string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recordingNotifier) Notify(_ context.Context, event string, payload any, owners ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{Event: event, Payload: payload, Owners: owners})
}

func (r *recordingNotifier) all() []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentEvent(nil), r.events...)
}

type fakeLimiter struct {
	allow  bool
	resets []string
	seenIP string
}

func (l *fakeLimiter) Check(ip, _ string) (bool, string) {
	l.seenIP = ip
	if l.allow {
		return true, ""
	}
	return false, "ip"
}

func (l *fakeLimiter) ResetEmail(email string) { l.resets = append(l.resets, email) }

type harness struct {
	svc      *Service
	users    *fakeUsers
	postings *fakePostings
	hasher   *plainHasher
	notes    *recordingNotifier
	audits   *recordingAuditor
	trail    *fakeAuditReader
}

func newHarness() *harness {
	h := &harness{
		users:    &fakeUsers{},
		postings: &fakePostings{},
		hasher:   &plainHasher{},
		notes:    &recordingNotifier{},
		audits:   &recordingAuditor{},
		trail:    &fakeAuditReader{},
	}
	h.svc = New(Deps{
		Users:     h.users,
		Postings:  h.postings,
		Passwords: h.hasher,
		Tokens:    fakeTokens{},
		Notifier:  h.notes,
		Audit:     h.audits,

		AuditReader: h.trail,
	})
	return h
}

// seedUser inserts a user directly, bypassing the service.
func (h *harness) seedUser(name, email, password string, role models.Role) models.User {
	u, err := h.users.Create(context.Background(), models.User{
		Name: name, Email: email, PasswordHash: "hashed:" + password, Role: role,
	})
	if err != nil {
		panic(err)
	}
	return u
}

func (h *harness) seedPosting(title, owner string, kind models.Kind) models.Posting {
	p, _ := h.postings.Create(context.Background(), models.Posting{
		Title: title, OwnerEmail: owner, Date: "2026-01-01", Description: "d", Kind: kind,
	})
	return p
}

func as(u models.User) context.Context {
	id := auth.IdentityFromUser(u)
	return auth.WithIdentity(context.Background(), &id)
}

func strp(s string) *string { return &s }

func kindp(k models.Kind) *models.Kind { return &k }

// recordingAuditor keeps "event:subject" strings in call order.
type recordingAuditor struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAuditor) add(event, subject string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event+":"+subject)
}

func (a *recordingAuditor) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

func (a *recordingAuditor) LoginSucceeded(_ context.Context, u models.User) {
	a.add("login_success", u.Email)
}

func (a *recordingAuditor) LoginFailed(_ context.Context, email string, knownUser bool) {
	if knownUser {
		a.add("login_wrong_password", email)
		return
	}
	a.add("login_unknown_user", email)
}

func (a *recordingAuditor) LoginThrottled(_ context.Context, email, _ string) {
	a.add("login_throttled", email)
}

func (a *recordingAuditor) UserCreated(_ context.Context, _ *auth.Identity, u models.User) {
	a.add("user_created", u.Email)
}

func (a *recordingAuditor) UserDeleted(_ context.Context, _ *auth.Identity, _, email string) {
	a.add("user_deleted", email)
}

func (a *recordingAuditor) PostingDeleted(_ context.Context, actor *auth.Identity, p models.Posting) {
	a.add("posting_deleted", p.ID.Hex()+" by "+actor.Email)
}

// fakeAuditReader filters a fixed trail by email and category, newest first.
type fakeAuditReader struct {
	events    []audit.Event
	failErr   error
	gotFilter audit.QueryFilter
	gotSince  time.Time
	gotLimit  int64
}

func (f *fakeAuditReader) match(filter audit.QueryFilter) []audit.Event {
	var out []audit.Event
	for _, e := range f.events {
		if filter.UserEmail != "" && e.UserEmail != filter.UserEmail {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (f *fakeAuditReader) Query(_ context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	f.gotFilter = filter
	if f.failErr != nil {
		return nil, f.failErr
	}
	all := f.match(filter)
	if filter.Offset >= int64(len(all)) {
		return []audit.Event{}, nil
	}
	all = all[filter.Offset:]
	if int64(len(all)) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (f *fakeAuditReader) CountByFilter(_ context.Context, filter audit.QueryFilter) (int64, error) {
	if f.failErr != nil {
		return 0, f.failErr
	}
	return int64(len(f.match(filter))), nil
}

func (f *fakeAuditReader) GetFailedLogins(_ context.Context, since time.Time, limit int64) ([]audit.Event, error) {
	f.gotSince = since
	f.gotLimit = limit
	if f.failErr != nil {
		return nil, f.failErr
	}
	var out []audit.Event
	for _, e := range f.events {
		if !e.Success && e.Category == audit.CategoryAuth && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}
