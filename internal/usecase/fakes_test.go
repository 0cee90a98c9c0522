package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]domain.User
	saves   int
	findErr error
	getErr  error
	// afterLoad runs once, outside the lock, after GetByID or FindByUsername
	// loaded a user.
	afterLoad func()
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]domain.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return repository.ErrConflict
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	if r.getErr != nil {
		r.mu.Unlock()
		return nil, r.getErr
	}
	user, ok := r.users[id]
	r.mu.Unlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.loaded(user), nil
}

func (r *fakeUserRepo) loaded(user domain.User) *domain.User {
	r.mu.Lock()
	hook := r.afterLoad
	r.afterLoad = nil
	r.mu.Unlock()

	out := user
	out.Roles = user.Roles.Clone()
	if hook != nil {
		hook()
	}
	return &out
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	if r.findErr != nil {
		r.mu.Unlock()
		return nil, r.findErr
	}
	var (
		found domain.User
		ok    bool
	)
	for _, user := range r.users {
		if user.Username == username {
			found, ok = user, true
			break
		}
	}
	r.mu.Unlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.loaded(found), nil
}

func (r *fakeUserRepo) Save(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != user.Version {
		return repository.ErrConflict
	}
	user.Version++
	user.Roles = user.Roles.Clone()
	r.users[user.ID] = user
	r.saves++
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, filter port.UserFilter) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, user := range r.users {
		if filter.Approval != "" && user.Approval.Kind() != filter.Approval {
			continue
		}
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeUserRepo) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

func (r *fakeUserRepo) get(id string) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.users[id]
	user.Roles = user.Roles.Clone()
	return user
}

// fakeHasher stores passwords as "hashed:<password>".
type fakeHasher struct {
	verifyErr error
	panics    bool
}

func (h *fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(password, encoded string) (bool, error) {
	if h.panics {
		panic("hasher exploded")
	}
	if h.verifyErr != nil {
		return false, h.verifyErr
	}
	return strings.TrimPrefix(encoded, "hashed:") == password, nil
}

type recordingPublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	decisions  []domain.UserDecisionEvent
	locked     []domain.UserLockedEvent
	roles      []domain.RolesChangedEvent
	photos     []domain.PhotoDecisionEvent
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, e domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, e)
	return nil
}

func (p *recordingPublisher) PublishUserDecision(_ context.Context, e domain.UserDecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, e)
	return nil
}

func (p *recordingPublisher) PublishUserLocked(_ context.Context, e domain.UserLockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, e)
	return nil
}

func (p *recordingPublisher) PublishRolesChanged(_ context.Context, e domain.RolesChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles = append(p.roles, e)
	return nil
}

func (p *recordingPublisher) PublishPhotoDecision(_ context.Context, e domain.PhotoDecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.photos = append(p.photos, e)
	return nil
}

type countingMetrics struct {
	successes int
	failures  map[string]int
	lockouts  int
	expired   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{failures: make(map[string]int)}
}

func (m *countingMetrics) LoginSucceeded()           { m.successes++ }
func (m *countingMetrics) LoginFailed(reason string) { m.failures[reason]++ }
func (m *countingMetrics) AccountLocked()            { m.lockouts++ }
func (m *countingMetrics) SessionExpired()           { m.expired++ }

type fakeOrderRepo struct {
	orders map[string]domain.Order
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if order, ok := r.orders[id]; ok {
		return &order, nil
	}
	return nil, repository.ErrNotFound
}

type fakePhotoRepo struct {
	mu        sync.Mutex
	photos    map[string]domain.PhotoDocument
	order     []string
	updates   int
	updateErr error
}

func newFakePhotoRepo(photos ...domain.PhotoDocument) *fakePhotoRepo {
	repo := &fakePhotoRepo{photos: make(map[string]domain.PhotoDocument)}
	for _, p := range photos {
		repo.photos[p.ID] = p
		repo.order = append(repo.order, p.ID)
	}
	return repo
}

func (r *fakePhotoRepo) GetByID(_ context.Context, id string) (*domain.PhotoDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if photo, ok := r.photos[id]; ok {
		return &photo, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakePhotoRepo) ListByOrder(_ context.Context, orderID string) ([]domain.PhotoDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PhotoDocument
	for _, id := range r.order {
		if photo := r.photos[id]; photo.OrderID == orderID {
			out = append(out, photo)
		}
	}
	return out, nil
}

func (r *fakePhotoRepo) UpdateReview(_ context.Context, photo domain.PhotoDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.photos[photo.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != domain.PhotoPending {
		return repository.ErrConflict
	}
	r.photos[photo.ID] = photo
	r.updates++
	return nil
}

type fakeObjectStore struct{}

func (fakeObjectStore) PresignedURL(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	return "https://objects.test/" + key + "?sig=1", nil
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func approvedUser(id, username, password string, roles ...domain.Role) domain.User {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	approval := domain.ApprovedState("admin", created)
	return domain.ReconstituteUser(id, username, "hashed:"+password, approval, domain.NewRoleSet(roles...), created)
}

func pendingUser(id, username, password string) domain.User {
	created := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	return domain.ReconstituteUser(id, username, "hashed:"+password, domain.PendingState(), nil, created)
}
