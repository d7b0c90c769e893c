package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/user-notification-service/internal/model"
)

// memUserRepo is an in-memory UserRepository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
	now   time.Time

	getErr    error
	createErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users: make(map[uuid.UUID]model.User),
		now:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memUserRepo) tick() time.Time {
	r.now = r.now.Add(time.Millisecond)
	return r.now
}

func (r *memUserRepo) Create(_ context.Context, u *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return nil, model.ErrConflict
		}
	}

	stored := *u
	if stored.Phone != nil && *stored.Phone == "" {
		stored.Phone = nil
	}
	stored.CreatedAt = r.tick()
	stored.UpdatedAt = stored.CreatedAt
	r.users[stored.ID] = stored

	return &stored, nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}

	return &u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}

	return nil, model.ErrNotFound
}

func (r *memUserRepo) List(_ context.Context, params model.ListUsersParams) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })

	if params.Offset >= uint64(len(users)) {
		return []*model.User{}, nil
	}
	users = users[params.Offset:]
	if params.Limit > 0 && params.Limit < uint64(len(users)) {
		users = users[:params.Limit]
	}

	return users, nil
}

func (r *memUserRepo) Update(_ context.Context, id uuid.UUID, params *model.UpdateUserParams) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if params.Email != nil {
		for otherID, other := range r.users {
			if otherID != id && other.Email == *params.Email {
				return nil, model.ErrConflict
			}
		}
		u.Email = *params.Email
	}
	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.Phone != nil {
		u.Phone = params.Phone
		if *params.Phone == "" {
			u.Phone = nil
		}
	}
	u.UpdatedAt = r.tick()
	r.users[id] = u

	return &u, nil
}

func (r *memUserRepo) Delete(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	delete(r.users, id)

	return &u, nil
}

// memNotificationRepo is an in-memory NotificationRepository keyed by message id.
type memNotificationRepo struct {
	mu      sync.Mutex
	records map[string]model.OrderNotification
	err     error
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{records: make(map[string]model.OrderNotification)}
}

func (r *memNotificationRepo) Record(_ context.Context, n *model.OrderNotification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return false, r.err
	}
	if _, ok := r.records[n.MessageID]; ok {
		return false, nil
	}
	n.ReceivedAt = time.Now()
	r.records[n.MessageID] = *n

	return true, nil
}

func (r *memNotificationRepo) ListByUser(_ context.Context, userID uuid.UUID, limit uint64) ([]*model.OrderNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*model.OrderNotification, 0)
	for _, n := range r.records {
		if n.UserID != nil && *n.UserID == userID && uint64(len(result)) < limit {
			result = append(result, &n)
		}
	}

	return result, nil
}

func (r *memNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

// passThroughTx runs fn without a transaction.
type passThroughTx struct {
	calls int
}

func (p *passThroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

func ptr[T any](v T) *T { return &v }
