package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reuf/lending-system/internal/core/domain"
	"github.com/reuf/lending-system/internal/core/ports"
	"github.com/reuf/lending-system/internal/pkg/keylock"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock { return &fixedClock{now: testNow} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append(domain.Roles(nil), u.Roles...)
	if u.TokenExpiration != nil {
		exp := *u.TokenExpiration
		c.TokenExpiration = &exp
	}
	return &c
}

// ── users ────────────────────────────────────────────────────────────────────

type stubUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User

	// setTokenCalls counts successful SetToken writes.
	setTokenCalls int
	// forceCollisions makes the next n CountTokenCollisions calls report a hit.
	forceCollisions int
	// beforeUpdate and beforeSetToken run under the store lock ahead of the
	// write, standing in for another writer committing first. Each runs once.
	beforeUpdate   func(users map[int64]*domain.User)
	beforeSetToken func(users map[int64]*domain.User)
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[int64]*domain.User)}
}

func (r *stubUserRepo) seed(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = cloneUser(u)
	return u
}

func (r *stubUserRepo) get(id int64) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email || u.Sciper == user.Sciper {
			return nil, domain.Errorf(domain.ErrConflict, "duplicate user")
		}
	}
	r.nextID++
	c := cloneUser(user)
	c.ID = r.nextID
	r.users[c.ID] = c
	return cloneUser(c), nil
}

func (r *stubUserRepo) Update(_ context.Context, id int64, changes ports.UserChanges) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeUpdate != nil {
		r.beforeUpdate(r.users)
		r.beforeUpdate = nil
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if changes.Roles != nil && !u.Roles.Equal(changes.ExpectedRoles) {
		return nil, domain.Errorf(domain.ErrConflict, "roles changed concurrently")
	}
	if changes.Username != nil {
		u.Username = *changes.Username
	}
	if changes.Email != nil {
		u.Email = *changes.Email
	}
	if changes.Sciper != nil {
		u.Sciper = *changes.Sciper
	}
	if changes.Unit != nil {
		u.Unit = *changes.Unit
	}
	if changes.Roles != nil {
		u.Roles = append(domain.Roles(nil), (*changes.Roles)...)
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByToken(_ context.Context, token string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Token == token {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context, page, limit int) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *stubUserRepo) CountTokenCollisions(_ context.Context, token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forceCollisions > 0 {
		r.forceCollisions--
		return 1, nil
	}
	var n int64
	for _, u := range r.users {
		if u.Token == token {
			n++
		}
	}
	return n, nil
}

func (r *stubUserRepo) SetToken(_ context.Context, id int64, previous, token string, expiration time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeSetToken != nil {
		r.beforeSetToken(r.users)
		r.beforeSetToken = nil
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.Token != previous {
		return domain.Errorf(domain.ErrConflict, "token changed concurrently")
	}
	for _, other := range r.users {
		if other.ID != id && other.Token == token {
			return domain.Errorf(domain.ErrConflict, "duplicate token")
		}
	}
	u.Token, u.TokenExpiration = token, &expiration
	r.setTokenCalls++
	return nil
}

func (r *stubUserRepo) SetTokenExpiration(_ context.Context, id int64, expiration time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.TokenExpiration = &expiration
	return nil
}

func (r *stubUserRepo) ExpireAllTokens(_ context.Context, now, expiration time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.TokenValidAt(now) {
			exp := expiration
			u.TokenExpiration = &exp
			n++
		}
	}
	return n, nil
}

// ── items ────────────────────────────────────────────────────────────────────

type stubItemRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*domain.Item
}

func newStubItemRepo() *stubItemRepo {
	return &stubItemRepo{items: make(map[int64]*domain.Item)}
}

func cloneItem(i *domain.Item) *domain.Item {
	c := *i
	c.AccessControlList = append(domain.Roles(nil), i.AccessControlList...)
	return &c
}

func (r *stubItemRepo) Create(_ context.Context, item *domain.Item) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.items {
		if i.Name == item.Name {
			return nil, domain.Errorf(domain.ErrConflict, "duplicate item name")
		}
	}
	r.nextID++
	c := cloneItem(item)
	c.ID = r.nextID
	r.items[c.ID] = c
	return cloneItem(c), nil
}

func (r *stubItemRepo) Update(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return domain.ErrItemNotFound
	}
	r.items[item.ID] = cloneItem(item)
	return nil
}

func (r *stubItemRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *stubItemRepo) FindByID(_ context.Context, id int64) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return cloneItem(i), nil
}

func (r *stubItemRepo) List(_ context.Context, f ports.ListItemsFilter) ([]*domain.Item, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Item
	for _, i := range r.items {
		if f.VisibleTo.ContainsAll(i.AccessControlList) {
			matched = append(matched, cloneItem(i))
		}
	}
	sort.Slice(matched, func(a, b int) bool { return matched[a].ID < matched[b].ID })
	return paginate(matched, f.Page, f.Limit), int64(len(matched)), nil
}

// ── borrowings ───────────────────────────────────────────────────────────────

type stubBorrowingRepo struct {
	mu         sync.Mutex
	nextID     int64
	borrowings map[int64]*domain.Borrowing
}

func newStubBorrowingRepo() *stubBorrowingRepo {
	return &stubBorrowingRepo{borrowings: make(map[int64]*domain.Borrowing)}
}

func (r *stubBorrowingRepo) Create(_ context.Context, b *domain.Borrowing) (*domain.Borrowing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := *b
	c.ID = r.nextID
	r.borrowings[c.ID] = &c
	out := c
	return &out, nil
}

func (r *stubBorrowingRepo) FindByID(_ context.Context, id int64) (*domain.Borrowing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.borrowings[id]
	if !ok {
		return nil, domain.ErrBorrowingNotFound
	}
	c := *b
	return &c, nil
}

func (r *stubBorrowingRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.borrowings[id]; !ok {
		return domain.ErrBorrowingNotFound
	}
	delete(r.borrowings, id)
	return nil
}

func (r *stubBorrowingRepo) List(_ context.Context, f ports.ListBorrowingsFilter) ([]*domain.Borrowing, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Borrowing
	for _, b := range r.borrowings {
		if f.UserID != nil && (b.UserID == nil || *b.UserID != *f.UserID) {
			continue
		}
		if f.ItemID != nil && (b.ItemID == nil || *b.ItemID != *f.ItemID) {
			continue
		}
		c := *b
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return paginate(matched, f.Page, f.Limit), int64(len(matched)), nil
}

func (r *stubBorrowingRepo) DetachUser(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.borrowings {
		if b.UserID != nil && *b.UserID == userID {
			b.UserID = nil
		}
	}
	return nil
}

func (r *stubBorrowingRepo) DetachItem(_ context.Context, itemID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.borrowings {
		if b.ItemID != nil && *b.ItemID == itemID {
			b.ItemID = nil
		}
	}
	return nil
}

// ── notifications ────────────────────────────────────────────────────────────

type recordingQueue struct {
	mu   sync.Mutex
	sent []ports.Notification
	full bool
}

func (q *recordingQueue) Enqueue(n ports.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.sent = append(q.sent, n)
	return true
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sent)
}

func paginate[T any](all []T, page, limit int) []T {
	if limit <= 0 {
		return all
	}
	skip := (page - 1) * limit
	if skip >= len(all) {
		return nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end]
}

type testEnv struct {
	clock      *fixedClock
	users      *stubUserRepo
	items      *stubItemRepo
	borrowings *stubBorrowingRepo
	queue      *recordingQueue

	creds     *CredentialStore
	policy    *AccessPolicy
	tokens    *TokenService
	auth      *AuthService
	userSvc   *UserService
	itemSvc   *ItemService
	borrowSvc *BorrowingService
}

func newTestEnv() *testEnv {
	e := &testEnv{
		clock:      newFixedClock(),
		users:      newStubUserRepo(),
		items:      newStubItemRepo(),
		borrowings: newStubBorrowingRepo(),
		queue:      &recordingQueue{},
		creds:      NewCredentialStore(testIterations),
	}
	log := zerolog.Nop()
	e.policy = NewAccessPolicy(AccessConfig{AdminRecipients: []string{"admins@example.com"}}, e.clock)
	e.tokens = NewTokenService(e.users, keylock.New(), e.clock, nil, TokenConfig{}, log)
	e.auth = NewAuthService(e.users, e.creds, e.tokens, e.policy, log)
	e.userSvc = NewUserService(e.users, e.borrowings, e.creds, e.policy, e.queue, e.clock, log)
	e.itemSvc = NewItemService(e.items, e.borrowings, e.policy, log)
	validator := NewBorrowValidator(e.items, e.policy, nil, e.clock)
	e.borrowSvc = NewBorrowingService(e.borrowings, e.users, validator, e.policy, log)
	return e
}

// addUser stores a user with password "password" and the given roles.
func (e *testEnv) addUser(username string, roles ...domain.Role) *domain.User {
	u := &domain.User{
		Username: username,
		Email:    username + "@example.com",
		Sciper:   100000 + e.users.nextID + 1,
		Roles:    append(domain.Roles{}, roles...),
	}
	if err := e.creds.SetPassword(u, "password"); err != nil {
		panic(err)
	}
	return e.users.seed(u)
}

func (e *testEnv) addItem(name string, acl ...domain.Role) *domain.Item {
	item, err := e.items.Create(context.Background(), &domain.Item{
		Name:              name,
		Quantity:          5,
		AccessControlList: append(domain.Roles{}, acl...),
	})
	if err != nil {
		panic(err)
	}
	return item
}
