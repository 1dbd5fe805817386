// Package memory implements the repository unit of work in process memory.
// It backs the memory storage driver and the service and dispatcher tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"earnbot/internal/model"
	"earnbot/internal/repository"
)

type state struct {
	users     map[int64]*model.User
	userOrder []int64
	withdraws map[int64]*model.WithdrawRequest
	tasks     map[int64]*model.TaskSubmission
	settings  map[string]string
	journal   []model.JournalEntry
	lastWID   int64
	lastTID   int64
}

func newState() *state {
	return &state{
		users:     make(map[int64]*model.User),
		withdraws: make(map[int64]*model.WithdrawRequest),
		tasks:     make(map[int64]*model.TaskSubmission),
		settings:  make(map[string]string),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:     make(map[int64]*model.User, len(s.users)),
		userOrder: append([]int64(nil), s.userOrder...),
		withdraws: make(map[int64]*model.WithdrawRequest, len(s.withdraws)),
		tasks:     make(map[int64]*model.TaskSubmission, len(s.tasks)),
		settings:  make(map[string]string, len(s.settings)),
		journal:   append([]model.JournalEntry(nil), s.journal...),
		lastWID:   s.lastWID,
		lastTID:   s.lastTID,
	}
	for id, u := range s.users {
		c.users[id] = copyUser(u)
	}
	for id, w := range s.withdraws {
		c.withdraws[id] = copyWithdraw(w)
	}
	for id, t := range s.tasks {
		c.tasks[id] = copyTask(t)
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	return c
}

func copyUser(u *model.User) *model.User {
	c := *u
	if u.ReferBy != nil {
		ref := *u.ReferBy
		c.ReferBy = &ref
	}
	return &c
}

func copyWithdraw(w *model.WithdrawRequest) *model.WithdrawRequest {
	c := *w
	if w.DecidedAt != nil {
		at := *w.DecidedAt
		c.DecidedAt = &at
	}
	return &c
}

func copyTask(t *model.TaskSubmission) *model.TaskSubmission {
	c := *t
	if t.DecidedAt != nil {
		at := *t.DecidedAt
		c.DecidedAt = &at
	}
	return &c
}

// Store is a repository.UnitOfWork kept in memory.
// Transactions are serialized and work on a private copy that replaces the
// committed state only when fn succeeds.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ repository.UnitOfWork = (*Store)(nil)

// NewStore creates an empty Store seeded with the given settings.
func NewStore(settings map[string]string) *Store {
	st := newState()
	for k, v := range settings {
		st.settings[k] = v
	}
	return &Store{st: st, now: time.Now}
}

// SetClock replaces the time source used for created_at and decided_at.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Do runs fn against a private copy and commits it when fn returns nil.
func (s *Store) Do(ctx context.Context, fn func(tx repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&view{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) autocommit() *view { return &view{store: s} }

// Users returns the autocommit user store.
func (s *Store) Users() repository.UserStore { return userRepo{s.autocommit()} }

// Withdraws returns the autocommit withdrawal store.
func (s *Store) Withdraws() repository.WithdrawStore { return withdrawRepo{s.autocommit()} }

// Tasks returns the autocommit task store.
func (s *Store) Tasks() repository.TaskStore { return taskRepo{s.autocommit()} }

// Settings returns the autocommit settings store.
func (s *Store) Settings() repository.SettingStore { return settingRepo{s.autocommit()} }

// Journal returns the autocommit journal store.
func (s *Store) Journal() repository.JournalStore { return journalRepo{s.autocommit()} }

// view is either bound to a transaction copy (st) or to the store itself,
// in which case every call takes the store mutex.
type view struct {
	store *Store
	st    *state
	now   func() time.Time
}

func (v *view) begin() (*state, func() time.Time, func()) {
	if v.store == nil {
		return v.st, v.now, func() {}
	}
	v.store.mu.Lock()
	return v.store.st, v.store.now, v.store.mu.Unlock
}

func (v *view) Users() repository.UserStore         { return userRepo{v} }
func (v *view) Withdraws() repository.WithdrawStore { return withdrawRepo{v} }
func (v *view) Tasks() repository.TaskStore         { return taskRepo{v} }
func (v *view) Settings() repository.SettingStore   { return settingRepo{v} }
func (v *view) Journal() repository.JournalStore    { return journalRepo{v} }

type userRepo struct{ v *view }

func (r userRepo) Ensure(_ context.Context, userID int64) (*model.User, bool, error) {
	st, now, done := r.v.begin()
	defer done()

	if u, ok := st.users[userID]; ok {
		return copyUser(u), false, nil
	}
	u := &model.User{UserID: userID, CreatedAt: now()}
	st.users[userID] = u
	st.userOrder = append(st.userOrder, userID)
	return copyUser(u), true, nil
}

func (r userRepo) Get(_ context.Context, userID int64) (*model.User, error) {
	st, _, done := r.v.begin()
	defer done()

	u, ok := st.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return copyUser(u), nil
}

// GetForUpdate is Get; transactions are already serialized.
func (r userRepo) GetForUpdate(ctx context.Context, userID int64) (*model.User, error) {
	return r.Get(ctx, userID)
}

func (r userRepo) AddBalance(_ context.Context, userID int64, delta int64) (*model.User, error) {
	st, _, done := r.v.begin()
	defer done()

	u, ok := st.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	balance, err := repository.CheckedAdd(u.Balance, delta)
	if err != nil {
		return nil, err
	}
	u.Balance = balance
	return copyUser(u), nil
}

func (r userRepo) SetBalance(_ context.Context, userID int64, balance int64) (*model.User, error) {
	st, _, done := r.v.begin()
	defer done()

	u, ok := st.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.Balance = balance
	return copyUser(u), nil
}

func (r userRepo) SetReferrer(_ context.Context, userID int64, referrerID int64) (bool, error) {
	st, _, done := r.v.begin()
	defer done()

	u, ok := st.users[userID]
	if !ok || u.HasReferrer() {
		return false, nil
	}
	ref := referrerID
	u.ReferBy = &ref
	return true, nil
}

func (r userRepo) AddReferralReward(_ context.Context, userID int64, amount int64, joined int64) (*model.User, error) {
	st, _, done := r.v.begin()
	defer done()

	u, ok := st.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	balance, err := repository.CheckedAdd(u.Balance, amount)
	if err != nil {
		return nil, err
	}
	earn, err := repository.CheckedAdd(u.RefEarn, amount)
	if err != nil {
		return nil, err
	}
	u.Balance, u.RefEarn = balance, earn
	u.RefCount += joined
	return copyUser(u), nil
}

func (r userRepo) Summary(_ context.Context, limit int) (*model.UserSummary, error) {
	st, _, done := r.v.begin()
	defer done()

	summary := &model.UserSummary{TotalUsers: int64(len(st.users))}
	for _, u := range st.users {
		summary.TotalBalance += u.Balance
	}
	for i := len(st.userOrder) - 1; i >= 0 && len(summary.Latest) < limit; i-- {
		summary.Latest = append(summary.Latest, copyUser(st.users[st.userOrder[i]]))
	}
	return summary, nil
}

type withdrawRepo struct{ v *view }

func (r withdrawRepo) Create(_ context.Context, userID int64, method model.Method, number string, amount int64) (*model.WithdrawRequest, error) {
	st, now, done := r.v.begin()
	defer done()

	if _, ok := st.users[userID]; !ok {
		return nil, repository.ErrUserNotFound
	}
	st.lastWID++
	w := &model.WithdrawRequest{
		ID:        st.lastWID,
		UserID:    userID,
		Method:    method,
		Number:    number,
		Amount:    amount,
		Status:    model.StatusPending,
		CreatedAt: now(),
	}
	st.withdraws[w.ID] = w
	return copyWithdraw(w), nil
}

func (r withdrawRepo) Get(_ context.Context, id int64) (*model.WithdrawRequest, error) {
	st, _, done := r.v.begin()
	defer done()

	w, ok := st.withdraws[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	return copyWithdraw(w), nil
}

func (r withdrawRepo) GetForUpdate(ctx context.Context, id int64) (*model.WithdrawRequest, error) {
	return r.Get(ctx, id)
}

func (r withdrawRepo) SetStatus(_ context.Context, id int64, status model.Status) (*model.WithdrawRequest, error) {
	st, now, done := r.v.begin()
	defer done()

	w, ok := st.withdraws[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	at := now()
	w.Status = status
	w.DecidedAt = &at
	return copyWithdraw(w), nil
}

func (r withdrawRepo) Recent(_ context.Context, limit int) ([]*model.WithdrawRequest, error) {
	st, _, done := r.v.begin()
	defer done()

	ids := make([]int64, 0, len(st.withdraws))
	for id := range st.withdraws {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	var out []*model.WithdrawRequest
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, copyWithdraw(st.withdraws[id]))
	}
	return out, nil
}

type taskRepo struct{ v *view }

func (r taskRepo) Create(_ context.Context, userID int64, username, fileID, fileName string) (*model.TaskSubmission, error) {
	st, now, done := r.v.begin()
	defer done()

	if _, ok := st.users[userID]; !ok {
		return nil, repository.ErrUserNotFound
	}
	st.lastTID++
	t := &model.TaskSubmission{
		ID:        st.lastTID,
		UserID:    userID,
		Username:  username,
		FileID:    fileID,
		FileName:  fileName,
		Status:    model.StatusPending,
		CreatedAt: now(),
	}
	st.tasks[t.ID] = t
	return copyTask(t), nil
}

func (r taskRepo) Get(_ context.Context, id int64) (*model.TaskSubmission, error) {
	st, _, done := r.v.begin()
	defer done()

	t, ok := st.tasks[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	return copyTask(t), nil
}

func (r taskRepo) GetForUpdate(ctx context.Context, id int64) (*model.TaskSubmission, error) {
	return r.Get(ctx, id)
}

func (r taskRepo) SetStatus(_ context.Context, id int64, status model.Status) (*model.TaskSubmission, error) {
	st, now, done := r.v.begin()
	defer done()

	t, ok := st.tasks[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	at := now()
	t.Status = status
	t.DecidedAt = &at
	return copyTask(t), nil
}

func (r taskRepo) Pending(_ context.Context, limit int) ([]*model.PendingTask, error) {
	st, _, done := r.v.begin()
	defer done()

	ids := make([]int64, 0, len(st.tasks))
	for id, t := range st.tasks {
		if t.Status == model.StatusPending {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	var out []*model.PendingTask
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		t := st.tasks[id]
		var balance int64
		if u, ok := st.users[t.UserID]; ok {
			balance = u.Balance
		}
		out = append(out, &model.PendingTask{TaskSubmission: *copyTask(t), Balance: balance})
	}
	return out, nil
}

type settingRepo struct{ v *view }

func (r settingRepo) Get(_ context.Context, key string) (string, error) {
	st, _, done := r.v.begin()
	defer done()

	value, ok := st.settings[key]
	if !ok {
		return "", repository.ErrSettingNotFound
	}
	return value, nil
}

func (r settingRepo) Set(_ context.Context, key, value string) error {
	st, _, done := r.v.begin()
	defer done()

	st.settings[key] = value
	return nil
}

type journalRepo struct{ v *view }

func (r journalRepo) Append(_ context.Context, userID, amount int64, kind model.EntryKind, ref int64) (*model.JournalEntry, error) {
	st, now, done := r.v.begin()
	defer done()

	if _, ok := st.users[userID]; !ok {
		return nil, repository.ErrUserNotFound
	}
	e := model.JournalEntry{
		ID:        int64(len(st.journal)) + 1,
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		Ref:       ref,
		CreatedAt: now(),
	}
	st.journal = append(st.journal, e)
	return &e, nil
}

func (r journalRepo) ForUser(_ context.Context, userID int64, limit int) ([]*model.JournalEntry, error) {
	return r.filter(limit, func(e model.JournalEntry) bool { return e.UserID == userID })
}

func (r journalRepo) ForUserAndKind(_ context.Context, userID int64, kind model.EntryKind, limit int) ([]*model.JournalEntry, error) {
	return r.filter(limit, func(e model.JournalEntry) bool { return e.UserID == userID && e.Kind == kind })
}

// filter walks the journal newest first.
func (r journalRepo) filter(limit int, keep func(model.JournalEntry) bool) ([]*model.JournalEntry, error) {
	st, _, done := r.v.begin()
	defer done()

	var out []*model.JournalEntry
	for i := len(st.journal) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(st.journal[i]) {
			e := st.journal[i]
			out = append(out, &e)
		}
	}
	return out, nil
}
