// Package memstore is an in-memory arcade.Store for tests. It enforces the
// same storage-level rules as the Postgres store: unique slots checked at
// commit, non-negative balances, and version predicates on machine writes.
package memstore

import (
	"context"
	"fmt"
	mathrand "math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"akiverse/internal/arcade"
)

type state struct {
	users       map[string]arcade.User
	machines    map[string]arcade.ArcadeMachine
	gameCenters map[string]arcade.GameCenter
	sessions    map[string]arcade.PlaySession
	plays       map[string]arcade.Play
	parts       map[string]arcade.ArcadePart
	dismantles  map[string]arcade.Dismantle
}

func newState() *state {
	return &state{
		users:       map[string]arcade.User{},
		machines:    map[string]arcade.ArcadeMachine{},
		gameCenters: map[string]arcade.GameCenter{},
		sessions:    map[string]arcade.PlaySession{},
		plays:       map[string]arcade.Play{},
		parts:       map[string]arcade.ArcadePart{},
		dismantles:  map[string]arcade.Dismantle{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Values are replaced rather than mutated in place, so a shallow copy of
// each map is enough.
func (st *state) clone() *state {
	return &state{
		users:       cloneMap(st.users),
		machines:    cloneMap(st.machines),
		gameCenters: cloneMap(st.gameCenters),
		sessions:    cloneMap(st.sessions),
		plays:       cloneMap(st.plays),
		parts:       cloneMap(st.parts),
		dismantles:  cloneMap(st.dismantles),
	}
}

type Store struct {
	mu   sync.Mutex
	st   *state
	rand arcade.Rand
	now  func() time.Time
}

type Option func(*Store)

func WithRand(r arcade.Rand) Option {
	return func(s *Store) { s.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		st:   newState(),
		rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) PutUser(u arcade.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

func (s *Store) PutArcadeMachine(m arcade.ArcadeMachine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.machines[m.ID] = m
}

func (s *Store) PutGameCenter(g arcade.GameCenter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.gameCenters[g.ID] = g
}

func (s *Store) PutPlaySession(p arcade.PlaySession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.sessions[p.ID] = p
}

func (s *Store) PutPlay(p arcade.Play) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.plays[p.ID] = p
}

// User returns the stored user for assertions.
func (s *Store) User(id string) (arcade.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	return u, ok
}

// ArcadeMachine returns the stored machine, destroyed or not.
func (s *Store) ArcadeMachine(id string) (arcade.ArcadeMachine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.machines[id]
	return m, ok
}

func (s *Store) ArcadeParts(userID string) []arcade.ArcadePart {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []arcade.ArcadePart
	for _, p := range s.st.parts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func (s *Store) Dismantles() []arcade.Dismantle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]arcade.Dismantle, 0, len(s.st.dismantles))
	for _, d := range s.st.dismantles {
		out = append(out, d)
	}
	return out
}

func (s *Store) GetUser(_ context.Context, id string) (arcade.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return arcade.User{}, arcade.ErrRecordNotFound
	}
	return u, nil
}

func (s *Store) GetArcadeMachine(_ context.Context, id string) (arcade.ArcadeMachine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.machines[id]
	if !ok || m.DestroyedAt != nil {
		return arcade.ArcadeMachine{}, arcade.ErrRecordNotFound
	}
	return m, nil
}

func (s *Store) GetArcadeMachines(_ context.Context, ids []string) ([]arcade.ArcadeMachine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]arcade.ArcadeMachine, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		m, ok := s.st.machines[id]
		if !ok || m.DestroyedAt != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) GetGameCenter(_ context.Context, id string) (arcade.GameCenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.st.gameCenters[id]
	if !ok {
		return arcade.GameCenter{}, arcade.ErrRecordNotFound
	}
	return g, nil
}

func (s *Store) InstalledPositions(_ context.Context, gameCenterID string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, m := range s.st.machines {
		if m.DestroyedAt != nil || m.GameCenterID == nil || *m.GameCenterID != gameCenterID || m.Position == nil {
			continue
		}
		out = append(out, *m.Position)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) CountActivePlaySessions(_ context.Context, arcadeMachineID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.st.sessions {
		if p.ArcadeMachineID == arcadeMachineID && p.State != arcade.SessionFinished {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListPlayableCandidates(_ context.Context, q arcade.CandidateQuery) ([]arcade.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.st.machines))
	for id := range s.st.machines {
		ids = append(ids, id)
	}
	// Map iteration order is not a shuffle; sort first so the seeded rand
	// alone decides the order.
	slices.Sort(ids)

	var out []arcade.Candidate
	for _, id := range ids {
		m := s.st.machines[id]
		if m.DestroyedAt != nil || m.Game != q.Game || m.State != arcade.CustodyInAkiverse {
			continue
		}
		owner := ""
		if m.UserID != nil {
			owner = *m.UserID
		}
		ownedByPlayer := owner != "" && owner == q.PlayerID
		ownedByManager := owner != "" && owner == q.ManagerUserID
		if !m.Installed() && !ownedByPlayer && !ownedByManager {
			continue
		}
		if m.FeverExhausted() {
			continue
		}
		if s.st.hasLiveSession(m.ID, q.WindowStart, q.WindowEnd) != q.Playing {
			continue
		}
		if !ownedByPlayer && s.st.playCount(q.PlayerID, m.ID, q.WindowStart, q.WindowEnd) >= q.DailyMaxPlayCount {
			continue
		}
		out = append(out, arcade.Candidate{
			ArcadeMachineID: m.ID,
			Playing:         q.Playing,
			ManagerOwned:    ownedByManager,
		})
	}

	for i := len(out) - 1; i > 0; i-- {
		j := s.rand.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	slices.SortStableFunc(out, func(a, b arcade.Candidate) int {
		switch {
		case a.ManagerOwned == b.ManagerOwned:
			return 0
		case a.ManagerOwned:
			return 1
		default:
			return -1
		}
	})
	if q.Limit >= 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func (st *state) hasLiveSession(arcadeMachineID string, start, end time.Time) bool {
	for _, p := range st.sessions {
		if p.ArcadeMachineID != arcadeMachineID {
			continue
		}
		if p.State != arcade.SessionReady && p.State != arcade.SessionPlaying {
			continue
		}
		if inWindow(p.CreatedAt, start, end) {
			return true
		}
	}
	return false
}

func (st *state) playCount(playerID, arcadeMachineID string, start, end time.Time) int {
	n := 0
	for _, play := range st.plays {
		if play.EndedAt == nil || !inWindow(play.CreatedAt, start, end) {
			continue
		}
		sess, ok := st.sessions[play.PlaySessionID]
		if !ok || sess.PlayerID != playerID || sess.ArcadeMachineID != arcadeMachineID {
			continue
		}
		n++
	}
	return n
}

// InTx holds the store lock for the whole of fn, so fn must only use tx.
func (s *Store) InTx(ctx context.Context, fn func(tx arcade.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := work.checkUniqueSlots(); err != nil {
		return err
	}
	s.st = work
	return nil
}

// TransitionCustody moves every id from one custody state to another, or
// none of them. Installed machines never change custody.
func (s *Store) TransitionCustody(_ context.Context, ids []string, from, to arcade.CustodyState, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	now := s.now()
	for _, id := range ids {
		m, ok := work.machines[id]
		if !ok || m.State != from || m.Installed() {
			return arcade.ErrStaleVersion
		}
		m.State = to
		m.Version++
		m.UpdatedAt = now
		work.machines[id] = m
	}
	s.st = work
	return nil
}

func (st *state) checkUniqueSlots() error {
	type slot struct {
		gameCenterID string
		position     int
	}
	taken := make(map[slot]string)
	for id, m := range st.machines {
		if m.GameCenterID == nil || m.Position == nil {
			continue
		}
		k := slot{*m.GameCenterID, *m.Position}
		if other, dup := taken[k]; dup {
			return fmt.Errorf("%w: arcade machines %s and %s share position %d", arcade.ErrUniqueViolation, other, id, k.position)
		}
		taken[k] = id
	}
	return nil
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) machine(id string, version int64) (arcade.ArcadeMachine, error) {
	m, ok := t.st.machines[id]
	if !ok || m.DestroyedAt != nil || m.Version != version {
		return arcade.ArcadeMachine{}, arcade.ErrStaleVersion
	}
	return m, nil
}

func (t *tx) save(m arcade.ArcadeMachine) arcade.ArcadeMachine {
	m.Version++
	m.UpdatedAt = t.now()
	t.st.machines[m.ID] = m
	return m
}

func (t *tx) InstallArcadeMachine(_ context.Context, in arcade.InstallWrite) (arcade.ArcadeMachine, error) {
	m, err := t.machine(in.ArcadeMachineID, in.Version)
	if err != nil {
		return m, err
	}
	gcID, pos, at := in.GameCenterID, in.Position, in.InstalledAt
	m.GameCenterID = &gcID
	m.Position = &pos
	m.InstalledAt = &at
	m.AutoRenewLease = in.AutoRenewLease
	return t.save(m), nil
}

func (t *tx) UninstallArcadeMachine(_ context.Context, id string, version int64) (arcade.ArcadeMachine, error) {
	m, err := t.machine(id, version)
	if err != nil {
		return m, err
	}
	m.GameCenterID = nil
	m.Position = nil
	m.InstalledAt = nil
	return t.save(m), nil
}

func (t *tx) SetAutoRenewLease(_ context.Context, id string, autoRenew bool, version int64) (arcade.ArcadeMachine, error) {
	m, err := t.machine(id, version)
	if err != nil {
		return m, err
	}
	m.AutoRenewLease = autoRenew
	return t.save(m), nil
}

func (t *tx) DestroyArcadeMachine(_ context.Context, id string, at time.Time, version int64) (arcade.ArcadeMachine, error) {
	m, err := t.machine(id, version)
	if err != nil {
		return m, err
	}
	m.DestroyedAt = &at
	return t.save(m), nil
}

func (t *tx) adjust(userID string, c arcade.Currency, delta decimal.Decimal) error {
	u, ok := t.st.users[userID]
	if !ok {
		return arcade.ErrRecordNotFound
	}
	next := u.Balance(c).Add(delta)
	if next.IsNegative() {
		return arcade.ErrNegativeBalance
	}
	if c == arcade.CurrencyAkv {
		u.AkvBalance = next
	} else {
		u.TerasBalance = next
	}
	u.UpdatedAt = t.now()
	t.st.users[userID] = u
	return nil
}

func (t *tx) IncrementBalance(_ context.Context, userID string, c arcade.Currency, amount decimal.Decimal) error {
	return t.adjust(userID, c, amount)
}

func (t *tx) DecrementBalance(_ context.Context, userID string, c arcade.Currency, amount decimal.Decimal) error {
	return t.adjust(userID, c, amount.Neg())
}

func (t *tx) CreateDismantle(_ context.Context, d arcade.Dismantle) error {
	if _, dup := t.st.dismantles[d.ID]; dup {
		return arcade.ErrUniqueViolation
	}
	t.st.dismantles[d.ID] = d
	return nil
}

func (t *tx) CreateArcadeParts(_ context.Context, parts []arcade.ArcadePart) error {
	for _, p := range parts {
		if _, dup := t.st.parts[p.ID]; dup {
			return arcade.ErrUniqueViolation
		}
		t.st.parts[p.ID] = p
	}
	return nil
}
