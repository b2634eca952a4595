package arcade

import (
	"context"
	"errors"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"
)

type Service struct {
	store   Store
	custody Custody
	catalog *Catalog
	fees    FeeCalculator
	log     *slog.Logger

	managerUserID string
	loc           *time.Location
	now           func() time.Time

	mu   sync.Mutex
	rand Rand
}

type Option func(*Service)

// WithManagerUserID sets the platform account whose machines are only
// offered once player-owned supply runs out.
func WithManagerUserID(id string) Option {
	return func(s *Service) { s.managerUserID = id }
}

// WithLocation sets the reference region used to bound "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand replaces the random source. The service serializes access to it.
func WithRand(r Rand) Option {
	return func(s *Service) {
		if r != nil {
			s.rand = r
		}
	}
}

func NewService(store Store, custody Custody, catalog *Catalog, fees FeeCalculator, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	s := &Service{
		store:   store,
		custody: custody,
		catalog: catalog,
		fees:    fees,
		log:     logger,
		loc:     time.UTC,
		now:     time.Now,
		rand:    mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Catalog() *Catalog { return s.catalog }

func (s *Service) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

func (s *Service) gradeUp(current string, rule GradeUpRule) GradeUpResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GradeUp(s.rand, current, rule)
}

func (s *Service) shuffle(machines []ArcadeMachine) {
	for i := len(machines) - 1; i > 0; i-- {
		j := s.intn(i + 1)
		machines[i], machines[j] = machines[j], machines[i]
	}
}

// dayWindow returns [midnight, next midnight) of the current day in the
// reference region.
func (s *Service) dayWindow() (time.Time, time.Time) {
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *Service) loadArcadeMachine(ctx context.Context, id string) (ArcadeMachine, error) {
	m, err := s.store.GetArcadeMachine(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return m, notFound("arcade machine %s", id)
	}
	if err != nil {
		return m, unhandled("load arcade machine", err)
	}
	return m, nil
}

func (s *Service) loadGameCenter(ctx context.Context, id string) (GameCenter, error) {
	gc, err := s.store.GetGameCenter(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return gc, notFound("game center %s", id)
	}
	if err != nil {
		return gc, unhandled("load game center", err)
	}
	return gc, nil
}

func (s *Service) loadUser(ctx context.Context, id string) (User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return u, notFound("user %s", id)
	}
	if err != nil {
		return u, unhandled("load user", err)
	}
	return u, nil
}

// loadOwnedBatch resolves every id or none. Duplicate ids collapse.
func (s *Service) loadOwnedBatch(ctx context.Context, actor Actor, ids []string) ([]ArcadeMachine, error) {
	if len(ids) == 0 {
		return nil, invalidArgument("at least one arcade machine id is required")
	}
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	machines, err := s.store.GetArcadeMachines(ctx, unique)
	if err != nil {
		return nil, unhandled("load arcade machines", err)
	}
	if len(machines) != len(unique) {
		found := make(map[string]struct{}, len(machines))
		for _, m := range machines {
			found[m.ID] = struct{}{}
		}
		for _, id := range unique {
			if _, ok := found[id]; !ok {
				return nil, notFound("arcade machine %s", id)
			}
		}
	}
	for _, m := range machines {
		if !actor.Owns(m) {
			return nil, permissionDenied("arcade machine %s is not owned by actor", m.ID)
		}
	}
	return machines, nil
}
