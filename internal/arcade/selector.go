package arcade

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ListPlayableAndRandomize picks up to requestCount machines of game for the
// actor to play. At most maxPlayingCount of them come from machines that
// already have a live session today. Manager-owned machines are only used
// once player-owned supply is exhausted, and the returned order is shuffled
// independently of how machines were picked.
//
// An empty result is not an error.
func (s *Service) ListPlayableAndRandomize(ctx context.Context, actor Actor, game string, requestCount, maxPlayingCount int) ([]ArcadeMachine, error) {
	info, ok := s.catalog.Game(game)
	if !ok {
		return nil, invalidArgument("unknown game %q", game)
	}
	if maxPlayingCount < 0 {
		return nil, invalidArgument("max playing count must be >= 0")
	}
	if requestCount <= maxPlayingCount {
		return nil, invalidArgument("request count %d must be greater than max playing count %d", requestCount, maxPlayingCount)
	}

	start, end := s.dayWindow()
	base := CandidateQuery{
		Game:              info.Key,
		PlayerID:          actor.UserID,
		ManagerUserID:     s.managerUserID,
		WindowStart:       start,
		WindowEnd:         end,
		DailyMaxPlayCount: info.DailyMaxPlayCount,
	}

	var playing, idle []Candidate
	g, gctx := errgroup.WithContext(ctx)
	if maxPlayingCount > 0 {
		g.Go(func() error {
			q := base
			q.Playing = true
			q.Limit = maxPlayingCount
			var err error
			playing, err = s.store.ListPlayableCandidates(gctx, q)
			return err
		})
	}
	g.Go(func() error {
		q := base
		q.Playing = false
		q.Limit = requestCount
		var err error
		idle, err = s.store.ListPlayableCandidates(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unhandled("list playable candidates", err)
	}

	ranked := make([]Candidate, 0, len(playing)+len(idle))
	ranked = append(ranked, playing...)
	ranked = append(ranked, idle...)
	ids := pickCandidates(ranked, requestCount, maxPlayingCount)
	if len(ids) == 0 {
		return []ArcadeMachine{}, nil
	}

	machines, err := s.store.GetArcadeMachines(ctx, ids)
	if err != nil {
		return nil, unhandled("load playable arcade machines", err)
	}
	s.shuffle(machines)
	s.log.Debug("playable arcade machines selected",
		"game", game,
		"requested", requestCount,
		"playing_candidates", len(playing),
		"idle_candidates", len(idle),
		"selected", len(machines),
	)
	return machines, nil
}

// pickCandidates truncates the ranked list to requestCount and then
// re-applies the playing quota, skipping duplicates.
func pickCandidates(ranked []Candidate, requestCount, maxPlayingCount int) []string {
	if len(ranked) > requestCount {
		ranked = ranked[:requestCount]
	}
	ids := make([]string, 0, len(ranked))
	seen := make(map[string]struct{}, len(ranked))
	playing := 0
	for _, c := range ranked {
		if len(ids) >= requestCount {
			break
		}
		if _, dup := seen[c.ArcadeMachineID]; dup {
			continue
		}
		if c.Playing {
			if playing >= maxPlayingCount {
				continue
			}
			playing++
		}
		seen[c.ArcadeMachineID] = struct{}{}
		ids = append(ids, c.ArcadeMachineID)
	}
	return ids
}
