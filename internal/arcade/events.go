package arcade

import "time"

type EventKind string

const (
	EventInstalled         EventKind = "ARCADE_MACHINE_INSTALLED"
	EventUninstalled       EventKind = "ARCADE_MACHINE_UNINSTALLED"
	EventForcedUninstalled EventKind = "ARCADE_MACHINE_FORCED_UNINSTALLED"
)

// Event is produced by a committed lifecycle transition and delivered after
// the fact. Delivery failures never affect the transition.
type Event struct {
	Kind            EventKind `json:"kind"`
	ArcadeMachineID string    `json:"arcade_machine_id"`
	GameCenterID    string    `json:"game_center_id"`
	ActorID         string    `json:"actor_id"`
	Recipients      []string  `json:"recipients"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func newMachineEvent(kind EventKind, actor Actor, m ArcadeMachine, gc GameCenter, at time.Time) Event {
	return Event{
		Kind:            kind,
		ArcadeMachineID: m.ID,
		GameCenterID:    gc.ID,
		ActorID:         actor.UserID,
		Recipients:      recipients(m.UserID, gc.UserID),
		OccurredAt:      at,
	}
}

func recipients(ids ...*string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == nil || *id == "" {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		out = append(out, *id)
	}
	return out
}
