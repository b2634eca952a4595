package arcade

import (
	"time"

	"github.com/shopspring/decimal"
)

type CustodyState string

const (
	CustodyInAkiverse       CustodyState = "IN_AKIVERSE"
	CustodyMovingToWallet   CustodyState = "MOVING_TO_WALLET"
	CustodyInWallet         CustodyState = "IN_WALLET"
	CustodyMovingToAkiverse CustodyState = "MOVING_TO_AKIVERSE"
	CustodyBurned           CustodyState = "BURNED"
)

type Currency string

const (
	CurrencyTeras Currency = "TERAS"
	CurrencyAkv   Currency = "AKV"
)

func (c Currency) Valid() bool {
	return c == CurrencyTeras || c == CurrencyAkv
}

type PartCategory string

const (
	PartRom          PartCategory = "ROM"
	PartAccumulator  PartCategory = "ACCUMULATOR"
	PartUpperCabinet PartCategory = "UPPER_CABINET"
	PartLowerCabinet PartCategory = "LOWER_CABINET"
)

type SessionState string

const (
	SessionReady    SessionState = "READY"
	SessionPlaying  SessionState = "PLAYING"
	SessionFinished SessionState = "FINISHED"
)

type User struct {
	ID            string          `json:"id"`
	WalletAddress *string         `json:"wallet_address,omitempty"`
	TerasBalance  decimal.Decimal `json:"teras_balance"`
	AkvBalance    decimal.Decimal `json:"akv_balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Balance returns the balance held in currency c.
func (u User) Balance(c Currency) decimal.Decimal {
	if c == CurrencyAkv {
		return u.AkvBalance
	}
	return u.TerasBalance
}

type ArcadeMachine struct {
	ID                      string       `json:"id"`
	UserID                  *string      `json:"user_id,omitempty"`
	OwnerWalletAddress      *string      `json:"owner_wallet_address,omitempty"`
	State                   CustodyState `json:"state"`
	Game                    string       `json:"game"`
	Energy                  int          `json:"energy"`
	MaxEnergy               int          `json:"max_energy"`
	FeverSparkRemain        *int         `json:"fever_spark_remain,omitempty"`
	GameCenterID            *string      `json:"game_center_id,omitempty"`
	Position                *int         `json:"position,omitempty"`
	InstalledAt             *time.Time   `json:"installed_at,omitempty"`
	AutoRenewLease          bool         `json:"auto_renew_lease"`
	AccumulatorSubCategory  string       `json:"accumulator_sub_category"`
	UpperCabinetSubCategory string       `json:"upper_cabinet_sub_category"`
	LowerCabinetSubCategory string       `json:"lower_cabinet_sub_category"`
	DestroyedAt             *time.Time   `json:"destroyed_at,omitempty"`
	Version                 int64        `json:"version"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
}

func (m ArcadeMachine) OwnerID() *string { return m.UserID }

func (m ArcadeMachine) Installed() bool { return m.GameCenterID != nil }

// FeverExhausted reports a fever counter that has run down to zero. A nil
// counter means fever was never triggered.
func (m ArcadeMachine) FeverExhausted() bool {
	return m.FeverSparkRemain != nil && *m.FeverSparkRemain == 0
}

func (m ArcadeMachine) MegaSpark() bool { return m.Energy == m.MaxEnergy }

type GameCenterSize string

const (
	GameCenterSmall  GameCenterSize = "SMALL"
	GameCenterMedium GameCenterSize = "MEDIUM"
	GameCenterLarge  GameCenterSize = "LARGE"
)

type GameCenter struct {
	ID               string         `json:"id"`
	UserID           *string        `json:"user_id,omitempty"`
	Name             string         `json:"name"`
	Size             GameCenterSize `json:"size"`
	PlacementAllowed bool           `json:"placement_allowed"`
	State            CustodyState   `json:"state"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (g GameCenter) OwnerID() *string { return g.UserID }

type ArcadePart struct {
	ID          string       `json:"id"`
	Category    PartCategory `json:"category"`
	SubCategory string       `json:"sub_category"`
	UserID      string       `json:"user_id"`
	State       CustodyState `json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
}

type Dismantle struct {
	ID               string          `json:"id"`
	ArcadeMachineID  string          `json:"arcade_machine_id"`
	UserID           string          `json:"user_id"`
	CurrencyType     Currency        `json:"currency_type"`
	Fee              decimal.Decimal `json:"fee"`
	FeverSparkRemain *int            `json:"fever_spark_remain,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type PlaySession struct {
	ID                   string       `json:"id"`
	ArcadeMachineID      string       `json:"arcade_machine_id"`
	PlayerID             string       `json:"player_id"`
	ArcadeMachineOwnerID string       `json:"arcade_machine_owner_id"`
	State                SessionState `json:"state"`
	CreatedAt            time.Time    `json:"created_at"`
}

type Play struct {
	ID            string     `json:"id"`
	PlaySessionID string     `json:"play_session_id"`
	CreatedAt     time.Time  `json:"created_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// Owned is anything with a nullable owning-user reference.
type Owned interface {
	OwnerID() *string
}

// Actor is the authenticated caller of a Service operation.
type Actor struct {
	UserID        string
	WalletAddress string
}

// Owns reports whether the actor is the current owner of every entity.
func (a Actor) Owns(entities ...Owned) bool {
	if a.UserID == "" {
		return false
	}
	for _, e := range entities {
		owner := e.OwnerID()
		if owner == nil || *owner != a.UserID {
			return false
		}
	}
	return true
}

// Transition is the committed outcome of a single-machine lifecycle call.
type Transition struct {
	ArcadeMachine ArcadeMachine `json:"arcade_machine"`
	Events        []Event       `json:"-"`
}

// Batch is the committed outcome of a custody transfer.
type Batch struct {
	ArcadeMachines []ArcadeMachine `json:"arcade_machines"`
}

type DismantleResult struct {
	Rom                 ArcadePart `json:"rom"`
	UpperCabinet        ArcadePart `json:"upper_cabinet"`
	UpperCabinetGradeUp bool       `json:"upper_cabinet_grade_up"`
	LowerCabinet        ArcadePart `json:"lower_cabinet"`
	LowerCabinetGradeUp bool       `json:"lower_cabinet_grade_up"`
	Events              []Event    `json:"-"`
}
