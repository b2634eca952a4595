package arcade

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Install places an arcade machine into the first free slot of a game
// center and moves the installation fee from the actor to the game center
// owner in the same transaction.
func (s *Service) Install(ctx context.Context, actor Actor, arcadeMachineID, gameCenterID string, autoRenewLease bool) (Transition, error) {
	var out Transition

	m, err := s.loadArcadeMachine(ctx, arcadeMachineID)
	if err != nil {
		return out, err
	}
	if !actor.Owns(m) {
		return out, permissionDenied("arcade machine %s is not owned by actor", m.ID)
	}
	if m.State != CustodyInAkiverse {
		return out, illegalState("arcade machine %s is %s", m.ID, m.State)
	}
	if m.Installed() {
		return out, illegalState("arcade machine %s is already installed", m.ID)
	}
	if !s.catalog.GameEnabled(m.Game) {
		return out, invalidArgument("game %s is disabled", m.Game)
	}
	if m.FeverExhausted() {
		return out, illegalState("arcade machine %s has no fever spark remaining", m.ID)
	}

	gc, err := s.loadGameCenter(ctx, gameCenterID)
	if err != nil {
		return out, err
	}
	if gc.State != CustodyInAkiverse {
		return out, illegalState("game center %s is %s", gc.ID, gc.State)
	}
	if gc.UserID == nil {
		return out, illegalState("game center %s has no owner", gc.ID)
	}
	if !gc.PlacementAllowed {
		return out, illegalState("game center %s is not recruiting arcade machines", gc.ID)
	}
	capacity, ok := s.catalog.Capacity(gc.Size)
	if !ok {
		return out, unhandled("resolve game center capacity", fmt.Errorf("unknown size %q", gc.Size))
	}
	positions, err := s.store.InstalledPositions(ctx, gc.ID)
	if err != nil {
		return out, unhandled("load installed positions", err)
	}
	if len(positions) >= capacity {
		return out, illegalState("game center %s is full", gc.ID)
	}

	fee := s.fees.InstallationFee()
	if !actor.Owns(gc) {
		u, err := s.loadUser(ctx, actor.UserID)
		if err != nil {
			return out, err
		}
		if u.TerasBalance.LessThan(fee) {
			return out, invalidArgument("insufficient teras balance: need %s, have %s", fee, u.TerasBalance)
		}
	}

	installedAt := s.now()
	write := InstallWrite{
		ArcadeMachineID: m.ID,
		GameCenterID:    gc.ID,
		Position:        NextPosition(positions),
		InstalledAt:     installedAt,
		AutoRenewLease:  autoRenewLease,
		Version:         m.Version,
	}
	gcOwnerID := *gc.UserID
	err = s.store.InTx(ctx, func(tx Tx) error {
		updated, err := tx.InstallArcadeMachine(ctx, write)
		if err != nil {
			return err
		}
		// Self-installs also issue both legs; the net change is zero.
		if err := tx.IncrementBalance(ctx, gcOwnerID, CurrencyTeras, fee); err != nil {
			return err
		}
		if err := tx.DecrementBalance(ctx, actor.UserID, CurrencyTeras, fee); err != nil {
			return err
		}
		out.ArcadeMachine = updated
		return nil
	})
	if err != nil {
		return Transition{}, commitError("install", err)
	}

	out.Events = []Event{newMachineEvent(EventInstalled, actor, out.ArcadeMachine, gc, installedAt)}
	s.log.Info("arcade machine installed",
		"arcade_machine_id", m.ID,
		"game_center_id", gc.ID,
		"position", write.Position,
		"fee", fee.String(),
	)
	return out, nil
}

// Uninstall frees the machine's slot. Either the machine owner or the owner
// of the game center it sits in may call it. Fees are not refunded.
func (s *Service) Uninstall(ctx context.Context, actor Actor, arcadeMachineID string) (Transition, error) {
	var out Transition

	m, err := s.loadArcadeMachine(ctx, arcadeMachineID)
	if err != nil {
		return out, err
	}
	var gc GameCenter
	if m.Installed() {
		gc, err = s.loadGameCenter(ctx, *m.GameCenterID)
		if err != nil {
			return out, err
		}
	}
	ownsMachine := actor.Owns(m)
	if !ownsMachine && !(m.Installed() && actor.Owns(gc)) {
		return out, permissionDenied("actor may not uninstall arcade machine %s", m.ID)
	}
	if !m.Installed() {
		return out, illegalState("arcade machine %s is not installed", m.ID)
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		updated, err := tx.UninstallArcadeMachine(ctx, m.ID, m.Version)
		if err != nil {
			return err
		}
		out.ArcadeMachine = updated
		return nil
	})
	if err != nil {
		return Transition{}, commitError("uninstall", err)
	}

	kind := EventUninstalled
	if !ownsMachine {
		kind = EventForcedUninstalled
	}
	out.Events = []Event{newMachineEvent(kind, actor, m, gc, s.now())}
	s.log.Info("arcade machine uninstalled",
		"arcade_machine_id", m.ID,
		"game_center_id", gc.ID,
		"forced", !ownsMachine,
	)
	return out, nil
}

// Update changes the lease auto-renewal flag under the version read.
func (s *Service) Update(ctx context.Context, actor Actor, arcadeMachineID string, autoRenewLease bool) (Transition, error) {
	var out Transition

	m, err := s.loadArcadeMachine(ctx, arcadeMachineID)
	if err != nil {
		return out, err
	}
	if !actor.Owns(m) {
		return out, permissionDenied("arcade machine %s is not owned by actor", m.ID)
	}
	err = s.store.InTx(ctx, func(tx Tx) error {
		updated, err := tx.SetAutoRenewLease(ctx, m.ID, autoRenewLease, m.Version)
		if err != nil {
			return err
		}
		out.ArcadeMachine = updated
		return nil
	})
	if err != nil {
		return Transition{}, commitError("update", err)
	}
	return out, nil
}

// Withdraw starts moving in-world machines to the owner's wallet. The batch
// is all or nothing.
func (s *Service) Withdraw(ctx context.Context, actor Actor, ids ...string) (Batch, error) {
	machines, err := s.loadOwnedBatch(ctx, actor, ids)
	if err != nil {
		return Batch{}, err
	}
	for _, m := range machines {
		if !s.catalog.GameEnabled(m.Game) {
			return Batch{}, illegalState("game %s of arcade machine %s is disabled", m.Game, m.ID)
		}
		if m.State != CustodyInAkiverse {
			return Batch{}, illegalState("arcade machine %s is %s", m.ID, m.State)
		}
		if m.Installed() {
			return Batch{}, illegalState("arcade machine %s is installed", m.ID)
		}
	}
	if err := s.custody.Withdraw(ctx, machines); err != nil {
		return Batch{}, custodyError("withdraw", err)
	}
	s.log.Info("arcade machines withdrawing", "count", len(machines), "user_id", actor.UserID)
	return s.reload(ctx, machines)
}

// Deposit starts moving wallet-held machines back into the world. hash is
// the on-chain transfer reference.
func (s *Service) Deposit(ctx context.Context, actor Actor, hash string, ids ...string) (Batch, error) {
	if hash == "" {
		return Batch{}, invalidArgument("deposit hash is required")
	}
	machines, err := s.loadOwnedBatch(ctx, actor, ids)
	if err != nil {
		return Batch{}, err
	}
	for _, m := range machines {
		if m.State != CustodyInWallet {
			return Batch{}, illegalState("arcade machine %s is %s", m.ID, m.State)
		}
	}
	if err := s.custody.Deposit(ctx, hash, machines); err != nil {
		return Batch{}, custodyError("deposit", err)
	}
	s.log.Info("arcade machines depositing", "count", len(machines), "user_id", actor.UserID, "hash", hash)
	return s.reload(ctx, machines)
}

// Dismantle salvages a fully charged machine into a ROM and two cabinet
// parts, each cabinet rolling independently for a grade up. An installed
// machine is uninstalled first.
//
// Events from an auto-uninstall are kept in the result even when the
// dismantle itself fails, since that uninstall has already committed.
func (s *Service) Dismantle(ctx context.Context, actor Actor, arcadeMachineID string, currency Currency) (DismantleResult, error) {
	var out DismantleResult
	if !currency.Valid() {
		return out, invalidArgument("unknown currency %q", currency)
	}

	m, err := s.loadArcadeMachine(ctx, arcadeMachineID)
	if err != nil {
		return out, err
	}
	active, err := s.store.CountActivePlaySessions(ctx, m.ID)
	if err != nil {
		return out, unhandled("count play sessions", err)
	}
	if !actor.Owns(m) {
		return out, permissionDenied("arcade machine %s is not owned by actor", m.ID)
	}
	if m.State != CustodyInAkiverse {
		return out, illegalState("arcade machine %s is %s", m.ID, m.State)
	}
	if active > 0 {
		return out, illegalState("now playing")
	}
	if !m.MegaSpark() {
		return out, illegalState("no mega spark")
	}
	fee := s.fees.DismantleFee(currency)
	u, err := s.loadUser(ctx, actor.UserID)
	if err != nil {
		return out, err
	}
	if u.Balance(currency).LessThan(fee) {
		return out, illegalState("insufficient %s balance", currency)
	}

	upper, ok := s.catalog.CabinetGrade(m.UpperCabinetSubCategory)
	if !ok {
		return out, unhandled("resolve upper cabinet grade", fmt.Errorf("unknown sub category %q", m.UpperCabinetSubCategory))
	}
	lower, ok := s.catalog.CabinetGrade(m.LowerCabinetSubCategory)
	if !ok {
		return out, unhandled("resolve lower cabinet grade", fmt.Errorf("unknown sub category %q", m.LowerCabinetSubCategory))
	}
	upperResult := s.gradeUp(upper.SubCategory, upper.GradeUp)
	lowerResult := s.gradeUp(lower.SubCategory, lower.GradeUp)

	version := m.Version
	if m.Installed() {
		t, err := s.Uninstall(ctx, actor, m.ID)
		if err != nil {
			return out, err
		}
		version = t.ArcadeMachine.Version
		out.Events = append(out.Events, t.Events...)
	}

	now := s.now()
	newPart := func(category PartCategory, subCategory string) ArcadePart {
		return ArcadePart{
			ID:          uuid.NewString(),
			Category:    category,
			SubCategory: subCategory,
			UserID:      actor.UserID,
			State:       CustodyInAkiverse,
			CreatedAt:   now,
		}
	}
	rom := newPart(PartRom, m.Game)
	upperPart := newPart(PartUpperCabinet, upperResult.CreateCabinetGrade)
	lowerPart := newPart(PartLowerCabinet, lowerResult.CreateCabinetGrade)

	var destroyed ArcadeMachine
	err = s.store.InTx(ctx, func(tx Tx) error {
		d, err := tx.DestroyArcadeMachine(ctx, m.ID, now, version)
		if err != nil {
			return err
		}
		if err := tx.DecrementBalance(ctx, actor.UserID, currency, fee); err != nil {
			return err
		}
		if err := tx.CreateDismantle(ctx, Dismantle{
			ID:               uuid.NewString(),
			ArcadeMachineID:  m.ID,
			UserID:           actor.UserID,
			CurrencyType:     currency,
			Fee:              fee,
			FeverSparkRemain: m.FeverSparkRemain,
			CreatedAt:        now,
		}); err != nil {
			return err
		}
		if err := tx.CreateArcadeParts(ctx, []ArcadePart{rom, upperPart, lowerPart}); err != nil {
			return err
		}
		destroyed = d
		return nil
	})
	if err != nil {
		return out, commitError("dismantle", err)
	}

	if err := s.custody.Burn(ctx, destroyed); err != nil {
		s.log.Error("custody burn failed", "arcade_machine_id", m.ID, "err", err)
	}

	out.Rom = rom
	out.UpperCabinet = upperPart
	out.UpperCabinetGradeUp = upperResult.IsGradeUp
	out.LowerCabinet = lowerPart
	out.LowerCabinetGradeUp = lowerResult.IsGradeUp
	s.log.Info("arcade machine dismantled",
		"arcade_machine_id", m.ID,
		"currency", currency,
		"upper_grade_up", upperResult.IsGradeUp,
		"lower_grade_up", lowerResult.IsGradeUp,
	)
	return out, nil
}

func (s *Service) reload(ctx context.Context, machines []ArcadeMachine) (Batch, error) {
	ids := make([]string, len(machines))
	for i, m := range machines {
		ids[i] = m.ID
	}
	fresh, err := s.store.GetArcadeMachines(ctx, ids)
	if err != nil {
		return Batch{}, unhandled("reload arcade machines", err)
	}
	return Batch{ArcadeMachines: fresh}, nil
}

func custodyError(op string, err error) error {
	if errors.Is(err, ErrStaleVersion) {
		return conflict("%s: custody state changed concurrently", op)
	}
	return unhandled(op, err)
}
