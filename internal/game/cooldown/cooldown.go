// Package cooldown implements the reusable time-lock check gating
// repeatable actions such as searching and exercising.
package cooldown

import (
	"fmt"
	"time"

	"github.com/mortemhouse/mortem/internal/ledger"
)

// Status reports one gate evaluation.
type Status struct {
	OnCooldown bool
	Remaining  time.Duration
}

// ActiveError reports a gated action refused because its cooldown has
// not elapsed. Callers unwrap it with errors.As to phrase the wait.
type ActiveError struct {
	Action    string
	Remaining time.Duration
}

func (e *ActiveError) Error() string {
	return fmt.Sprintf("action %q on cooldown: %s remaining", e.Action, e.Remaining)
}

// Evaluate computes the gate arithmetic from a last-used Unix timestamp.
// OnCooldown holds iff elapsed < cooldown; Remaining is the shortfall.
// Granularity is whole seconds, matching the stored timestamps.
//
// Postcondition: Remaining is 0 when OnCooldown is false.
func Evaluate(lastUsed int64, cooldown time.Duration, now time.Time) Status {
	cdSecs := int64(cooldown / time.Second)
	elapsed := now.Unix() - lastUsed
	if elapsed >= cdSecs {
		return Status{}
	}
	return Status{OnCooldown: true, Remaining: time.Duration(cdSecs-elapsed) * time.Second}
}

// Gate checks gated actions against the ledger's cooldown timestamps.
type Gate struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

// NewGate returns a Gate reading timestamps from l under the system
// clock.
//
// Precondition: l must be non-nil.
func NewGate(l *ledger.Ledger) *Gate {
	return NewGateWithClock(l, time.Now)
}

// NewGateWithClock returns a Gate with an injected clock.
//
// Precondition: l and now must be non-nil.
func NewGateWithClock(l *ledger.Ledger, now func() time.Time) *Gate {
	return &Gate{ledger: l, now: now}
}

// Check reports whether (playerID, action) is still cooling down under
// d. The gate never sets the cooldown; committing the timestamp at the
// moment of commit is the gated action's job, and happens even when the
// action's outcome is a failure-to-find.
func (g *Gate) Check(playerID, action string, d time.Duration) (Status, error) {
	last, err := g.ledger.Cooldown(playerID, action)
	if err != nil {
		return Status{}, err
	}
	return Evaluate(last, d, g.now()), nil
}
