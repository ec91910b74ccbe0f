package gov

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotSigner        = errors.New("gov: caller is not a signer")
	ErrUnknownAction    = errors.New("gov: unknown action id")
	ErrActionExpired    = errors.New("gov: action expired")
	ErrActionExecuted   = errors.New("gov: action already executed")
	ErrAlreadyConfirmed = errors.New("gov: signer already confirmed")
)

// Pending is an action awaiting confirmations.
type Pending struct {
	ID         uint64
	Action     Action
	Proposer   common.Address
	ProposedAt time.Time
	Confirmed  map[common.Address]bool
	Executed   bool
}

// Confirmations returns the current confirmation count.
func (p *Pending) Confirmations() int {
	return len(p.Confirmed)
}

// Queue is the multisig action queue. Not goroutine-safe; the engine
// serializes access under its lock.
type Queue struct {
	signers []common.Address
	expiry  time.Duration
	nextID  uint64
	pending map[uint64]*Pending
}

// NewQueue creates a queue over a fixed signer set. Membership changes only
// via a ReplaceSigner action.
func NewQueue(signers []common.Address, expiry time.Duration) (*Queue, error) {
	if len(signers) == 0 {
		return nil, errors.New("gov: empty signer set")
	}
	seen := make(map[common.Address]bool, len(signers))
	for _, s := range signers {
		if s == (common.Address{}) {
			return nil, ErrZeroSigner
		}
		if seen[s] {
			return nil, ErrDuplicateSigner
		}
		seen[s] = true
	}
	return &Queue{
		signers: append([]common.Address(nil), signers...),
		expiry:  expiry,
		nextID:  1,
		pending: make(map[uint64]*Pending),
	}, nil
}

// IsSigner reports membership.
func (q *Queue) IsSigner(addr common.Address) bool {
	for _, s := range q.signers {
		if s == addr {
			return true
		}
	}
	return false
}

// Signers returns a copy of the signer set.
func (q *Queue) Signers() []common.Address {
	return append([]common.Address(nil), q.signers...)
}

// Propose queues an action. The proposer's call counts as the first
// confirmation. Returns the action id and whether it is already executable
// (single-signer sets).
func (q *Queue) Propose(signer common.Address, action Action, now time.Time) (uint64, bool, error) {
	if !q.IsSigner(signer) {
		return 0, false, ErrNotSigner
	}
	id := q.nextID
	q.nextID++
	p := &Pending{
		ID:         id,
		Action:     action,
		Proposer:   signer,
		ProposedAt: now,
		Confirmed:  map[common.Address]bool{signer: true},
	}
	q.pending[id] = p
	return id, p.Confirmations() >= action.Threshold(len(q.signers)), nil
}

// Confirm records a signer's confirmation and reports whether the action has
// reached its threshold. Expired actions cannot be confirmed further.
func (q *Queue) Confirm(signer common.Address, id uint64, now time.Time) (*Pending, bool, error) {
	if !q.IsSigner(signer) {
		return nil, false, ErrNotSigner
	}
	p, ok := q.pending[id]
	if !ok {
		return nil, false, ErrUnknownAction
	}
	if p.Executed {
		return nil, false, ErrActionExecuted
	}
	if now.Sub(p.ProposedAt) > q.expiry {
		return nil, false, fmt.Errorf("%w: action %d", ErrActionExpired, id)
	}
	if p.Confirmed[signer] {
		return nil, false, ErrAlreadyConfirmed
	}
	p.Confirmed[signer] = true
	return p, p.Confirmations() >= p.Action.Threshold(len(q.signers)), nil
}

// Execute validates bounds and applies a fully confirmed action. The whole
// action fails without side effects if validation fails, even with enough
// confirmations. Signer replacement mutates the queue's own signer set.
func (q *Queue) Execute(p *Pending, target Target) error {
	if p.Executed {
		return ErrActionExecuted
	}
	if err := p.Action.Validate(); err != nil {
		return fmt.Errorf("action %d invalid: %w", p.ID, err)
	}
	if rs, ok := p.Action.(ReplaceSigner); ok {
		if err := q.replaceSigner(rs.Old, rs.New); err != nil {
			return fmt.Errorf("action %d: %w", p.ID, err)
		}
	} else if err := p.Action.Apply(target); err != nil {
		return fmt.Errorf("action %d: %w", p.ID, err)
	}
	p.Executed = true
	delete(q.pending, p.ID)
	return nil
}

// Get returns a pending action by id.
func (q *Queue) Get(id uint64) (*Pending, bool) {
	p, ok := q.pending[id]
	return p, ok
}

// PendingActions returns all non-executed actions.
func (q *Queue) PendingActions() []*Pending {
	out := make([]*Pending, 0, len(q.pending))
	for _, p := range q.pending {
		out = append(out, p)
	}
	return out
}

func (q *Queue) replaceSigner(old, replacement common.Address) error {
	if q.IsSigner(replacement) {
		return ErrDuplicateSigner
	}
	for i, s := range q.signers {
		if s == old {
			q.signers[i] = replacement
			return nil
		}
	}
	return ErrUnknownOldSigner
}
