// Package ledger is the double-entry money ledger backing the engine. Every
// entry point commits one balanced journal batch; the sum of all accounts is
// zero at all times, so contract cash is always exactly the negated sum of
// the external accounts. Pending withdrawals, bonds and jury pools are plain
// accounts, which makes the sweep-protection math a sum over sub-types
// instead of bespoke bookkeeping.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AccountScope is the top-level account namespace.
type AccountScope uint8

const (
	ScopeUser AccountScope = iota
	ScopeMarket
	ScopeExternal
)

// AccountSubType identifies the account purpose within a scope.
type AccountSubType uint8

const (
	// Market sub-types.
	SubTypePool AccountSubType = iota
	SubTypeBondEscrow
	SubTypeJuryPool

	// User sub-types. Pull-pattern pending balances: credited by state
	// transitions, drained only by the owner's withdrawal call.
	SubTypePendingBonds
	SubTypeCreatorFees
	SubTypeJuryFees // per (user, market)

	// External sub-types. Negative balances here represent cash that has
	// entered the contract; positive represent cash pushed out.
	SubTypeExternalFunds
	SubTypeExternalTreasury
)

func (st AccountSubType) String() string {
	switch st {
	case SubTypePool:
		return "pool"
	case SubTypeBondEscrow:
		return "bond_escrow"
	case SubTypeJuryPool:
		return "jury_pool"
	case SubTypePendingBonds:
		return "pending_bonds"
	case SubTypeCreatorFees:
		return "creator_fees"
	case SubTypeJuryFees:
		return "jury_fees"
	case SubTypeExternalFunds:
		return "funds"
	case SubTypeExternalTreasury:
		return "treasury"
	default:
		return "unknown"
	}
}

// AccountKey identifies a single native-currency account.
// MarketID is zero for accounts not tied to a market; Addr is the zero
// address for market and external accounts.
type AccountKey struct {
	Scope    AccountScope
	Addr     common.Address
	SubType  AccountSubType
	MarketID uint64
}

// UserAccount returns a key for a user's pending balance. Market-scoped user
// balances (jury fees) carry the market id; the rest use zero.
func UserAccount(addr common.Address, subType AccountSubType, marketID uint64) AccountKey {
	return AccountKey{Scope: ScopeUser, Addr: addr, SubType: subType, MarketID: marketID}
}

// MarketAccount returns a key for a per-market account.
func MarketAccount(marketID uint64, subType AccountSubType) AccountKey {
	return AccountKey{Scope: ScopeMarket, SubType: subType, MarketID: marketID}
}

// ExternalAccount returns a key for an external counterparty account.
func ExternalAccount(subType AccountSubType) AccountKey {
	return AccountKey{Scope: ScopeExternal, SubType: subType}
}

// AccountPath renders a deterministic human-readable path, used for logging
// and for the persisted journal rows.
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case ScopeUser:
		if k.MarketID != 0 {
			return fmt.Sprintf("user:%s:%s:%d", k.Addr.Hex(), k.SubType, k.MarketID)
		}
		return fmt.Sprintf("user:%s:%s", k.Addr.Hex(), k.SubType)
	case ScopeMarket:
		return fmt.Sprintf("market:%d:%s", k.MarketID, k.SubType)
	case ScopeExternal:
		return fmt.Sprintf("external:%s", k.SubType)
	default:
		return "invalid"
	}
}
