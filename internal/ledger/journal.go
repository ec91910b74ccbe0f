package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// JournalType classifies the purpose of a journal entry.
type JournalType int32

const (
	JournalTypeTradeNet JournalType = iota
	JournalTypePlatformFee
	JournalTypeCreatorFee
	JournalTypeResolutionFee
	JournalTypeBondPost
	JournalTypeBondRefund
	JournalTypeBondAward
	JournalTypeJuryCarve
	JournalTypeProposerReward
	JournalTypeClaimPayout
	JournalTypeJuryFeeClaim
	JournalTypeEmergencyRefund
	JournalTypeWithdrawal
	JournalTypeSweep
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeTradeNet:
		return "trade_net"
	case JournalTypePlatformFee:
		return "platform_fee"
	case JournalTypeCreatorFee:
		return "creator_fee"
	case JournalTypeResolutionFee:
		return "resolution_fee"
	case JournalTypeBondPost:
		return "bond_post"
	case JournalTypeBondRefund:
		return "bond_refund"
	case JournalTypeBondAward:
		return "bond_award"
	case JournalTypeJuryCarve:
		return "jury_carve"
	case JournalTypeProposerReward:
		return "proposer_reward"
	case JournalTypeClaimPayout:
		return "claim_payout"
	case JournalTypeJuryFeeClaim:
		return "jury_fee_claim"
	case JournalTypeEmergencyRefund:
		return "emergency_refund"
	case JournalTypeWithdrawal:
		return "withdrawal"
	case JournalTypeSweep:
		return "sweep"
	default:
		return "unknown"
	}
}

// Journal is a single double-entry transfer: Amount moves from the credit
// account to the debit account. Amount is always positive.
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	EventRef      string // idempotent reference to the source operation
	Sequence      int64
	DebitAccount  AccountKey
	CreditAccount AccountKey
	Amount        *big.Int
	JournalType   JournalType
	Timestamp     int64 // epoch microseconds, from the injected clock
}

// Batch groups the journals of one committed engine operation.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Add appends a journal to the batch, stamping batch identity.
func (b *Batch) Add(jt JournalType, debit, credit AccountKey, amount *big.Int) {
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        new(big.Int).Set(amount),
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

// Validate ensures the batch is well-formed. Each entry is a balanced
// transfer by construction, so sigma debits == sigma credits holds per entry;
// multi-leg operations use multiple entries under one batch id.
func (b *Batch) Validate() error {
	for _, j := range b.Journals {
		if j.Amount == nil || j.Amount.Sign() <= 0 {
			return fmt.Errorf("journal %s has non-positive amount", j.JournalID)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
	}
	return nil
}

// NewBatch creates an empty batch for one engine operation.
func NewBatch(eventRef string, sequence, timestamp int64) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  sequence,
		Timestamp: timestamp,
	}
}
