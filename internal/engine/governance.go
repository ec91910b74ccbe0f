package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/event"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/gov"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/ledger"
)

// ProposeAction queues a governance action; the proposer's call is the first
// confirmation. Single-signer deployments execute immediately.
func (e *Engine) ProposeAction(signer common.Address, action gov.Action) (uint64, error) {
	const op = "propose_action"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	id, ready, err := e.council.Propose(signer, action, e.now())
	if err != nil {
		e.reject(op, "not_signer")
		return 0, err
	}
	e.commit(op, nil, event.TypeActionProposed, nil, signer, event.GovernanceAction{
		ActionID:      id,
		ActionType:    action.Type(),
		Confirmations: 1,
	})
	if ready {
		p, _ := e.council.Get(id)
		if err := e.executeAction(p, signer); err != nil {
			return id, err
		}
	}
	return id, nil
}

// ConfirmAction records a signer's confirmation and executes the action when
// it crosses its threshold. An execution failure (bounds, duplicate signer)
// leaves the action pending, error returned to the confirming signer.
func (e *Engine) ConfirmAction(signer common.Address, actionID uint64) error {
	const op = "confirm_action"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	p, ready, err := e.council.Confirm(signer, actionID, e.now())
	if err != nil {
		e.reject(op, "rejected")
		return err
	}
	e.commit(op, nil, event.TypeActionConfirmed, nil, signer, event.GovernanceAction{
		ActionID:      p.ID,
		ActionType:    p.Action.Type(),
		Confirmations: p.Confirmations(),
	})
	if !ready {
		return nil
	}
	return e.executeAction(p, signer)
}

// PendingActions exposes the queued governance actions.
func (e *Engine) PendingActions() []*gov.Pending {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.council.PendingActions()
}

func (e *Engine) executeAction(p *gov.Pending, actor common.Address) error {
	action := p.Action
	if err := e.council.Execute(p, govTarget{e}); err != nil {
		e.reject("execute_action", "invalid")
		e.log.Warn().Uint64("action_id", p.ID).Str("type", action.Type()).Err(err).Msg("action execution failed")
		return err
	}
	e.commit("execute_action", nil, event.TypeActionExecuted, nil, actor, event.GovernanceAction{
		ActionID:      p.ID,
		ActionType:    action.Type(),
		Confirmations: p.Confirmations(),
	})
	if rs, ok := action.(gov.ReplaceSigner); ok {
		e.commit("execute_action", nil, event.TypeSignerReplaced, nil, actor, map[string]string{
			"old": rs.Old.Hex(),
			"new": rs.New.Hex(),
		})
	}
	e.log.Info().Uint64("action_id", p.ID).Str("type", action.Type()).Msg("action executed")
	return nil
}

// govTarget adapts the engine for gov.Target. All methods run inside the
// engine lock held by the confirm path; none may re-lock.
type govTarget struct {
	e *Engine
}

func (t govTarget) SetFees(platformBps, creatorBps, resolutionFeeBps uint32) error {
	t.e.params.PlatformFeeBps = platformBps
	t.e.params.CreatorFeeBps = creatorBps
	t.e.params.ResolutionFeeBps = resolutionFeeBps
	return nil
}

func (t govTarget) SetResolutionParams(juryShareBps, bondBps, proposerRewardBps uint32, bondFloor *big.Int) error {
	t.e.params.JuryShareBps = juryShareBps
	t.e.params.BondBps = bondBps
	t.e.params.ProposerRewardBps = proposerRewardBps
	t.e.params.BondFloor = fixedpoint.Clone(bondFloor)
	return nil
}

func (t govTarget) SetPaused(paused bool) {
	e := t.e
	if e.paused == paused {
		return
	}
	e.paused = paused
	e.commit("set_paused", nil, event.TypePauseChanged, nil, common.Address{}, map[string]bool{"paused": paused})
	e.log.Warn().Bool("paused", paused).Msg("pause state changed")
}

// SweepSurplus moves stranded pool dust to the target address. Only pools of
// resolved markets whose winning supply has been fully claimed qualify;
// unresolved pools, bond escrows and jury pools are user funds and never
// move.
func (t govTarget) SweepSurplus(to common.Address) (*big.Int, error) {
	e := t.e
	total := fixedpoint.Zero()
	batch := e.newBatch("sweep:" + to.Hex())
	funds := ledger.ExternalAccount(ledger.SubTypeExternalFunds)
	for _, id := range e.marketOrder {
		m := e.markets[id]
		if !m.Resolved || m.SideSupply(m.Outcome).Sign() != 0 || m.PoolBalance.Sign() <= 0 {
			continue
		}
		batch.Add(ledger.JournalTypeSweep, funds, ledger.MarketAccount(id, ledger.SubTypePool), m.PoolBalance)
		total.Add(total, m.PoolBalance)
		m.PoolBalance = fixedpoint.Zero()
	}
	e.commit("sweep", batch, event.TypeSurplusSwept, nil, to, event.Payout{AmountWei: total.String()})
	e.log.Info().Str("to", to.Hex()).Str("amount", total.String()).Msg("surplus swept")
	return total, nil
}
