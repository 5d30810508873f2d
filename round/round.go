// Package round implements the quadratic-funding settlement built on the
// MACI engine: token contributions become voice credits, sign-ups and
// messages flow through the engine, and after tallying the round computes a
// capital-constrained allocation and pays out commitment-verified claims.
package round

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/maci"
	"github.com/clrfund/maci-node/storage"
	"github.com/clrfund/maci-node/types"
)

var (
	// MaxVoiceCredits caps the voice credits representable in a round. The
	// voice credit factor is derived so the maximum contribution maps onto
	// it.
	MaxVoiceCredits = new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)
	// MaxContributionTokens is the maximum contribution in whole tokens.
	MaxContributionTokens = new(big.Int).Exp(big.NewInt(10), big.NewInt(4), nil)
	// AlphaPrecision is the fixed-point scale of the allocation factor.
	AlphaPrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// Config for a FundingRound.
type Config struct {
	Owner       common.Address
	Coordinator common.Address
	// Address is the round's own token account, holding contributions and
	// matching funds.
	Address common.Address

	Token      TokenLedger
	Recipients RecipientResolver
	Storage    *storage.Storage
}

// FundingRound drives one quadratic funding round. It implements
// maci.EligibilityGate and maci.CreditSource, so the engine's sign-up
// delegates eligibility and initial balances back to the contribution
// records.
type FundingRound struct {
	mu sync.Mutex

	owner       common.Address
	coordinator common.Address
	address     common.Address

	token      TokenLedger
	recipients RecipientResolver
	stg        *storage.Storage
	engine     *maci.Engine

	startTime             time.Time
	voiceCreditFactor     *big.Int
	maxContributionAmount *big.Int
}

// New creates a FundingRound. The voice credit factor is fixed at
// construction: the maximum token contribution maps to MaxVoiceCredits, with
// a floor of 1 to avoid division by zero for low-decimal tokens.
func New(cfg Config) (*FundingRound, error) {
	if cfg.Token == nil || cfg.Recipients == nil || cfg.Storage == nil {
		return nil, fmt.Errorf("missing round collaborators")
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(cfg.Token.Decimals())), nil)
	maxContribution := new(big.Int).Mul(MaxContributionTokens, unit)
	factor := new(big.Int).Div(maxContribution, MaxVoiceCredits)
	if factor.Sign() == 0 {
		factor = big.NewInt(1)
	}
	r := &FundingRound{
		owner:                 cfg.Owner,
		coordinator:           cfg.Coordinator,
		address:               cfg.Address,
		token:                 cfg.Token,
		recipients:            cfg.Recipients,
		stg:                   cfg.Storage,
		startTime:             time.Now(),
		voiceCreditFactor:     factor,
		maxContributionAmount: maxContribution,
	}
	log.Infow("funding round created",
		"owner", cfg.Owner.Hex(),
		"coordinator", cfg.Coordinator.Hex(),
		"voiceCreditFactor", factor.String())
	return r, nil
}

// SetEngine attaches the MACI engine. Must be called once before any
// contribution.
func (r *FundingRound) SetEngine(engine *maci.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engine = engine
}

// Engine returns the attached MACI engine.
func (r *FundingRound) Engine() *maci.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine
}

// VoiceCreditFactor returns the token-to-voice-credit conversion factor.
func (r *FundingRound) VoiceCreditFactor() *big.Int {
	return new(big.Int).Set(r.voiceCreditFactor)
}

// Contribute converts amount into voice credits and drives a sign-up in the
// engine, with the contribution record acting as both the gate payload and
// the credit source. Strictly once per address. All-or-nothing: a rejected
// sign-up leaves no contribution behind.
func (r *FundingRound) Contribute(caller common.Address, pubKey types.PubKey, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine == nil {
		return fmt.Errorf("engine is not attached")
	}
	meta, err := r.stg.RoundMeta()
	if err != nil {
		return err
	}
	if meta.Cancelled {
		return ErrRoundCancelled
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroContribution
	}
	if amount.Cmp(r.maxContributionAmount) > 0 {
		return ErrContributionTooLarge
	}
	if _, err := r.stg.Contributor(caller); err == nil {
		return ErrDuplicateContribution
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	voiceCredits := new(big.Int).Div(amount, r.voiceCreditFactor)
	status := &storage.ContributorStatus{
		VoiceCredits: (*types.BigInt)(voiceCredits),
		IsRegistered: false,
	}
	if err := r.stg.SetContributor(caller, status); err != nil {
		return err
	}
	if err := r.token.Transfer(caller, r.address, amount); err != nil {
		r.rollbackContribution(caller, nil, nil)
		return fmt.Errorf("token transfer failed: %w", err)
	}

	// The engine calls back into Register and GetCredits below.
	if _, err := r.engine.SignUp(caller, pubKey, caller.Bytes(), caller.Bytes()); err != nil {
		r.rollbackContribution(caller, amount, &caller)
		if errors.Is(err, maci.ErrSignUpClosed) {
			return ErrContributionPhaseOver
		}
		return err
	}

	meta.ContributorCount++
	if err := r.stg.SetRoundMeta(meta); err != nil {
		return err
	}
	log.Debugw("contribution accepted",
		"contributor", caller.Hex(),
		"amount", amount.String(),
		"voiceCredits", voiceCredits.String())
	return nil
}

// rollbackContribution undoes a partially applied contribution. refund, if
// not nil, is returned to refundTo.
func (r *FundingRound) rollbackContribution(caller common.Address, refund *big.Int, refundTo *common.Address) {
	if err := r.stg.DeleteContributor(caller); err != nil {
		log.Errorw(err, "failed to roll back contributor record")
	}
	if refund != nil && refundTo != nil {
		if err := r.token.Transfer(r.address, *refundTo, refund); err != nil {
			log.Errorw(err, "failed to refund contribution")
		}
	}
}

// Register implements maci.EligibilityGate: a caller is eligible if it has
// contributed and has not registered yet. The flag flips exactly once.
func (r *FundingRound) Register(caller common.Address, _ []byte) error {
	status, err := r.stg.Contributor(caller)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotContributor
		}
		return err
	}
	if status.IsRegistered {
		return ErrAlreadyRegistered
	}
	updated := &storage.ContributorStatus{
		VoiceCredits: status.VoiceCredits,
		IsRegistered: true,
	}
	return r.stg.SetContributor(caller, updated)
}

// GetCredits implements maci.CreditSource: the initial balance is the voice
// credits bought by the contribution.
func (r *FundingRound) GetCredits(caller common.Address, _ []byte) (*big.Int, error) {
	status, err := r.stg.Contributor(caller)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotContributor
		}
		return nil, err
	}
	return status.VoiceCredits.MathBigInt(), nil
}

// PublishTallyHash records the content address of the off-chain tally file.
// Coordinator-only; must happen before finalization.
func (r *FundingRound) PublishTallyHash(caller common.Address, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.coordinator {
		return ErrNotCoordinator
	}
	if hash == "" {
		return fmt.Errorf("tally hash is empty")
	}
	meta, err := r.stg.RoundMeta()
	if err != nil {
		return err
	}
	if meta.Finalized {
		return ErrRoundFinalized
	}
	meta.TallyHash = hash
	if err := r.stg.SetRoundMeta(meta); err != nil {
		return err
	}
	log.Infow("tally hash published", "hash", hash)
	return nil
}

// TallyHash returns the published tally hash, empty if none.
func (r *FundingRound) TallyHash() (string, error) {
	meta, err := r.stg.RoundMeta()
	if err != nil {
		return "", err
	}
	return meta.TallyHash, nil
}

// IsFinalized reports whether the round has been finalized.
func (r *FundingRound) IsFinalized() bool {
	meta, err := r.stg.RoundMeta()
	if err != nil {
		return false
	}
	return meta.Finalized
}

// IsCancelled reports whether the round has been cancelled.
func (r *FundingRound) IsCancelled() bool {
	meta, err := r.stg.RoundMeta()
	if err != nil {
		return false
	}
	return meta.Cancelled
}
