package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pangivault/core"
	"pangivault/crypto"
	"pangivault/native/vault"
	"pangivault/observability"
	"pangivault/observability/logging"
	"pangivault/services/vaultd/audit"
)

const maxBodyBytes = 1 << 16

type createVaultRequest struct {
	TokenMint     crypto.PublicKey `json:"token_mint"`
	CreatorMint   crypto.PublicKey `json:"creator_mint"`
	RewardRateBps uint16           `json:"reward_rate_bps"`
	LockDuration  int64            `json:"lock_duration"`
}

type amountRequest struct {
	Amount         uint64            `json:"amount,string"`
	CustodyAccount *crypto.PublicKey `json:"custody_account,omitempty"`
}

type claimRequest struct {
	CustodyAccount *crypto.PublicKey `json:"custody_account,omitempty"`
}

type vaultView struct {
	Address                 crypto.PublicKey `json:"address"`
	Authority               crypto.PublicKey `json:"authority"`
	CreatorMint             crypto.PublicKey `json:"creator_mint"`
	TokenMint               crypto.PublicKey `json:"token_mint"`
	CustodyAccount          crypto.PublicKey `json:"custody_account"`
	RewardRateBps           uint16           `json:"reward_rate_bps"`
	LockDuration            int64            `json:"lock_duration"`
	TotalStaked             uint64           `json:"total_staked,string"`
	TotalPenaltiesCollected uint64           `json:"total_penalties_collected,string"`
	CreatedAt               int64            `json:"created_at"`
	LastRewardUpdate        int64            `json:"last_reward_update"`
	IsActive                bool             `json:"is_active"`
}

func newVaultView(v *vault.Vault) vaultView {
	return vaultView{
		Address:                 v.Address,
		Authority:               v.Authority,
		CreatorMint:             v.CreatorMint,
		TokenMint:               v.TokenMint,
		CustodyAccount:          v.CustodyAccount,
		RewardRateBps:           v.RewardRateBps,
		LockDuration:            v.LockDuration,
		TotalStaked:             v.TotalStaked,
		TotalPenaltiesCollected: v.TotalPenaltiesCollected,
		CreatedAt:               v.CreatedAt,
		LastRewardUpdate:        v.LastRewardUpdate,
		IsActive:                v.IsActive,
	}
}

type stakeView struct {
	Vault        crypto.PublicKey `json:"vault"`
	Holder       crypto.PublicKey `json:"holder"`
	Amount       uint64           `json:"amount,string"`
	StakedAt     int64            `json:"staked_at"`
	UnlockAt     int64            `json:"unlock_at"`
	LastClaim    int64            `json:"last_claim"`
	TotalClaimed uint64           `json:"total_claimed,string"`
}

func newStakeView(s *vault.StakeRecord) stakeView {
	return stakeView{
		Vault:        s.Vault,
		Holder:       s.Holder,
		Amount:       s.Amount,
		StakedAt:     s.StakedAt,
		UnlockAt:     s.UnlockAt,
		LastClaim:    s.LastClaim,
		TotalClaimed: s.TotalClaimed,
	}
}

type earlyExitView struct {
	Potential    uint64 `json:"potential,string"`
	Proportional uint64 `json:"proportional,string"`
	Penalty      uint64 `json:"penalty,string"`
	Payout       uint64 `json:"payout,string"`
}

type previewView struct {
	Stake          stakeView     `json:"stake"`
	Phase          string        `json:"phase"`
	AsOf           int64         `json:"as_of"`
	PendingRewards uint64        `json:"pending_rewards,string"`
	EarlyExit      earlyExitView `json:"early_exit"`
	NextClaimAt    int64         `json:"next_claim_at"`
	NextDepositAt  int64         `json:"next_deposit_at"`
}

type fundView struct {
	Vault          crypto.PublicKey `json:"vault"`
	Funder         crypto.PublicKey `json:"funder"`
	Amount         uint64           `json:"amount,string"`
	CustodyBalance uint64           `json:"custody_balance,string"`
}

type depositView struct {
	Stake      stakeView `json:"stake"`
	Amount     uint64    `json:"amount,string"`
	VaultTotal uint64    `json:"vault_total,string"`
}

type withdrawView struct {
	Vault          crypto.PublicKey `json:"vault"`
	Holder         crypto.PublicKey `json:"holder"`
	Amount         uint64           `json:"amount,string"`
	PendingRewards uint64           `json:"pending_rewards,string"`
	PenaltyToPool  uint64           `json:"penalty_to_pool,string"`
	RemainingStake uint64           `json:"remaining_stake,string"`
	EarlyUnlock    bool             `json:"early_unlock"`
	UnlockAt       int64            `json:"unlock_at"`
	DaysEarly      int64            `json:"days_early"`
	WithdrawnAt    int64            `json:"withdrawn_at"`
}

type claimView struct {
	Vault        crypto.PublicKey `json:"vault"`
	Holder       crypto.PublicKey `json:"holder"`
	Amount       uint64           `json:"amount,string"`
	TotalClaimed uint64           `json:"total_claimed,string"`
	ClaimedAt    int64            `json:"claimed_at"`
}

type balanceView struct {
	Owner   crypto.PublicKey `json:"owner"`
	Mint    crypto.PublicKey `json:"mint"`
	Balance uint64           `json:"balance,string"`
}

type reconcileView struct {
	Vault          crypto.PublicKey `json:"vault"`
	TotalStaked    uint64           `json:"total_staked,string"`
	SumOfStakes    uint64           `json:"sum_of_stakes,string"`
	CustodyBalance uint64           `json:"custody_balance,string"`
	Holders        int              `json:"holders"`
	Balanced       bool             `json:"balanced"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		writeJSONError(w, http.StatusBadRequest, "InvalidRequest", string(vault.KindValidation), "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathKey(w http.ResponseWriter, r *http.Request, name string) (crypto.PublicKey, bool) {
	key, err := crypto.DecodePublicKey(chi.URLParam(r, name))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidRequest", string(vault.KindValidation), name+": "+err.Error())
		return crypto.PublicKey{}, false
	}
	return key, true
}

func caller(r *http.Request) crypto.PublicKey {
	principal, _ := PrincipalFromContext(r.Context())
	return principal.Caller
}

// admit charges the caller's quota for a mutating request. Callers refund the
// returned charge when the ledger rejects the request.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, amount uint64) (*quotaCharge, bool) {
	who := caller(r)
	charge, err := s.quotas.charge(who.String(), amount)
	if err != nil {
		observability.ModuleMetrics().RecordThrottle(moduleName, "quota_exceeded")
		s.logger.Warn("quota exceeded",
			logging.MaskField("holder", who.String()),
			slog.String("reason", err.Error()))
		writeQuotaError(w, err)
		return nil, false
	}
	return charge, true
}

func (s *Server) fail(w http.ResponseWriter, operation string, err error) {
	s.logger.Info("operation rejected",
		slog.String("operation", operation),
		slog.String("outcome", string(vault.KindOf(err))),
		slog.String("code", vault.CodeOf(err)),
		slog.Any("error", err))
	writeLedgerError(w, err)
}

func (s *Server) succeed(operation string, vaultAddr crypto.PublicKey) {
	s.logger.Info("operation applied",
		slog.String("operation", operation),
		slog.String("outcome", "ok"),
		slog.String("vault", vaultAddr.String()))
}

func (s *Server) checkCustody(w http.ResponseWriter, operation string, vaultAddr crypto.PublicKey, account *crypto.PublicKey) bool {
	if account == nil {
		return true
	}
	if err := s.ledger.CheckCustodyAccount(vaultAddr, *account); err != nil {
		s.fail(w, operation, err)
		return false
	}
	return true
}

func (s *Server) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	var req createVaultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := s.admit(w, r, 0); !ok {
		return
	}
	v, err := s.ledger.CreateVault(r.Context(), caller(r), req.TokenMint, req.CreatorMint, req.RewardRateBps, req.LockDuration)
	if err != nil {
		s.fail(w, core.OpCreateVault, err)
		return
	}
	s.succeed(core.OpCreateVault, v.Address)
	writeJSON(w, http.StatusCreated, newVaultView(v))
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	vaultAddr, ok := pathKey(w, r, "vault")
	if !ok {
		return
	}
	if _, ok := s.admit(w, r, 0); !ok {
		return
	}
	v, err := s.ledger.DeactivateVault(r.Context(), caller(r), vaultAddr)
	if err != nil {
		s.fail(w, core.OpDeactivateVault, err)
		return
	}
	s.succeed(core.OpDeactivateVault, vaultAddr)
	writeJSON(w, http.StatusOK, newVaultView(v))
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	vaultAddr, ok := pathKey(w, r, "vault")
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	charge, ok := s.admit(w, r, req.Amount)
	if !ok {
		return
	}
	if !s.checkCustody(w, core.OpFundVault, vaultAddr, req.CustodyAccount) {
		charge.refund()
		return
	}
	receipt, err := s.ledger.FundVault(r.Context(), caller(r), vaultAddr, req.Amount)
	if err != nil {
		charge.refund()
		s.fail(w, core.OpFundVault, err)
		return
	}
	s.succeed(core.OpFundVault, vaultAddr)
	writeJSON(w, http.StatusOK, fundView{
		Vault:          receipt.Vault,
		Funder:         receipt.Funder,
		Amount:         receipt.Amount,
		CustodyBalance: receipt.CustodyBalance,
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	vaultAddr, ok := pathKey(w, r, "vault")
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	charge, ok := s.admit(w, r, req.Amount)
	if !ok {
		return
	}
	if !s.checkCustody(w, core.OpDeposit, vaultAddr, req.CustodyAccount) {
		charge.refund()
		return
	}
	receipt, err := s.ledger.Deposit(r.Context(), caller(r), vaultAddr, req.Amount)
	if err != nil {
		charge.refund()
		s.fail(w, core.OpDeposit, err)
		return
	}
	s.succeed(core.OpDeposit, vaultAddr)
	writeJSON(w, http.StatusOK, depositView{
		Stake:      newStakeView(receipt.Stake),
		Amount:     receipt.Amount,
		VaultTotal: receipt.VaultTotal,
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	vaultAddr, ok := pathKey(w, r, "vault")
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := s.admit(w, r, 0); !ok {
		return
	}
	if !s.checkCustody(w, core.OpWithdraw, vaultAddr, req.CustodyAccount) {
		return
	}
	receipt, err := s.ledger.Withdraw(r.Context(), caller(r), vaultAddr, req.Amount)
	if err != nil {
		s.fail(w, core.OpWithdraw, err)
		return
	}
	s.succeed(core.OpWithdraw, vaultAddr)
	writeJSON(w, http.StatusOK, withdrawView{
		Vault:          receipt.Vault,
		Holder:         receipt.Holder,
		Amount:         receipt.Amount,
		PendingRewards: receipt.PendingRewards,
		PenaltyToPool:  receipt.PenaltyToPool,
		RemainingStake: receipt.RemainingStake,
		EarlyUnlock:    receipt.EarlyUnlock,
		UnlockAt:       receipt.UnlockAt,
		DaysEarly:      receipt.DaysEarly,
		WithdrawnAt:    receipt.WithdrawnAt,
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	vaultAddr, ok := pathKey(w, r, "vault")
	if !ok {
		return
	}
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := s.admit(w, r, 0); !ok {
		return
	}
	if !s.checkCustody(w, core.OpClaim, vaultAddr, req.CustodyAccount) {
		return
	}
	receipt, err := s.ledger.Claim(r.Context(), caller(r), vaultAddr)
	if err != nil {
		s.fail(w, core.OpClaim, err)
		return
	}
	s.succeed(core.OpClaim, vaultAddr)
	writeJSON(w, http.StatusOK, claimView{
		Vault:        receipt.Vault,
		Holder:       receipt.Holder,
		Amount:       receipt.Amount,
		TotalClaimed: receipt.TotalClaimed,
		ClaimedAt:    receipt.ClaimedAt,
	})
}

func (s *Server) handleListVaults(w http.ResponseWriter, r *http.Request) {
	addrs, err := s.ledger.Vaults()
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if addrs == nil {
		addrs = []crypto.PublicKey{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vaults": addrs})
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	vaultAddr, ok := pathKey(w, r, "vault")
	if !ok {
		return
	}
	v, err := s.ledger.Vault(r.Context(), vaultAddr)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVaultView(v))
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	vaultAddr, ok := pathKey(w, r, "vault")
	if !ok {
		return
	}
	rec, err := s.ledger.Reconcile(r.Context(), vaultAddr)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileView{
		Vault:          rec.Vault,
		TotalStaked:    rec.TotalStaked,
		SumOfStakes:    rec.SumOfStakes,
		CustodyBalance: rec.CustodyBalance,
		Holders:        rec.Holders,
		Balanced:       rec.Balanced(),
	})
}

type auditView struct {
	Intact  bool   `json:"intact"`
	Records uint64 `json:"records"`
	Head    string `json:"head"`
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "AuditUnavailable", "internal", "audit log not configured")
		return
	}
	report, err := s.audit.Check(r.Context())
	switch {
	case errors.Is(err, audit.ErrChainBroken):
		s.logger.Error("audit chain verification failed", slog.String("reason", err.Error()))
		writeJSONError(w, http.StatusConflict, "AuditChainBroken", string(vault.KindState), err.Error())
		return
	case err != nil:
		s.logger.Error("audit chain verification errored", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "Internal", string(vault.KindInternal), "internal error")
		return
	}
	writeJSON(w, http.StatusOK, auditView{Intact: true, Records: report.Records, Head: report.Head})
}

func (s *Server) handleGetStake(w http.ResponseWriter, r *http.Request) {
	vaultAddr, ok := pathKey(w, r, "vault")
	if !ok {
		return
	}
	holder, ok := pathKey(w, r, "holder")
	if !ok {
		return
	}
	stake, err := s.ledger.Stake(r.Context(), vaultAddr, holder)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStakeView(stake))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	vaultAddr, ok := pathKey(w, r, "vault")
	if !ok {
		return
	}
	holder, ok := pathKey(w, r, "holder")
	if !ok {
		return
	}
	preview, err := s.ledger.Preview(r.Context(), vaultAddr, holder)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, previewView{
		Stake:          newStakeView(preview.Stake),
		Phase:          string(preview.Phase),
		AsOf:           preview.AsOf,
		PendingRewards: preview.PendingRewards,
		EarlyExit: earlyExitView{
			Potential:    preview.EarlyExit.Potential,
			Proportional: preview.EarlyExit.Proportional,
			Penalty:      preview.EarlyExit.Penalty,
			Payout:       preview.EarlyExit.Payout,
		},
		NextClaimAt:   preview.NextClaimAt,
		NextDepositAt: preview.NextDepositAt,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathKey(w, r, "owner")
	if !ok {
		return
	}
	mint, ok := pathKey(w, r, "mint")
	if !ok {
		return
	}
	balance, err := s.ledger.Balance(owner, mint)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceView{Owner: owner, Mint: mint, Balance: balance})
}
