package service

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/go-chi/chi/v5"

	"github.com/coordination-labs/auction-sdk/auction"
	"github.com/coordination-labs/auction-sdk/coordinator"
	"github.com/coordination-labs/auction-sdk/tree"
	"github.com/coordination-labs/auction-sdk/types"
)

type handler struct {
	coordinator *coordinator.Coordinator
	manager     *auction.Manager
	logger      log.Logger

	// chainPolicy is the admission policy applied to registrations that do
	// not override individual fields.
	chainPolicy coordinator.ChainPolicy
}

// RegisterRoutes mounts the coordinator API on the router.
func (h *handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/transactions", h.submitTransaction)
	r.Delete("/v1/transactions/{txID}", h.withdrawTransaction)
	r.Get("/v1/proofs/{root}/{txID}", h.prove)
	r.Get("/v1/results", h.listResults)
	r.Get("/v1/results/{windowID}", h.getResult)
	r.Post("/v1/chains", h.registerChain)
	r.Get("/v1/chains/{chainID}", h.getChain)
	r.Put("/v1/chains/{chainID}/health", h.updateChainHealth)
	r.Get("/livez", h.livez)
}

func (h *handler) submitTransaction(w http.ResponseWriter, r *http.Request) {
	var tx types.BidTransaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, types.ErrInvalidTransaction.Wrapf("decode: %s", err))
		return
	}

	root, err := h.coordinator.Admit(r.Context(), &tx)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"tx_id": tx.TxID.String(),
		"root":  hex.EncodeToString(root[:]),
	})
}

func (h *handler) withdrawTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := types.TxIDFromString(chi.URLParam(r, "txID"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.manager.Withdraw(id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"tx_id": id.String(), "status": "withdrawn"})
}

// prove answers the third-party audit endpoint: for a (root, txID) pair it
// returns an inclusion proof when the transaction is part of the committed
// set and an exclusion proof otherwise.
func (h *handler) prove(w http.ResponseWriter, r *http.Request) {
	root, err := parseRoot(chi.URLParam(r, "root"))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := types.TxIDFromString(chi.URLParam(r, "txID"))
	if err != nil {
		writeError(w, err)
		return
	}

	snap, err := h.manager.SnapshotForRoot(root)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, included := snap.Get(id); included {
		proof, err := snap.ProveInclusion(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, proofResponse{Kind: "inclusion", Inclusion: newInclusionJSON(proof)})
		return
	}

	proof, err := snap.ProveExclusion(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proofResponse{Kind: "exclusion", Exclusion: newExclusionJSON(proof)})
}

func (h *handler) listResults(w http.ResponseWriter, _ *http.Request) {
	results := h.manager.Results()
	out := make([]resultJSON, 0, len(results))
	for _, res := range results {
		out = append(out, newResultJSON(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getResult(w http.ResponseWriter, r *http.Request) {
	windowID, err := strconv.ParseUint(chi.URLParam(r, "windowID"), 10, 64)
	if err != nil {
		writeError(w, types.ErrWindowNotFound.Wrapf("window id %q", chi.URLParam(r, "windowID")))
		return
	}

	res, err := h.manager.Result(windowID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultJSON(res))
}

type registerChainRequest struct {
	ChainID       uint64   `json:"chain_id"`
	RatePerSecond *float64 `json:"rate_per_second,omitempty"`
	Burst         *int     `json:"burst,omitempty"`
	MinimumBid    *uint64  `json:"minimum_bid,omitempty"`
}

func (h *handler) registerChain(w http.ResponseWriter, r *http.Request) {
	var req registerChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.ErrInvalidTransaction.Wrapf("decode: %s", err))
		return
	}
	if req.ChainID == 0 {
		writeError(w, types.ErrInvalidTransaction.Wrap("chain id must be positive"))
		return
	}

	policy := h.chainPolicy
	if req.RatePerSecond != nil {
		policy.RatePerSecond = *req.RatePerSecond
	}
	if req.Burst != nil {
		policy.Burst = *req.Burst
	}
	if req.MinimumBid != nil {
		policy.MinimumBid = *req.MinimumBid
	}

	h.coordinator.RegisterChain(req.ChainID, policy)

	record, err := h.coordinator.Chain(req.ChainID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handler) updateChainHealth(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(chi.URLParam(r, "chainID"), 10, 64)
	if err != nil {
		writeError(w, types.ErrChainUnknown.Wrapf("chain id %q", chi.URLParam(r, "chainID")))
		return
	}

	var req struct {
		State coordinator.HealthState `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.ErrInvalidTransaction.Wrapf("decode: %s", err))
		return
	}

	if err := h.coordinator.UpdateHealth(chainID, req.State); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"chain_id": chi.URLParam(r, "chainID"), "state": req.State.String()})
}

func (h *handler) getChain(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(chi.URLParam(r, "chainID"), 10, 64)
	if err != nil {
		writeError(w, types.ErrChainUnknown.Wrapf("chain id %q", chi.URLParam(r, "chainID")))
		return
	}

	record, err := h.coordinator.Chain(chainID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handler) livez(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// wire DTOs: hashes travel as hex strings.

type proofResponse struct {
	Kind      string         `json:"kind"`
	Inclusion *inclusionJSON `json:"inclusion,omitempty"`
	Exclusion *exclusionJSON `json:"exclusion,omitempty"`
}

type inclusionJSON struct {
	Tx        *types.BidTransaction `json:"tx"`
	LeftHash  string                `json:"left_hash"`
	RightHash string                `json:"right_hash"`
	Steps     []inclusionStepJSON   `json:"steps"`
	OrderRoot string                `json:"order_root"`
	Count     uint64                `json:"count"`
}

type inclusionStepJSON struct {
	Key         string `json:"key"`
	EntryHash   string `json:"entry_hash"`
	SiblingHash string `json:"sibling_hash"`
	TargetLeft  bool   `json:"target_left"`
}

func newInclusionJSON(p *tree.InclusionProof) *inclusionJSON {
	out := &inclusionJSON{
		Tx:        p.Tx,
		LeftHash:  hex.EncodeToString(p.LeftHash[:]),
		RightHash: hex.EncodeToString(p.RightHash[:]),
		Steps:     make([]inclusionStepJSON, 0, len(p.Steps)),
		OrderRoot: hex.EncodeToString(p.OrderRoot[:]),
		Count:     p.Count,
	}
	for _, s := range p.Steps {
		out.Steps = append(out.Steps, inclusionStepJSON{
			Key:         s.Key.String(),
			EntryHash:   hex.EncodeToString(s.EntryHash[:]),
			SiblingHash: hex.EncodeToString(s.SiblingHash[:]),
			TargetLeft:  s.TargetLeft,
		})
	}
	return out
}

type exclusionJSON struct {
	Steps     []exclusionStepJSON `json:"steps"`
	OrderRoot string              `json:"order_root"`
	Count     uint64              `json:"count"`
}

type exclusionStepJSON struct {
	Key         string `json:"key"`
	EntryHash   string `json:"entry_hash"`
	OffPathHash string `json:"off_path_hash"`
}

func newExclusionJSON(p *tree.ExclusionProof) *exclusionJSON {
	out := &exclusionJSON{
		Steps:     make([]exclusionStepJSON, 0, len(p.Steps)),
		OrderRoot: hex.EncodeToString(p.OrderRoot[:]),
		Count:     p.Count,
	}
	for _, s := range p.Steps {
		out.Steps = append(out.Steps, exclusionStepJSON{
			Key:         s.Key.String(),
			EntryHash:   hex.EncodeToString(s.EntryHash[:]),
			OffPathHash: hex.EncodeToString(s.OffPathHash[:]),
		})
	}
	return out
}

type resultJSON struct {
	WindowID                uint64                  `json:"window_id"`
	AuctionType             string                  `json:"auction_type"`
	WinningTransactions     []*types.BidTransaction `json:"winning_transactions"`
	TotalRevenue            uint64                  `json:"total_revenue"`
	CoordinatorRevenueShare uint64                  `json:"coordinator_revenue_share"`
	PartnerRevenueShare     uint64                  `json:"partner_revenue_share"`
	TotalGasUsed            uint64                  `json:"total_gas_used"`
	MerkleRoot              string                  `json:"merkle_root"`
	SealedAt                string                  `json:"sealed_at"`
}

func newResultJSON(r *auction.AuctionResult) resultJSON {
	return resultJSON{
		WindowID:                r.WindowID,
		AuctionType:             r.AuctionType.String(),
		WinningTransactions:     r.WinningTransactions,
		TotalRevenue:            r.TotalRevenue,
		CoordinatorRevenueShare: r.CoordinatorRevenueShare,
		PartnerRevenueShare:     r.PartnerRevenueShare,
		TotalGasUsed:            r.TotalGasUsed,
		MerkleRoot:              hex.EncodeToString(r.MerkleRoot[:]),
		SealedAt:                r.SealedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func parseRoot(s string) ([32]byte, error) {
	var root [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(root) {
		return root, types.ErrProofUnavailable.Wrapf("root %q is not a 32-byte hex digest", s)
	}
	copy(root[:], raw)
	return root, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case sdkerrors.IsOf(err, types.ErrInvalidTransaction, types.ErrInvalidSignature, types.ErrUnknownAuctionType, types.ErrBidTooLow):
		return http.StatusBadRequest
	case sdkerrors.IsOf(err, types.ErrDuplicateTransaction, types.ErrAlreadySealed, types.ErrWindowNotSealable):
		return http.StatusConflict
	case sdkerrors.IsOf(err, types.ErrTxNotFound, types.ErrWindowNotFound, types.ErrChainUnknown, types.ErrProofUnavailable):
		return http.StatusNotFound
	case sdkerrors.IsOf(err, types.ErrRateLimited):
		return http.StatusTooManyRequests
	case sdkerrors.IsOf(err, types.ErrChainUnhealthy):
		return http.StatusForbidden
	case sdkerrors.IsOf(err, types.ErrIntegrityHalted):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
