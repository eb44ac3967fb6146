// Package service exposes the settlement engine over a JSON HTTP API for
// the dashboard that fronts it. The engine itself is the contract; this
// layer only decodes requests, maps the error taxonomy to status codes, and
// encodes responses.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/alfares/partnersplit/internal/calculator"
	"github.com/alfares/partnersplit/internal/middleware"
	"github.com/alfares/partnersplit/internal/models"
	"github.com/alfares/partnersplit/internal/settlement"
	"github.com/alfares/partnersplit/internal/storage"
)

// Service wires the settlement engine and the store into HTTP handlers.
type Service struct {
	engine *settlement.Engine
	store  storage.Store
}

// New creates a Service.
func New(engine *settlement.Engine, store storage.Store) *Service {
	return &Service{engine: engine, store: store}
}

// Router builds the chi router with all routes and middleware attached.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/assets/{assetID}", func(r chi.Router) {
		r.Post("/rent", s.applyRent)
		r.Get("/terms", s.getTerms)
		r.Put("/terms", s.putTerms)
		r.Delete("/partnership", s.removePartnership)
		r.Get("/status", s.assetStatus)
		r.Get("/transactions", s.listTransactions)
		r.Get("/history", s.listHistory)
	})

	r.Post("/withdrawals", s.withdraw)
	r.Get("/beneficiaries/{name}/summary", s.beneficiarySummary)

	r.Route("/partners", func(r chi.Router) {
		r.Post("/", s.createPartner)
		r.Get("/", s.listPartners)
		r.Get("/{partnerID}", s.getPartner)
	})

	return r
}

type rentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ContractRef string          `json:"contract_ref,omitempty"`
}

type allocationResponse struct {
	Phase               models.Phase           `json:"phase"`
	CompanyAmount       decimal.Decimal        `json:"company_amount"`
	PartnerAmounts      []models.PartnerAmount `json:"partner_amounts"`
	CapitalDeduction    decimal.Decimal        `json:"capital_deduction"`
	NewCapitalRemaining decimal.Decimal        `json:"new_capital_remaining"`
}

func (s *Service) applyRent(w http.ResponseWriter, r *http.Request) {
	var req rentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	alloc, err := s.engine.ApplyRent(r.Context(), &models.RentEvent{
		AssetID:     chi.URLParam(r, "assetID"),
		Amount:      req.Amount,
		ContractRef: req.ContractRef,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, allocationResponse{
		Phase:               alloc.Phase,
		CompanyAmount:       alloc.CompanyAmount,
		PartnerAmounts:      alloc.PartnerAmounts,
		CapitalDeduction:    alloc.CapitalDeduction,
		NewCapitalRemaining: alloc.NewCapitalRemaining,
	})
}

type termsRequest struct {
	CompanyPrePct  decimal.Decimal       `json:"company_pre_pct"`
	CapitalPrePct  decimal.Decimal       `json:"capital_pre_pct"`
	CompanyPostPct decimal.Decimal       `json:"company_post_pct"`
	Partners       []partnerShareRequest `json:"partners"`
}

type partnerShareRequest struct {
	PartnerID           string          `json:"partner_id"`
	PrePct              decimal.Decimal `json:"pre_pct"`
	PostPct             decimal.Decimal `json:"post_pct"`
	CapitalContribution decimal.Decimal `json:"capital_contribution"`
}

func (s *Service) putTerms(w http.ResponseWriter, r *http.Request) {
	var req termsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	terms := &models.PartnershipTerms{
		AssetID:        chi.URLParam(r, "assetID"),
		CompanyPrePct:  req.CompanyPrePct,
		CapitalPrePct:  req.CapitalPrePct,
		CompanyPostPct: req.CompanyPostPct,
	}
	for _, p := range req.Partners {
		terms.Partners = append(terms.Partners, models.PartnerShare{
			PartnerID:           p.PartnerID,
			PrePct:              p.PrePct,
			PostPct:             p.PostPct,
			CapitalContribution: p.CapitalContribution,
		})
	}

	if err := s.engine.ConfigureTerms(r.Context(), terms); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset_id": terms.AssetID})
}

type termsResponse struct {
	AssetID        string                `json:"asset_id"`
	CompanyPrePct  decimal.Decimal       `json:"company_pre_pct"`
	CapitalPrePct  decimal.Decimal       `json:"capital_pre_pct"`
	CompanyPostPct decimal.Decimal       `json:"company_post_pct"`
	Partners       []partnerShareRequest `json:"partners"`
}

func (s *Service) getTerms(w http.ResponseWriter, r *http.Request) {
	terms, err := s.store.GetTerms(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	resp := termsResponse{
		AssetID:        terms.AssetID,
		CompanyPrePct:  terms.CompanyPrePct,
		CapitalPrePct:  terms.CapitalPrePct,
		CompanyPostPct: terms.CompanyPostPct,
		Partners:       make([]partnerShareRequest, 0, len(terms.Partners)),
	}
	for _, p := range terms.Partners {
		resp.Partners = append(resp.Partners, partnerShareRequest{
			PartnerID:           p.PartnerID,
			PrePct:              p.PrePct,
			PostPct:             p.PostPct,
			CapitalContribution: p.CapitalContribution,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) removePartnership(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	if err := s.store.RemoveFromPartnership(r.Context(), assetID); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	slog.Info("Asset removed from partnership", "asset_id", assetID)
	writeJSON(w, http.StatusOK, map[string]string{"asset_id": assetID})
}

type assetStatusResponse struct {
	AssetID          string          `json:"asset_id"`
	Phase            models.Phase    `json:"phase"`
	CapitalTotal     decimal.Decimal `json:"capital_total"`
	CapitalRemaining decimal.Decimal `json:"capital_remaining"`
	RecoveredPct     decimal.Decimal `json:"recovered_pct"`
}

// assetStatus reports the asset's derived phase and recovery progress.
func (s *Service) assetStatus(w http.ResponseWriter, r *http.Request) {
	account, err := s.store.GetCapitalAccount(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assetStatusResponse{
		AssetID:          account.AssetID,
		Phase:            calculator.ResolvePhase(account.CapitalRemaining),
		CapitalTotal:     account.CapitalTotal,
		CapitalRemaining: account.CapitalRemaining,
		RecoveredPct:     account.RecoveredPct(),
	})
}

func (s *Service) listTransactions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListTransactions(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Service) listHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRentalHistory(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type withdrawRequest struct {
	Beneficiary string          `json:"beneficiary"`
	Amount      decimal.Decimal `json:"amount"`
	Note        string          `json:"note,omitempty"`
}

func (s *Service) withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Beneficiary == "" {
		writeError(w, http.StatusBadRequest, "beneficiary is required")
		return
	}

	entry, err := s.engine.Withdraw(r.Context(), req.Beneficiary, req.Amount, req.Note)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type summaryResponse struct {
	Beneficiary string          `json:"beneficiary"`
	TotalDue    decimal.Decimal `json:"total_due"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func (s *Service) beneficiarySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.Summary(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Beneficiary: summary.Beneficiary,
		TotalDue:    summary.TotalDue,
		TotalPaid:   summary.TotalPaid,
		Outstanding: summary.Outstanding(),
	})
}

func (s *Service) createPartner(w http.ResponseWriter, r *http.Request) {
	var partner models.Partner
	if err := json.NewDecoder(r.Body).Decode(&partner); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if partner.Name == "" {
		writeError(w, http.StatusBadRequest, "partner name is required")
		return
	}

	if err := s.store.CreatePartner(r.Context(), &partner); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, partner)
}

func (s *Service) getPartner(w http.ResponseWriter, r *http.Request) {
	partner, err := s.store.GetPartner(r.Context(), chi.URLParam(r, "partnerID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

func (s *Service) listPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := s.store.ListPartners(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if partners == nil {
		partners = []*models.Partner{}
	}
	writeJSON(w, http.StatusOK, partners)
}

// writeEngineError maps the engine's error taxonomy onto HTTP status codes.
func (s *Service) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var termsErr *calculator.TermsError
	switch {
	case errors.As(err, &termsErr):
		// Enough detail for the caller to surface a precise correction.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":     termsErr.Error(),
			"side":      termsErr.Side,
			"sum":       termsErr.Sum,
			"deviation": termsErr.Deviation,
		})
	case errors.Is(err, settlement.ErrInvalidAmount), errors.Is(err, calculator.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, settlement.ErrAssetNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settlement.ErrNotPartnershipAsset):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, settlement.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
