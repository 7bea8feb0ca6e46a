// Package api exposes the league engines over HTTP and pushes committed
// events to WebSocket subscribers.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/alexfall862/simBaseball-API-sub000/internal/contracts"
	"github.com/alexfall862/simBaseball-API-sub000/internal/finance"
	"github.com/alexfall862/simBaseball-API-sub000/internal/model"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
	"github.com/alexfall862/simBaseball-API-sub000/internal/transactions"
)

// Handler holds the engines behind every route.
type Handler struct {
	books     *finance.Books
	summaries *finance.Reconstructor
	lifecycle *contracts.Lifecycle
	engine    *transactions.Engine
	logger    *slog.Logger
}

// NewHandler creates a handler. A nil logger uses slog.Default().
func NewHandler(books *finance.Books, summaries *finance.Reconstructor, lifecycle *contracts.Lifecycle, engine *transactions.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		books:     books,
		summaries: summaries,
		lifecycle: lifecycle,
		engine:    engine,
		logger:    logger,
	}
}

// --- Request types ---

type levelRequest struct {
	Level int `json:"level"`
	transactions.Meta
}

type orgRequest struct {
	OrgID int64 `json:"org_id"`
	transactions.Meta
}

type buyoutRequest struct {
	OrgID  int64           `json:"org_id"`
	Amount decimal.Decimal `json:"amount"`
	transactions.Meta
}

type tradeRequest struct {
	model.TradeTerms
	ExecutedBy string `json:"executed_by,omitempty"`
	Note       string `json:"note,omitempty"`
}

type actionRequest struct {
	Note       string `json:"note,omitempty"`
	ExecutedBy string `json:"executed_by,omitempty"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "league-engine"})
}

// --- Books ---

// YearStart handles POST /api/v1/books/{year}/year-start.
func (h *Handler) YearStart(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.books.RunYearStart(r.Context(), year)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Week handles POST /api/v1/books/{year}/weeks/{week}.
func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	week, err := pathInt(r, "week")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.books.RunWeek(r.Context(), year, week)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// YearEnd handles POST /api/v1/books/{year}/year-end.
func (h *Handler) YearEnd(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.books.RunYearEndInterest(r.Context(), year)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Season handles POST /api/v1/books/{year}/season.
func (h *Handler) Season(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.books.RunFullSeason(r.Context(), year)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RecordGameResult handles POST /api/v1/game-results.
func (h *Handler) RecordGameResult(w http.ResponseWriter, r *http.Request) {
	var req finance.GameResultInput
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	gr, err := h.books.RecordGameResult(r.Context(), req)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, gr)
}

// --- Financial summaries ---

// LeagueSummary handles GET /api/v1/financials/{year}.
func (h *Handler) LeagueSummary(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.summaries.LeagueSummary(r.Context(), year)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// OrgSummary handles GET /api/v1/financials/{year}/orgs/{orgID}.
func (h *Handler) OrgSummary(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	orgID, err := pathID(r, "orgID")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.summaries.OrgSummary(r.Context(), orgID, year)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Season lifecycle ---

// EndSeason handles POST /api/v1/seasons/{year}/end.
func (h *Handler) EndSeason(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.lifecycle.ProcessEndOfSeason(r.Context(), year)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Contract moves ---

// contractAction decodes the body into req and runs op against the
// {id} path contract.
func (h *Handler) contractAction(w http.ResponseWriter, r *http.Request, req any, op func(id int64) (*transactions.Result, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := decode(r, req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := op(id)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Promote handles POST /api/v1/contracts/{id}/promote.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	h.contractAction(w, r, &req, func(id int64) (*transactions.Result, error) {
		return h.engine.Promote(r.Context(), id, req.Level, req.Meta)
	})
}

// Demote handles POST /api/v1/contracts/{id}/demote.
func (h *Handler) Demote(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	h.contractAction(w, r, &req, func(id int64) (*transactions.Result, error) {
		return h.engine.Demote(r.Context(), id, req.Level, req.Meta)
	})
}

// PlaceOnIR handles POST /api/v1/contracts/{id}/injured-list.
func (h *Handler) PlaceOnIR(w http.ResponseWriter, r *http.Request) {
	var req transactions.Meta
	h.contractAction(w, r, &req, func(id int64) (*transactions.Result, error) {
		return h.engine.PlaceOnIR(r.Context(), id, req)
	})
}

// ActivateFromIR handles POST /api/v1/contracts/{id}/activate.
func (h *Handler) ActivateFromIR(w http.ResponseWriter, r *http.Request) {
	var req transactions.Meta
	h.contractAction(w, r, &req, func(id int64) (*transactions.Result, error) {
		return h.engine.ActivateFromIR(r.Context(), id, req)
	})
}

// Release handles POST /api/v1/contracts/{id}/release.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	h.contractAction(w, r, &req, func(id int64) (*transactions.Result, error) {
		return h.engine.Release(r.Context(), id, req.OrgID, req.Meta)
	})
}

// Buyout handles POST /api/v1/contracts/{id}/buyout.
func (h *Handler) Buyout(w http.ResponseWriter, r *http.Request) {
	var req buyoutRequest
	h.contractAction(w, r, &req, func(id int64) (*transactions.Result, error) {
		return h.engine.Buyout(r.Context(), id, req.OrgID, req.Amount, req.Meta)
	})
}

// Extend handles POST /api/v1/contracts/{id}/extend.
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	var req transactions.ExtensionRequest
	h.contractAction(w, r, &req, func(id int64) (*transactions.Result, error) {
		return h.engine.ExtendContract(r.Context(), id, req)
	})
}

// SignFreeAgent handles POST /api/v1/free-agents/sign.
func (h *Handler) SignFreeAgent(w http.ResponseWriter, r *http.Request) {
	var req transactions.SigningRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.engine.SignFreeAgent(r.Context(), req)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ExecuteTrade handles POST /api/v1/trades.
func (h *Handler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.engine.ExecuteTrade(r.Context(), req.TradeTerms, req.ExecutedBy, req.Note)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Trade proposals ---

// Propose handles POST /api/v1/trade-proposals.
func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	var req transactions.ProposalRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.engine.Propose(r.Context(), req)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListProposals handles GET /api/v1/trade-proposals?org_id=&status=.
func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	var f store.ProposalFilter
	var err error
	if f.OrgID, err = queryID(r, "org_id"); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := model.ProposalStatus(s)
		f.Status = &status
	}
	out, err := h.engine.ListProposals(r.Context(), f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetProposal handles GET /api/v1/trade-proposals/{id}.
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	p, err := h.engine.GetProposal(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// proposalAction returns the handler for one proposal transition.
func (h *Handler) proposalAction(action transactions.ProposalAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			fail(w, r, h.logger, err)
			return
		}
		var req actionRequest
		if err := decode(r, &req); err != nil {
			fail(w, r, h.logger, err)
			return
		}

		ctx := r.Context()
		var res *transactions.ProposalResult
		switch action {
		case transactions.ActionAccept:
			res, err = h.engine.Accept(ctx, id, req.Note)
		case transactions.ActionReject:
			res, err = h.engine.Reject(ctx, id, req.Note)
		case transactions.ActionCancel:
			res, err = h.engine.Cancel(ctx, id, req.Note)
		case transactions.ActionAdminApprove:
			res, err = h.engine.AdminApprove(ctx, id, req.Note, req.ExecutedBy)
		case transactions.ActionAdminReject:
			res, err = h.engine.AdminReject(ctx, id, req.Note)
		}
		if err != nil {
			fail(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// --- Transaction log ---

// ListTransactions handles GET /api/v1/transactions?org_id=&type=&league_year=&limit=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.TransactionFilter
	var err error
	if f.OrgID, err = queryID(r, "org_id"); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if s := q.Get("type"); s != "" {
		t := model.TransactionType(s)
		f.Type = &t
	}
	if s := q.Get("league_year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			fail(w, r, h.logger, model.Invalidf("league_year must be an integer"))
			return
		}
		f.LeagueYear = &y
	}
	if s := q.Get("limit"); s != "" {
		if f.Limit, err = strconv.Atoi(s); err != nil || f.Limit < 0 {
			fail(w, r, h.logger, model.Invalidf("limit must be a non-negative integer"))
			return
		}
	}
	out, err := h.engine.ListTransactions(r.Context(), f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTransaction handles GET /api/v1/transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	t, err := h.engine.GetTransaction(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Rollback handles POST /api/v1/transactions/{id}/rollback.
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	var req actionRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	res, err := h.engine.Rollback(r.Context(), id, req.ExecutedBy, req.Note)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
