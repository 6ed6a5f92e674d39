package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
)

type createdResponse struct {
	ID string `json:"id"`
}

// transactionInput reads the add/edit form. Amounts may arrive as JSON
// numbers or strings.
func transactionInput(p *RequestBodyParser) core.TransactionInput {
	return core.TransactionInput{
		Amount:      p.Get("amount"),
		Description: p.Get("description"),
		Type:        p.Get("type"),
		Date:        p.Get("date"),
		CategoryID:  p.Get("categoryId"),
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.deps.Transactions.List(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, r, "list", err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewResponse().JSON(txs).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Transactions.Get(r.Context(), sessionFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "read", err)
		return
	}
	NewResponse().JSON(t).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	id, err := s.deps.Transactions.Add(r.Context(), sessionFrom(r.Context()), transactionInput(p))
	if err != nil {
		writeError(w, r, "create", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/"+id).
		JSON(createdResponse{ID: id}).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	id := r.PathValue("id")
	if err := s.deps.Transactions.Update(r.Context(), sessionFrom(r.Context()), id, transactionInput(p)); err != nil {
		writeError(w, r, "update", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Transactions.Delete(r.Context(), sessionFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, "delete", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Statistics.Statistics(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, r, "statistics", err)
		return
	}
	NewResponse().JSON(statisticsResponse{
		Statistics: stats,
		Breakdown:  stats.Breakdown(),
	}).Write(w)
}

type statisticsResponse struct {
	core.Statistics
	Breakdown []core.CategoryAmount `json:"breakdown"`
}

// handleCategories serves the catalog, optionally filtered by ?type=.
func handleCategories(w http.ResponseWriter, r *http.Request) {
	typ := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type")))
	if typ == "" {
		NewResponse().JSON(core.Categories()).Write(w)
		return
	}
	NewResponse().JSON(core.CategoriesByType(core.TransactionType(typ))).Write(w)
}
