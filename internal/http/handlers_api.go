package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"tablero/internal/core"
	"tablero/internal/log"
	"tablero/internal/views"
)

const (
	headerCache = "X-Cache"

	msgInvalidQuery = "Parámetros inválidos"
)

// viewBuilder computes one dashboard view from the current snapshot.
type viewBuilder func(txs []core.Transaction) (any, error)

// serveView answers a dashboard view from the cache, building it from the
// current snapshot on a miss. Keys carry the snapshot version, so a new
// snapshot never serves an old view.
func (s *Server) serveView(w http.ResponseWriter, r *http.Request, view string, build viewBuilder) {
	ctx := r.Context()
	txs, version := s.state.Transactions()
	key := strconv.FormatUint(version, 10) + "|" + view + "|" + r.URL.Query().Encode()

	if encoded, ok := s.viewCache.Get(key); ok {
		NewJSONResponse().Header(headerCache, "HIT").Raw(encoded).Write(w)
		return
	}

	body, err := build(txs)
	if err != nil {
		ErrorResponseWithDetails(http.StatusBadRequest, msgInvalidQuery, err.Error()).Write(w)
		return
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to encode view",
			log.FieldError, err,
			"view", view)
		InternalServerError("Error interno").Write(w)
		return
	}

	s.viewCache.Set(key, encoded)
	NewJSONResponse().Header(headerCache, "MISS").Raw(encoded).Write(w)
}

// monthScoped applies the optional ?month= filter before building.
func monthScoped(query url.Values, build func([]core.Transaction) any) viewBuilder {
	return func(txs []core.Transaction) (any, error) {
		month, err := ParseMonthParam(query)
		if err != nil {
			return nil, err
		}
		return build(views.FilterMonth(txs, month)), nil
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "metrics", monthScoped(r.URL.Query(), func(txs []core.Transaction) any {
		return views.Metrics(txs)
	}))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "categories", monthScoped(r.URL.Query(), func(txs []core.Transaction) any {
		shares := views.CategoryBreakdown(txs)
		if shares == nil {
			shares = []core.CategoryShare{}
		}
		return shares
	}))
}

func (s *Server) handleEvolution(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "evolution", monthScoped(r.URL.Query(), func(txs []core.Transaction) any {
		points := views.Evolution(txs)
		if points == nil {
			points = []views.EvolutionPoint{}
		}
		return points
	}))
}

type insightsResponse struct {
	Available bool            `json:"available"`
	Insights  *views.Insights `json:"insights,omitempty"`
}

// handleInsights always covers the whole history; the highlights compare
// months against each other.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "insights", func(txs []core.Transaction) (any, error) {
		ins, ok := views.ComputeInsights(txs)
		if !ok {
			return insightsResponse{}, nil
		}
		return insightsResponse{Available: true, Insights: &ins}, nil
	})
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "months", func(txs []core.Transaction) (any, error) {
		months := views.Months(txs)
		if months == nil {
			months = []views.MonthOption{}
		}
		return months, nil
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	s.serveView(w, r, "transactions", func(txs []core.Transaction) (any, error) {
		month, err := ParseMonthParam(query)
		if err != nil {
			return nil, err
		}
		q, err := ParseTableQuery(query)
		if err != nil {
			return nil, err
		}
		page := views.Table(views.FilterMonth(txs, month), q)
		if page.Rows == nil {
			page.Rows = []core.Transaction{}
		}
		return page, nil
	})
}

// handleScenario projects the profit under the given income growth and
// expense adjustment percentages.
func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	s.serveView(w, r, "scenario", func(txs []core.Transaction) (any, error) {
		growth, err := parseIntParam(query, "incomeGrowth", 0)
		if err != nil {
			return nil, err
		}
		adjustment, err := parseIntParam(query, "expenseAdjustment", 0)
		if err != nil {
			return nil, err
		}
		return views.Simulate(txs, growth, adjustment), nil
	})
}
