package lineage

import (
	"context"
	"sort"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/holdings"
	"github.com/bobmcallan/classfund/internal/interfaces"
	"github.com/bobmcallan/classfund/internal/models"
	"github.com/bobmcallan/classfund/internal/ticker"
)

// Service serves the lineage audit view.
type Service struct {
	data         Data
	graph        *Graph
	ledgerPath   string
	ledgerFormat holdings.Format
	logger       *common.Logger
}

// NewService validates data and returns the audit service. An empty
// ledgerPath audits the graph alone.
func NewService(data Data, ledgerPath string, ledgerFormat holdings.Format, logger *common.Logger) (*Service, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	g, err := NewGraph(data.Roots, data.Edges)
	if err != nil {
		return nil, err
	}
	for i := range data.Exits {
		data.Exits[i].Ticker = ticker.Normalize(data.Exits[i].Ticker)
	}
	sort.SliceStable(data.Exits, func(i, j int) bool { return data.Exits[i].Ticker < data.Exits[j].Ticker })

	return &Service{data: data, graph: g, ledgerPath: ledgerPath, ledgerFormat: ledgerFormat, logger: logger}, nil
}

// Graph returns the curated graph.
func (s *Service) Graph() *Graph {
	return s.graph
}

// Audit reconciles the held tickers against the graph. Every held ticker
// must be a root or reach one through confirmed edges, or it is reported.
func (s *Service) Audit(ctx context.Context) (*models.LineageAudit, error) {
	held := s.heldTickers(ctx)
	return &models.LineageAudit{
		Edges:      s.graph.Edges(),
		Roots:      s.graph.Roots(),
		Unresolved: s.graph.Unresolved(held...),
		Exits:      append([]models.Exit(nil), s.data.Exits...),
	}, nil
}

// Trace returns the resolution of a single ticker.
func (s *Service) Trace(t string) *models.LineageTrace {
	t = ticker.Normalize(t)
	path := s.graph.Resolve(t)
	tr := &models.LineageTrace{
		Ticker:   t,
		Resolved: s.graph.IsResolved(t),
		Path:     path,
	}
	switch {
	case len(path) > 0:
		tr.Root = path[0].FromTicker
	case s.graph.IsRoot(t):
		tr.Root = t
	}
	return tr
}

func (s *Service) heldTickers(ctx context.Context) []string {
	if s.ledgerPath == "" {
		return nil
	}
	res, err := holdings.LoadFile(s.ledgerPath, s.ledgerFormat)
	if err != nil {
		common.LoggerFrom(ctx, s.logger).Warn().Err(err).Msg("Lineage audit without ledger tickers")
		return nil
	}
	return res.Tickers()
}

// Ensure Service implements LineageService
var _ interfaces.LineageService = (*Service)(nil)
