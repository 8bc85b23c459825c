package lineage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/models"
)

func edge(from, to string, m models.Mechanism) models.LineageEdge {
	return models.LineageEdge{FromTicker: from, ToTicker: to, Mechanism: m}
}

func TestResolve_FortuneBrandsExample(t *testing.T) {
	g, err := NewGraph([]string{"FO"}, []models.LineageEdge{
		edge("FO", "FBIN", models.MechanismRename),
		edge("FO", "MBC", models.MechanismSpinoff),
		edge("FO", "ACCO", models.MechanismSpinoff),
	})
	require.NoError(t, err)

	path := g.Resolve("FBIN")
	require.Len(t, path, 1)
	assert.Equal(t, "FO", path[0].FromTicker)
	assert.Equal(t, "FBIN", path[0].ToTicker)

	assert.Equal(t, []string{"LONE"}, g.Unresolved("LONE"))
	assert.Empty(t, g.Unresolved("FBIN", "mbc", "FO"))
}

func TestResolve_MultiHopShortestPath(t *testing.T) {
	g, err := NewGraph([]string{"A", "Z"}, []models.LineageEdge{
		edge("A", "B", models.MechanismSpinoff),
		edge("B", "C", models.MechanismRename),
		edge("C", "D", models.MechanismShareClassConversion),
		edge("Z", "D", models.MechanismMerger),
	})
	require.NoError(t, err)

	path := g.Resolve("d")
	require.Len(t, path, 1, "nearest root wins")
	assert.Equal(t, "Z", path[0].FromTicker)

	path = g.Resolve("C")
	require.Len(t, path, 2)
	assert.Equal(t, []string{"A", "B"}, []string{path[0].FromTicker, path[1].FromTicker})
	assert.Equal(t, "C", path[1].ToTicker)
}

func TestResolve_RootsAndUnknownAreEmpty(t *testing.T) {
	g, err := NewGraph([]string{"FO"}, []models.LineageEdge{edge("FO", "FBIN", models.MechanismRename)})
	require.NoError(t, err)

	assert.NotNil(t, g.Resolve("FO"))
	assert.Empty(t, g.Resolve("FO"))
	assert.Empty(t, g.Resolve("NOPE"))
	assert.Empty(t, g.Resolve(""))
	assert.True(t, g.IsResolved("fo"))
	assert.False(t, g.IsResolved("NOPE"))
}

func TestResolve_UnresolvedMechanismNeverConnects(t *testing.T) {
	g, err := NewGraph([]string{"DD"}, []models.LineageEdge{edge("DD", "DOW", models.MechanismUnresolved)})
	require.NoError(t, err)

	assert.Empty(t, g.Resolve("DOW"))
	assert.Equal(t, []string{"DOW"}, g.Unresolved())
}

func TestNewGraph_NormalizesTickers(t *testing.T) {
	g, err := NewGraph([]string{" brk.a "}, []models.LineageEdge{edge("brk.a", "brk/b", models.MechanismShareClassConversion)})
	require.NoError(t, err)

	path := g.Resolve("BRK-B")
	require.Len(t, path, 1)
	assert.Equal(t, "BRK-A", path[0].FromTicker)
}

func TestNewGraph_RejectsCycle(t *testing.T) {
	_, err := NewGraph([]string{"A"}, []models.LineageEdge{
		edge("A", "B", models.MechanismRename),
		edge("B", "C", models.MechanismRename),
		edge("C", "B", models.MechanismRename),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
	assert.Contains(t, err.Error(), "B -> C -> B")
}

func TestNewGraph_RejectsBadEdges(t *testing.T) {
	_, err := NewGraph(nil, []models.LineageEdge{edge("A", "a", models.MechanismRename)})
	assert.ErrorContains(t, err, "self-loop")

	_, err = NewGraph(nil, []models.LineageEdge{edge("A", "", models.MechanismRename)})
	assert.ErrorContains(t, err, "empty ticker")

	_, err = NewGraph(nil, []models.LineageEdge{edge("A", "B", "teleport")})
	assert.ErrorContains(t, err, "unknown mechanism")
}

func TestDefaultData(t *testing.T) {
	d := DefaultData()
	g, err := NewGraph(d.Roots, d.Edges)
	require.NoError(t, err)

	assert.Equal(t, []string{"CTVA", "DOW"}, g.Unresolved())
	assert.Equal(t, []string{"CTVA", "DD", "DOW"}, g.Unresolved("dd"), "held predecessor without a root")
	for _, tk := range []string{"XYZ", "FBHS", "FBIN", "MBC", "ACCO", "VLTO", "SOLV", "GEHC", "OGN", "TKO"} {
		assert.True(t, g.IsResolved(tk), tk)
	}

	path := g.Resolve("fbin")
	require.Len(t, path, 2)
	assert.Equal(t, "FO", path[0].FromTicker)
	assert.Equal(t, "FBHS", path[0].ToTicker)
	assert.Equal(t, "FBHS", path[1].FromTicker)
	assert.Equal(t, "FBIN", path[1].ToTicker)

	edges := g.Edges()
	for i := 1; i < len(edges); i++ {
		assert.LessOrEqual(t, edges[i-1].ToTicker, edges[i].ToTicker)
	}
}

func TestLoadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lineage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"roots": ["OLD"],
		"edges": [{"fromTicker":"OLD","toTicker":"NEW","mechanism":"rename"}],
		"exits": [{"ticker":"GONE","kind":"SOLD"}]
	}`), 0644))

	d, err := LoadData(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"OLD"}, d.Roots)
	require.Len(t, d.Edges, 1)
	assert.Equal(t, models.MechanismRename, d.Edges[0].Mechanism)
	assert.Equal(t, models.ExitSold, d.Exits[0].Kind)

	_, err = LoadData(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestServiceAudit_HeldTickers(t *testing.T) {
	ledger := filepath.Join(t.TempDir(), "holdings.csv")
	require.NoError(t, os.WriteFile(ledger, []byte("ticker,shares\nFBIN,10\nAAPL,3\nDOW,4\n"), 0644))

	svc, err := NewService(DefaultData(), ledger, "", common.NewSilentLogger())
	require.NoError(t, err)

	audit, err := svc.Audit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "CTVA", "DOW"}, audit.Unresolved, "held ticker without a documented predecessor")
	assert.NotContains(t, audit.Unresolved, "FBIN")
	assert.NotContains(t, audit.Roots, "AAPL")
	assert.Len(t, audit.Exits, 3)
	assert.Equal(t, "KKD", audit.Exits[0].Ticker)
}

func TestServiceAudit_MissingLedger(t *testing.T) {
	svc, err := NewService(DefaultData(), filepath.Join(t.TempDir(), "none.json"), "", nil)
	require.NoError(t, err)

	audit, err := svc.Audit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CTVA", "DOW"}, audit.Unresolved)
}

func TestServiceTrace(t *testing.T) {
	svc, err := NewService(DefaultData(), "", "", nil)
	require.NoError(t, err)

	tr := svc.Trace("xyz")
	assert.Equal(t, "XYZ", tr.Ticker)
	assert.True(t, tr.Resolved)
	assert.Equal(t, "SQ", tr.Root)
	require.Len(t, tr.Path, 1)

	tr = svc.Trace("CTVA")
	assert.False(t, tr.Resolved)
	assert.Empty(t, tr.Path)

	tr = svc.Trace("FO")
	assert.True(t, tr.Resolved)
	assert.Equal(t, "FO", tr.Root)

	tr = svc.Trace("aapl")
	assert.False(t, tr.Resolved, "no documented predecessor")
	assert.Empty(t, tr.Root)
	assert.Empty(t, tr.Path)
}
