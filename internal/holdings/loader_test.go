package holdings

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadJSON_ValidAndInvalidRows(t *testing.T) {
	ledger := `[
		{"ticker": "aaa", "name": "Alpha", "shares": 10, "cost_basis": 95.5},
		{"ticker": "brk.b", "shares": "5"},
		{"ticker": "", "shares": 3},
		{"ticker": "ZERO", "shares": 0},
		{"ticker": "NEG", "shares": -2},
		{"ticker": "BAD", "shares": "lots"},
		{"ticker": 42, "shares": 1},
		{"symbol": "ccc", "quantity": "1,250", "costBasis": "12.00"}
	]`

	res, err := Load(strings.NewReader(ledger), FormatJSON)
	require.NoError(t, err)

	require.Len(t, res.Holdings, 3)
	assert.Equal(t, "AAA", res.Holdings[0].Ticker)
	assert.Equal(t, "Alpha", res.Holdings[0].Name)
	assert.Equal(t, "10", res.Holdings[0].Shares.String())
	require.NotNil(t, res.Holdings[0].CostBasis)
	assert.Equal(t, "95.5", res.Holdings[0].CostBasis.String())

	assert.Equal(t, "BRK-B", res.Holdings[1].Ticker)
	assert.Nil(t, res.Holdings[1].CostBasis)

	assert.Equal(t, "CCC", res.Holdings[2].Ticker)
	assert.Equal(t, "1250", res.Holdings[2].Shares.String())
	assert.Equal(t, 8, res.Holdings[2].Row)

	require.Len(t, res.Errors, 5)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, "empty ticker", res.Errors[0].Reason)
	assert.Equal(t, "ZERO", res.Errors[1].Ticker)
	assert.Equal(t, "NEG", res.Errors[2].Ticker)
	assert.Equal(t, "BAD", res.Errors[3].Ticker)
	assert.Equal(t, 7, res.Errors[4].Row)
}

func TestLoadJSON_OutOfRangeValuesRejected(t *testing.T) {
	ledger := `[
		{"ticker": "AAA", "shares": "1e400"},
		{"ticker": "BBB", "shares": 1e400},
		{"ticker": "CCC", "shares": 2, "cost_basis": "9e999"},
		{"ticker": "DDD", "shares": 4}
	]`

	res, err := Load(strings.NewReader(ledger), FormatJSON)
	require.NoError(t, err)

	require.Len(t, res.Holdings, 1)
	assert.Equal(t, "DDD", res.Holdings[0].Ticker)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, "AAA", res.Errors[0].Ticker)
	assert.Contains(t, res.Errors[0].Reason, "out of range")
	assert.Equal(t, "BBB", res.Errors[1].Ticker)
	assert.Equal(t, "CCC", res.Errors[2].Ticker)
	assert.Contains(t, res.Errors[2].Reason, "cost basis")
}

func TestLoadJSON_WrappedObject(t *testing.T) {
	res, err := Load(strings.NewReader(`{"holdings": [{"ticker": "XYZ", "shares": 1.5}]}`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, res.Holdings, 1)
	assert.Equal(t, "1.5", res.Holdings[0].Shares.String())
}

func TestLoadJSON_EmptyLedger(t *testing.T) {
	for _, in := range []string{"", "[]", "  \n"} {
		res, err := Load(strings.NewReader(in), FormatJSON)
		require.NoError(t, err, "input %q", in)
		assert.Empty(t, res.Holdings)
		assert.Empty(t, res.Errors)
	}
}

func TestLoadJSON_Unreadable(t *testing.T) {
	_, err := Load(strings.NewReader(`{"holdings": [`), FormatJSON)
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`"just a string"`), FormatJSON)
	assert.Error(t, err)
}

func TestLoadCSV_CaseInsensitiveHeaders(t *testing.T) {
	ledger := "Symbol,Company,QTY,Cost Basis\n" +
		"aaa,Alpha Inc,10,100\n" +
		"\n" +
		"bbb,Beta,abc,\n" +
		"ccc,Gamma,\"2,000\",oops\n"

	res, err := Load(strings.NewReader(ledger), FormatCSV)
	require.NoError(t, err)

	require.Len(t, res.Holdings, 2)
	assert.Equal(t, "AAA", res.Holdings[0].Ticker)
	assert.Equal(t, "Alpha Inc", res.Holdings[0].Name)
	require.NotNil(t, res.Holdings[0].CostBasis)
	assert.Equal(t, "CCC", res.Holdings[1].Ticker)
	assert.Equal(t, "2000", res.Holdings[1].Shares.String())
	assert.Nil(t, res.Holdings[1].CostBasis, "unparseable cost basis is dropped, not fatal")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "BBB", res.Errors[0].Ticker)
}

func TestLoadCSV_MissingMandatoryColumn(t *testing.T) {
	_, err := Load(strings.NewReader("ticker,name\nAAA,Alpha\n"), FormatCSV)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "shares")

	_, err = Load(strings.NewReader("name,shares\nAlpha,1\n"), FormatCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker")
}

func TestLoadCSV_HeaderOnly(t *testing.T) {
	res, err := Load(strings.NewReader("ticker,shares\n"), FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, res.Holdings)
}

func TestLoadDelimited_SniffsDelimiter(t *testing.T) {
	tests := map[string]string{
		"semicolon": "ticker;shares\nAAA;3\n",
		"tab":       "ticker\tshares\nAAA\t3\n",
		"pipe":      "ticker|shares\nAAA|3\n",
	}
	for name, ledger := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := Load(strings.NewReader(ledger), FormatDelimited)
			require.NoError(t, err)
			require.Len(t, res.Holdings, 1)
			assert.Equal(t, "AAA", res.Holdings[0].Ticker)
			assert.Equal(t, "3", res.Holdings[0].Shares.String())
		})
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Ticker", "Name", "Shares"},
		{"fo", "Fortune Brands", 25},
		{"bad", "Broken", "n/a"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	res, err := Load(&buf, FormatXLSX)
	require.NoError(t, err)
	require.Len(t, res.Holdings, 1)
	assert.Equal(t, "FO", res.Holdings[0].Ticker)
	assert.Equal(t, "25", res.Holdings[0].Shares.String())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "BAD", res.Errors[0].Ticker)
}

func TestLoadFile_MissingNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holdings.json")
	_, err := LoadFile(path, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), path)
}

func TestLoadFile_InfersFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holdings.csv")
	require.NoError(t, os.WriteFile(path, []byte("ticker,shares\nAAA,10\nAAA,5\nbbb,1\n"), 0644))

	res, err := LoadFile(path, "")
	require.NoError(t, err)
	assert.Len(t, res.Holdings, 3)
	assert.Equal(t, []string{"AAA", "BBB"}, res.Tickers())
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("a/b/holdings.JSON"))
	assert.Equal(t, FormatCSV, FormatFromPath("h.csv"))
	assert.Equal(t, FormatTSV, FormatFromPath("h.tsv"))
	assert.Equal(t, FormatXLSX, FormatFromPath("h.xlsx"))
	assert.Equal(t, FormatDelimited, FormatFromPath("h.txt"))
}
