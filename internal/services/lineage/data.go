package lineage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bobmcallan/classfund/internal/models"
)

// Data is the curated lineage record: explicit purchases, the corporate
// actions connecting them to current tickers, and positions that left the fund.
type Data struct {
	Roots []string             `json:"roots"`
	Edges []models.LineageEdge `json:"edges"`
	Exits []models.Exit        `json:"exits"`
}

// DefaultData returns the built-in audit table.
func DefaultData() Data {
	return Data{
		Roots: []string{"SQ", "FO", "DHR", "MMM", "GE", "MRK", "WWE"},
		Edges: []models.LineageEdge{
			{FromTicker: "SQ", FromName: "Square, Inc.", ToTicker: "XYZ", ToName: "Block, Inc.", Mechanism: models.MechanismRename, Notes: "ticker change"},
			{FromTicker: "FO", FromName: "Fortune Brands", ToTicker: "FBHS", ToName: "Fortune Brands Home & Security", Mechanism: models.MechanismRename, Notes: "ticker change"},
		{FromTicker: "FBHS", FromName: "Fortune Brands Home & Security", ToTicker: "FBIN", ToName: "Fortune Brands Innovations", Mechanism: models.MechanismRename, Notes: "ticker change"},
			{FromTicker: "FO", FromName: "Fortune Brands", ToTicker: "MBC", ToName: "MasterBrand, Inc.", Mechanism: models.MechanismSpinoff},
			{FromTicker: "FO", FromName: "Fortune Brands", ToTicker: "ACCO", ToName: "ACCO Brands", Mechanism: models.MechanismSpinoff},
			{FromTicker: "DHR", FromName: "Danaher", ToTicker: "VLTO", ToName: "Veralto", Mechanism: models.MechanismSpinoff},
			{FromTicker: "MMM", FromName: "3M", ToTicker: "SOLV", ToName: "Solventum", Mechanism: models.MechanismSpinoff},
			{FromTicker: "GE", FromName: "General Electric", ToTicker: "GEHC", ToName: "GE HealthCare Technologies", Mechanism: models.MechanismSpinoff},
			{FromTicker: "MRK", FromName: "Merck", ToTicker: "OGN", ToName: "Organon & Co.", Mechanism: models.MechanismSpinoff},
			{FromTicker: "WWE", FromName: "World Wrestling Entertainment", ToTicker: "TKO", ToName: "TKO Group Holdings", Mechanism: models.MechanismMerger, Notes: "reorganization/combination"},
			// DowDuPont breakup: predecessor purchase not confirmed
			{FromTicker: "DD", FromName: "DuPont de Nemours", ToTicker: "DOW", ToName: "Dow Inc.", Mechanism: models.MechanismUnresolved, Notes: "DowDuPont breakup lineage, unconfirmed"},
			{FromTicker: "DD", FromName: "DuPont de Nemours", ToTicker: "CTVA", ToName: "Corteva", Mechanism: models.MechanismUnresolved, Notes: "DowDuPont breakup lineage, unconfirmed"},
		},
		Exits: []models.Exit{
			{Ticker: "ORCL", Name: "Oracle", Kind: models.ExitSold, Notes: "Sold by fund manager"},
			{Ticker: "KKD", Name: "Krispy Kreme", Kind: models.ExitSold, Notes: "Sold by fund manager"},
			{Ticker: "TBL", Name: "Timberland", Kind: models.ExitBuyout, Notes: "Exited via M&A / private equity buyout"},
		},
	}
}

// LoadData reads lineage data from a JSON file with the same shape as Data.
func LoadData(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("failed to read lineage data %s: %w", path, err)
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("failed to parse lineage data %s: %w", path, err)
	}
	return d, nil
}
