package models

// Mechanism is the corporate action connecting two tickers.
type Mechanism string

const (
	MechanismRename               Mechanism = "rename"
	MechanismSpinoff              Mechanism = "spinoff"
	MechanismMerger               Mechanism = "merger"
	MechanismShareClassConversion Mechanism = "share-class-conversion"
	MechanismBuyout               Mechanism = "buyout"
	MechanismUnresolved           Mechanism = "unresolved"
)

// Known reports whether m is one of the defined mechanisms.
func (m Mechanism) Known() bool {
	switch m {
	case MechanismRename, MechanismSpinoff, MechanismMerger,
		MechanismShareClassConversion, MechanismBuyout, MechanismUnresolved:
		return true
	}
	return false
}

// LineageEdge maps a predecessor security to the one it became.
type LineageEdge struct {
	FromTicker string    `json:"fromTicker"`
	FromName   string    `json:"fromName,omitempty"`
	ToTicker   string    `json:"toTicker"`
	ToName     string    `json:"toName,omitempty"`
	Mechanism  Mechanism `json:"mechanism"`
	Notes      string    `json:"notes,omitempty"`
}

// ExitKind distinguishes discretionary sales from corporate exits.
type ExitKind string

const (
	ExitSold   ExitKind = "SOLD"
	ExitBuyout ExitKind = "BUYOUT"
)

// Exit is a position that left the portfolio. Exits are excluded from valuation.
type Exit struct {
	Ticker   string   `json:"ticker"`
	Name     string   `json:"name,omitempty"`
	Kind     ExitKind `json:"kind"`
	BuyDate  string   `json:"buyDate,omitempty"`
	ExitDate string   `json:"exitDate,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// LineageAudit is the reconciliation view served to the audit page.
type LineageAudit struct {
	Edges      []LineageEdge `json:"edges"`
	Roots      []string      `json:"roots"`
	Unresolved []string      `json:"unresolved"`
	Exits      []Exit        `json:"exits"`
}

// LineageTrace is the resolved path for a single ticker.
type LineageTrace struct {
	Ticker   string        `json:"ticker"`
	Resolved bool          `json:"resolved"`
	Root     string        `json:"root,omitempty"`
	Path     []LineageEdge `json:"path"`
}
