package printer

import "strings"

var typeKeywords = []struct {
	t        Type
	keywords []string
}{
	{TypeReceipt, []string{"receipt", "pos", "thermal", "tm-", "epson"}},
	{TypeLabel, []string{"label", "zebra", "barcode", "zpl"}},
	{TypeDocument, []string{"laser", "inkjet", "office", "hp", "canon", "brother"}},
}

// InferType guesses a printer's type from its system name. Receipt
// keywords win over label keywords, which win over document keywords.
func InferType(systemName string) Type {
	name := strings.ToLower(systemName)
	for _, group := range typeKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(name, kw) {
				return group.t
			}
		}
	}
	return TypeOther
}

// Discovered builds a printer for a name reported by discovery, with the
// type inferred from the name and the raw formats that type usually
// speaks enabled.
func Discovered(systemName string) *Printer {
	p := New(systemName, InferType(systemName))
	p.SystemName = systemName
	p.Description = "Discovered printer"
	switch p.Type {
	case TypeReceipt:
		p.SupportsESCPOS = true
		p.PaperSize = Paper80mm
	case TypeLabel:
		p.SupportsZPL = true
		p.PaperSize = Paper4x6
	}
	return p
}

// SyncResult summarizes a discovery sync.
type SyncResult struct {
	Created     []*Printer `json:"created"`
	Reactivated []*Printer `json:"reactivated"`
	Unchanged   []*Printer `json:"unchanged"`
}
