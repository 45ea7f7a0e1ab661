package printer

import (
	"cmp"
	"slices"
)

// Criteria describes the printer a document needs. Empty fields do not
// constrain the selection.
type Criteria struct {
	Type       Type
	Location   string
	Department string
}

// Selection weights.
const (
	scoreDefault            = 10000
	scoreLocationMatch      = 1000
	scoreLocationUnassigned = 100
	scoreDeptMatch          = 500
	scoreDeptUnassigned     = 50
)

// Score rates how well p fits c. Printers without a location or department
// score as fallbacks for any location or department.
func Score(p *Printer, c Criteria) int {
	score := p.Priority
	if p.IsDefault {
		score += scoreDefault
	}

	switch {
	case c.Location != "" && p.Location == c.Location:
		score += scoreLocationMatch
	case p.Location == "":
		score += scoreLocationUnassigned
	}

	switch {
	case c.Department != "" && p.Department == c.Department:
		score += scoreDeptMatch
	case p.Department == "":
		score += scoreDeptUnassigned
	}

	return score
}

// Eligible reports whether p belongs to the candidate pool for c.
func Eligible(p *Printer, c Criteria) bool {
	if !p.Active {
		return false
	}
	if c.Type != "" && p.Type != c.Type {
		return false
	}
	if c.Location != "" && p.Location != "" && p.Location != c.Location {
		return false
	}
	if c.Department != "" && p.Department != "" && p.Department != c.Department {
		return false
	}
	return true
}

// Best picks the highest scoring eligible printer. Ties go to the lowest
// ID. When no printer is eligible it falls back to the active printer with
// the highest priority. It returns nil when no printer is active.
func Best(printers []*Printer, c Criteria) *Printer {
	var (
		best      *Printer
		bestScore int
	)
	for _, p := range printers {
		if !Eligible(p, c) {
			continue
		}
		s := Score(p, c)
		if best == nil || s > bestScore || (s == bestScore && p.ID.Compare(best.ID) < 0) {
			best, bestScore = p, s
		}
	}
	if best != nil {
		return best
	}
	return fallback(printers)
}

func fallback(printers []*Printer) *Printer {
	active := slices.DeleteFunc(slices.Clone(printers), func(p *Printer) bool { return !p.Active })
	if len(active) == 0 {
		return nil
	}
	slices.SortFunc(active, ComparePriority)
	return active[0]
}

// ComparePriority orders printers by priority descending, then ID
// ascending.
func ComparePriority(a, b *Printer) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	return a.ID.Compare(b.ID)
}
