package parser

// DropReason explains why a section or row was not imported.
type DropReason string

const (
	DropIncompleteSection DropReason = "incomplete_section"
	DropMissingDate       DropReason = "missing_date"
	DropMissingAmount     DropReason = "missing_amount"
	DropNonPositiveAmount DropReason = "non_positive_amount"
	DropDebitOnly         DropReason = "debit_only"
	DropMalformedRow      DropReason = "malformed_row"
)

// Diagnostics counts what happened to each record of a file. It does not
// change which records are imported; it only reports the ones that were not.
type Diagnostics struct {
	Seen          int                `json:"seen"`
	Parsed        int                `json:"parsed"`
	Dropped       map[DropReason]int `json:"dropped"`
	DateFallbacks int                `json:"date_fallbacks"`
}

func newDiagnostics() Diagnostics {
	return Diagnostics{Dropped: make(map[DropReason]int)}
}

func (d *Diagnostics) drop(reason DropReason) {
	if d.Dropped == nil {
		d.Dropped = make(map[DropReason]int)
	}
	d.Dropped[reason]++
}

// DroppedTotal is the number of records that were seen but not imported.
func (d Diagnostics) DroppedTotal() int {
	total := 0
	for _, n := range d.Dropped {
		total += n
	}
	return total
}
