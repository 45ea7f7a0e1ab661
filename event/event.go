package event

import (
	"time"

	"github.com/xraph/spool/id"
)

// Kind names a domain event.
type Kind string

const (
	// KindPrinterActivated is published when a printer goes from offline
	// to online.
	KindPrinterActivated Kind = "printer.activated"
	// KindPrinterDeactivated is published when a printer goes offline.
	KindPrinterDeactivated Kind = "printer.deactivated"
)

// Event is a domain event raised by a state change that other components
// react to, such as a printer coming online.
type Event struct {
	ID          id.EventID   `json:"id"`
	Kind        Kind         `json:"kind"`
	PrinterID   id.PrinterID `json:"printer_id,omitempty"`
	PrinterName string       `json:"printer_name,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// New returns an event of the given kind stamped with a fresh ID.
func New(kind Kind) *Event {
	return &Event{
		ID:         id.NewEventID(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
	}
}
