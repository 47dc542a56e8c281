package scanner

import (
	"fmt"
	"time"

	"github.com/vizcount/vizcount/server/inventorydb"
)

type EventKind string

const (
	EventSaved         EventKind = "saved"
	EventNotInCatalog  EventKind = "notInCatalog"
	EventCatalogError  EventKind = "catalogError"
	EventDuplicate     EventKind = "duplicate"
	EventStoreFailed   EventKind = "storeFailed"
	EventQueueOverflow EventKind = "queueOverflow"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is a toast-style message for the user, produced once per resolver job
// SYNC-SCANNER-EVENT
type Event struct {
	Kind      EventKind                `json:"kind"`
	Message   string                   `json:"message"`
	Severity  Severity                 `json:"severity"`
	Time      time.Time                `json:"time"`
	PrimaryID string                   `json:"primaryID"`
	Serial    string                   `json:"serial,omitempty"`
	Item      *inventorydb.ScannedItem `json:"item,omitempty"`
}

// Returns true if the resolver gave up before writing, and the same label may be scanned again
func (e *Event) allowsRescan() bool {
	switch e.Kind {
	case EventNotInCatalog, EventCatalogError, EventStoreFailed, EventQueueOverflow:
		return true
	}
	return false
}

func newEvent(kind EventKind, job *ResolveJob, now time.Time) *Event {
	e := &Event{
		Kind:      kind,
		Time:      now,
		PrimaryID: job.PrimaryID,
	}
	switch kind {
	case EventSaved:
		e.Severity = SeveritySuccess
	case EventNotInCatalog, EventDuplicate:
		e.Severity = SeverityWarning
	default:
		e.Severity = SeverityError
	}
	switch kind {
	case EventNotInCatalog:
		e.Message = fmt.Sprintf("Product %v is not in the catalog. Define this product first.", job.PrimaryID)
	case EventCatalogError:
		e.Message = fmt.Sprintf("Product %v appears more than once in the catalog", job.PrimaryID)
	case EventStoreFailed:
		e.Message = fmt.Sprintf("Failed to save product %v. Please scan again.", job.PrimaryID)
	case EventQueueOverflow:
		e.Message = "Scanner is busy. Please scan again."
	}
	return e
}
