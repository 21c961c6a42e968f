// Package changefeed carries row-level change notifications from the entity store to
// in-process subscribers.
package changefeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Table names a watched record type.
type Table string

const (
	TableTickets   Table = "tickets"
	TableEquipment Table = "equipment"
	TableCustomers Table = "customers"
	TableProfiles  Table = "profiles"

	// TableAll is a resync signal delivered to every subscriber, used after the
	// notification connection was re-established and events may have been missed.
	TableAll Table = "*"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	OpResync Op = "RESYNC"
)

// DefaultChannel is the notification channel used by the store triggers and the Redis feed.
const DefaultChannel = "entity_changes"

// Event is the payload emitted for a single row mutation.
type Event struct {
	ID    string    `json:"event_id,omitempty"`
	Table Table     `json:"table"`
	Op    Op        `json:"op"`
	RowID string    `json:"id,omitempty"`
	At    time.Time `json:"at,omitempty"`
}

func NewEvent(table Table, op Op, rowID string) Event {
	return Event{
		ID:    ulid.Make().String(),
		Table: table,
		Op:    op,
		RowID: rowID,
		At:    time.Now().UTC(),
	}
}

// ResyncEvent asks every subscriber to reload.
func ResyncEvent() Event {
	return NewEvent(TableAll, OpResync, "")
}

// ParseEvent decodes a notification payload.
func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode change event: %w", err)
	}
	if ev.Table == "" {
		return Event{}, fmt.Errorf("change event without table")
	}
	return ev, nil
}
