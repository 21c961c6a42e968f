// Package export renders the ticket audit report.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"impriartex-service/internal/domain/ticket"
)

const (
	MarkerCompleted = "yes"
	MarkerPending   = "pending"

	shortIDLength = 8
)

var Header = []string{"ID", "DATE", "CUSTOMER", "MODEL", "SERIAL", "STATUS", "COMPLETED"}

type Options struct {
	// Legacy joins fields with commas without quoting.
	Legacy bool

	// Location decides which calendar day a ticket was created on. Defaults to UTC.
	Location *time.Location
}

// Generate renders tickets as a delimited report. When both start and end are given only
// tickets created on a calendar day within [start, end] are included; otherwise all are.
func Generate(tickets []ticket.View, start, end *time.Time, opts Options) ([]byte, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	filter := start != nil && end != nil
	var from, to int
	if filter {
		from, to = dayKey(*start, start.Location()), dayKey(*end, end.Location())
	}

	records := make([][]string, 0, len(tickets)+1)
	records = append(records, Header)
	for i := range tickets {
		t := &tickets[i]
		if filter {
			day := dayKey(t.CreatedAt, loc)
			if day < from || day > to {
				continue
			}
		}
		records = append(records, row(t, loc))
	}

	if opts.Legacy {
		return joinRaw(records), nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseDate reads a YYYY-MM-DD bound. An empty string means no bound.
func ParseDate(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &d, nil
}

// ShortID is the uppercased prefix used to identify a ticket in reports.
func ShortID(t *ticket.View) string {
	id := t.ID.String()
	if len(id) > shortIDLength {
		id = id[:shortIDLength]
	}
	return strings.ToUpper(id)
}

func row(t *ticket.View, loc *time.Location) []string {
	marker := MarkerPending
	if t.CompletedAt != nil {
		marker = MarkerCompleted
	}
	return []string{
		ShortID(t),
		t.CreatedAt.In(loc).Format(time.RFC3339),
		t.Customer.Name,
		t.Equipment.Model,
		t.Equipment.Serial,
		string(t.Status),
		marker,
	}
}

func dayKey(ts time.Time, loc *time.Location) int {
	y, m, d := ts.In(loc).Date()
	return y*10000 + int(m)*100 + d
}

func joinRaw(records [][]string) []byte {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(strings.Join(r, ","))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
