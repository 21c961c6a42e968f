package inventory

import (
	"strings"

	"impriartex-service/internal/domain/equipment"

	"github.com/google/uuid"
)

const importFields = 7

// ImportRow is a parsed inventory line. Institution keeps the raw seventh column so the
// service can resolve references that are not customer ids.
type ImportRow struct {
	equipment.Equipment
	Institution string
}

// ParseImport turns the delimited inventory text into equipment rows.
//
// The first line is a header and is skipped. Columns are physical_location, model, brand,
// serial, ip_address, location_details, institution_id. Only lines with fewer than seven
// fields are dropped. An institution that parses as a uuid becomes the customer id.
func ParseImport(text, defaultBrand string) []ImportRow {
	if defaultBrand == "" {
		defaultBrand = equipment.DefaultBrand
	}

	lines := strings.Split(text, "\n")
	if len(lines) <= 1 {
		return nil
	}

	rows := make([]ImportRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		row, ok := parseLine(line, defaultBrand)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func parseLine(line, defaultBrand string) (ImportRow, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < importFields {
		return ImportRow{}, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	row := ImportRow{
		Equipment: equipment.Equipment{
			PhysicalLocation: fields[0],
			Model:            fields[1],
			Brand:            fields[2],
			Serial:           fields[3],
			IPAddress:        fields[4],
			LocationDetails:  fields[5],
			Status:           equipment.DefaultStatus,
		},
		Institution: fields[6],
	}
	if row.Brand == "" {
		row.Brand = defaultBrand
	}

	if id, err := uuid.Parse(row.Institution); err == nil {
		row.CustomerID = &id
	}

	return row, true
}
