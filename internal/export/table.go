package export

import (
	"strconv"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// Fixed leading columns of every export.
var fixedColumns = []string{"id", "name", "created_at"}

// Table is the in-memory form of an export: one header row and one row
// per client. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// BuildTable lays out clients as an export table.
//
// The header is id, name, created_at followed by every distinct extra
// field key in first-seen order (clients in the given order, fields in
// insertion order). A client lacking a key gets an empty cell.
func BuildTable(clients []record.Client) Table {
	header := append([]string(nil), fixedColumns...)
	column := make(map[string]int)
	for _, c := range clients {
		for _, f := range c.Fields {
			if _, ok := column[f.Key]; ok {
				continue
			}
			column[f.Key] = len(header)
			header = append(header, f.Key)
		}
	}

	rows := make([][]string, 0, len(clients))
	for _, c := range clients {
		row := make([]string, len(header))
		row[0] = strconv.FormatInt(c.ID, 10)
		row[1] = c.Name
		row[2] = c.CreatedAt.UTC().Format(record.TimeLayout)
		for _, f := range c.Fields {
			row[column[f.Key]] = f.Value
		}
		rows = append(rows, row)
	}

	return Table{Header: header, Rows: rows}
}

// Equal reports whether two tables have identical header and cells.
func (t Table) Equal(o Table) bool {
	if !equalRow(t.Header, o.Header) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Rows {
		if !equalRow(t.Rows[i], o.Rows[i]) {
			return false
		}
	}
	return true
}

func equalRow(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
