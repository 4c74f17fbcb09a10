package database

import "database/sql"

// Row is one result row keyed by column name.
type Row map[string]any

// RowSet holds the rows of one statement along with the column order the
// statement produced them in.
type RowSet struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows in the set.
func (rs *RowSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// First returns the first row, or nil if the set is empty.
func (rs *RowSet) First() Row {
	if rs.Len() == 0 {
		return nil
	}
	return rs.Rows[0]
}

// clone returns a set with copied slices so holders cannot disturb each
// other by appending or reordering rows; the row maps themselves are
// shared and treated as read-only.
func (rs *RowSet) clone() *RowSet {
	if rs == nil {
		return nil
	}
	return &RowSet{
		Columns: append([]string(nil), rs.Columns...),
		Rows:    append([]Row(nil), rs.Rows...),
	}
}

// collectRows drains an *sql.Rows into a RowSet. []byte values are copied
// to strings because drivers may reuse the backing buffer between rows.
func collectRows(rows *sql.Rows) (*RowSet, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	set := &RowSet{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		set.Rows = append(set.Rows, row)
	}

	return set, rows.Err()
}
