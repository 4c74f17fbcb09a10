package expense

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	return d, nil
}

// lockSuffix returns the row-lock clause for the backend. The embedded
// engine serializes writers at the database level, so no clause is needed
// there.
func lockSuffix(kind database.Kind, lock bool) string {
	if lock && kind == database.KindServer {
		return " FOR UPDATE"
	}
	return ""
}

// Accessors for reads served through the store's row-map surface. The
// embedded driver hands numeric columns back as int64 where the server
// driver hands back text, so both shapes are tolerated.
func rowString(row database.Row, col string) string {
	switch v := row[col].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func rowInt(row database.Row, col string) int {
	return int(rowInt64(row, col))
}

func rowInt64(row database.Row, col string) int64 {
	switch v := row[col].(type) {
	case int64:
		return v
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func rowTime(row database.Row, col string) time.Time {
	return parseTime(rowString(row, col))
}

func rowTimePtr(row database.Row, col string) *time.Time {
	s := rowString(row, col)
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}
