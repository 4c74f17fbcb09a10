// Package manager provides the per-entity manager families over the two
// storage backends. Each manager exposes the same list/get/add/update/
// delete surface; the embedded and server families implement it
// independently and share nothing but the interface.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/utils"
)

// Payload carries caller-supplied column values. Keys that do not match a
// recognized column are silently dropped.
type Payload map[string]any

// Manager is the per-entity operation set.
type Manager interface {
	// Entity returns the entity name this manager serves.
	Entity() string

	// List returns rows matching the filter, sorted by the entity's sort
	// column. A limit of 0 means no limit.
	List(ctx context.Context, filter Payload, limit int) (*database.RowSet, error)

	// Get returns one row or a NotFound error.
	Get(ctx context.Context, id string) (database.Row, error)

	// Add inserts a new row and returns the assigned primary identity.
	Add(ctx context.Context, payload Payload) (string, error)

	// Update applies the recognized columns of partial and refreshes
	// updated_date. Unknown ids yield NotFound.
	Update(ctx context.Context, id string, partial Payload) error

	// Delete removes the row, soft or hard per the entity spec.
	Delete(ctx context.Context, id string) error
}

// Column describes one writable column of an entity. Validate, when set,
// rejects malformed non-empty values.
type Column struct {
	Name     string
	Required bool
	Validate func(string) error
}

// ColumnDef is a backward-compatible column the server family adds to an
// existing table when absent. Columns are only ever added, never dropped
// or renamed.
type ColumnDef struct {
	Name       string
	Definition string
}

// EntitySpec describes one business entity to the generic manager
// families.
type EntitySpec struct {
	Entity       string
	Table        string
	IDColumn     string
	SortColumn   string
	Columns      []Column
	SoftDelete   bool
	StatusColumn string
	IDs          IDPolicy
	CreateSQL    map[database.Kind]string
	ExtraColumns []ColumnDef
}

// knownColumn reports whether name is a column callers may read or write.
func (s EntitySpec) knownColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (s EntitySpec) requiredColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}

// validate runs per-column validators over the recognized values. Empty
// values pass; Required covers presence separately.
func (s EntitySpec) validate(p Payload) error {
	for _, c := range s.Columns {
		if c.Validate == nil {
			continue
		}
		v, ok := p[c.Name].(string)
		if !ok || v == "" {
			continue
		}
		if err := c.Validate(v); err != nil {
			return apperr.Validation(c.Name)
		}
	}
	return nil
}

// sanitized strips control characters from the string values of p.
func sanitized(p Payload) Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		if s, ok := v.(string); ok {
			out[k] = utils.SanitizeString(s)
			continue
		}
		out[k] = v
	}
	return out
}

// nowStamp is the dialect-neutral timestamp format used by both families.
func nowStamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

// Schema bootstrap runs once per process per (backend, table).
var (
	bootstrapMu   sync.Mutex
	bootstrapDone = make(map[string]bool)
)

func bootstrapOnce(key string, fn func() error) error {
	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()
	if bootstrapDone[key] {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	bootstrapDone[key] = true
	return nil
}

// resetBootstrap clears the once-per-process tracking. Test hook only.
func resetBootstrap() {
	bootstrapMu.Lock()
	bootstrapDone = make(map[string]bool)
	bootstrapMu.Unlock()
}
