package manager

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

func newTestStore(t *testing.T) *database.Embedded {
	t.Helper()
	resetBootstrap()

	store, err := database.OpenEmbedded(database.EmbeddedConfig{
		Path: filepath.Join(t.TempDir(), "manager_test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newEmployees(t *testing.T, store *database.Embedded) Manager {
	t.Helper()
	m, err := NewEmbedded(EmployeeSpec(), store, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestEmployeeAddAndGet(t *testing.T) {
	store := newTestStore(t)
	m := newEmployees(t, store)
	ctx := context.Background()

	id, err := m.Add(ctx, Payload{
		"name":       "Kim Minsoo",
		"department": "Engineering",
		"email":      "minsoo@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Now().Format("0601")+"001", id)

	row, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Kim Minsoo", row["name"])
	assert.Equal(t, "active", row["status"])

	// The sequence continues within the month scope.
	second, err := m.Add(ctx, Payload{"name": "Lee Jiwon"})
	require.NoError(t, err)
	assert.Equal(t, time.Now().Format("0601")+"002", second)
}

func TestCustomerIDSequence(t *testing.T) {
	store := newTestStore(t)
	m, err := NewEmbedded(CustomerSpec(), store, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := m.Add(ctx, Payload{"company_name": "Acme GmbH"})
	require.NoError(t, err)
	assert.Equal(t, "C001", first)

	second, err := m.Add(ctx, Payload{"company_name": "Globex"})
	require.NoError(t, err)
	assert.Equal(t, "C002", second)
}

func TestOrderIDSequence(t *testing.T) {
	store := newTestStore(t)
	m, err := NewEmbedded(OrderSpec(), store, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	id, err := m.Add(ctx, Payload{"customer_id": "C001", "currency": "USD"})
	require.NoError(t, err)
	assert.Equal(t, "ORD"+time.Now().Format("20060102")+"001", id)
}

func TestAddValidation(t *testing.T) {
	store := newTestStore(t)
	m := newEmployees(t, store)
	ctx := context.Background()

	_, err := m.Add(ctx, Payload{"department": "Engineering"})
	assert.ErrorIs(t, err, apperr.ErrValidation, "name is required")

	_, err = m.Add(ctx, Payload{"name": "Kim", "email": "not-an-email"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = m.Add(ctx, Payload{"name": "Kim", "currency": "dollars"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUnknownColumnsDropped(t *testing.T) {
	store := newTestStore(t)
	m := newEmployees(t, store)
	ctx := context.Background()

	id, err := m.Add(ctx, Payload{
		"name":        "Kim Minsoo",
		"espionage":   "DROP TABLE employees",
		"employee_id": "9999999",
	})
	require.NoError(t, err)

	row, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.NotContains(t, row, "espionage")
	assert.Equal(t, id, row["employee_id"], "callers cannot pick their own id")
}

func TestUpdate(t *testing.T) {
	store := newTestStore(t)
	m := newEmployees(t, store)
	ctx := context.Background()

	id, err := m.Add(ctx, Payload{"name": "Kim Minsoo"})
	require.NoError(t, err)

	require.NoError(t, m.Update(ctx, id, Payload{"department": "Sales"}))

	row, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Sales", row["department"])
	assert.Equal(t, "Kim Minsoo", row["name"], "untouched columns survive a partial update")

	err = m.Update(ctx, "0000000", Payload{"department": "Sales"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSoftDelete(t *testing.T) {
	store := newTestStore(t)
	m := newEmployees(t, store)
	ctx := context.Background()

	id, err := m.Add(ctx, Payload{"name": "Kim Minsoo"})
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, id))

	set, err := m.List(ctx, Payload{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len(), "soft-deleted rows are excluded from listings")

	// The row still exists; deleting again finds nothing live.
	err = m.Delete(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHardDelete(t *testing.T) {
	store := newTestStore(t)
	m, err := NewEmbedded(OrderSpec(), store, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	id, err := m.Add(ctx, Payload{"customer_id": "C001"})
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, id))

	_, err = m.Get(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListFilterAndLimit(t *testing.T) {
	store := newTestStore(t)
	m := newEmployees(t, store)
	ctx := context.Background()

	for _, p := range []Payload{
		{"name": "A", "department": "Engineering"},
		{"name": "B", "department": "Engineering"},
		{"name": "C", "department": "Sales"},
	} {
		_, err := m.Add(ctx, p)
		require.NoError(t, err)
	}

	set, err := m.List(ctx, Payload{"department": "Engineering"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	set, err = m.List(ctx, Payload{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	set, err = m.List(ctx, Payload{"espionage": "x"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len(), "unrecognized filter keys are dropped")
}

func TestSanitizeStripsControlCharacters(t *testing.T) {
	store := newTestStore(t)
	m := newEmployees(t, store)
	ctx := context.Background()

	id, err := m.Add(ctx, Payload{"name": "Kim\x00 Minsoo\x1f"})
	require.NoError(t, err)

	row, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Kim Minsoo", row["name"])
}
