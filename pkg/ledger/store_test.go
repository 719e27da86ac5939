package ledger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klokku/appointments/internal/test_utils"
	"github.com/klokku/appointments/pkg/appointment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asha = appointment.Record{
	FullName: "Asha Rao",
	Email:    "asha@example.com",
	Phone:    "9876543210",
	Date:     "2025-09-01",
	Time:     "10:00",
}

var ravi = appointment.Record{
	FullName: "Ravi Kumar",
	Email:    "ravi@example.com",
	Phone:    "9123456780",
	Date:     "2025-09-01",
	Time:     "11:00",
}

type storeFactory func(t *testing.T) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"csv": func(t *testing.T) Store {
			return NewCSVStore(filepath.Join(t.TempDir(), "appointments.csv"), nil)
		},
		"sqlite": func(t *testing.T) Store {
			return NewSQLStore(test_utils.SetupTestDB(t), DialectSQLite)
		},
		"stub": func(t *testing.T) Store {
			return NewStubStore()
		},
	}
}

func TestStore_Contract(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			runStoreContract(t, factory)
		})
	}
}

func TestSQLStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	runStoreContract(t, func(t *testing.T) Store {
		return NewSQLStore(test_utils.SetupPostgresDB(t), DialectPostgres)
	})
}

func runStoreContract(t *testing.T, factory storeFactory) {
	ctx := context.Background()

	t.Run("empty ledger lists nothing", func(t *testing.T) {
		store := factory(t)
		records, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("insert then find", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Insert(ctx, asha))

		got, err := store.FindByEmail(ctx, "ASHA@example.com ")
		require.NoError(t, err)
		assert.Equal(t, asha, got)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Insert(ctx, asha))

		again := asha
		again.Time = "15:00"
		err := store.Insert(ctx, again)
		assert.ErrorIs(t, err, appointment.ErrDuplicateIdentity)

		records, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("find unknown email", func(t *testing.T) {
		store := factory(t)
		_, err := store.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, appointment.ErrNotFound)
	})

	t.Run("update replaces only date and time", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Insert(ctx, asha))

		updated, err := store.Update(ctx, asha.Email, "2025-09-02", "14:00")
		require.NoError(t, err)
		assert.Equal(t, asha.FullName, updated.FullName)
		assert.Equal(t, asha.Phone, updated.Phone)
		assert.Equal(t, "2025-09-02", updated.Date)
		assert.Equal(t, "14:00", updated.Time)

		got, err := store.FindByEmail(ctx, asha.Email)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("update unknown email", func(t *testing.T) {
		store := factory(t)
		_, err := store.Update(ctx, "nobody@example.com", "2025-09-02", "14:00")
		assert.ErrorIs(t, err, appointment.ErrNotFound)
	})

	t.Run("delete removes the record once", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Insert(ctx, asha))
		require.NoError(t, store.Insert(ctx, ravi))

		removed, err := store.Delete(ctx, asha.Email)
		require.NoError(t, err)
		assert.Equal(t, asha, removed)

		_, err = store.Delete(ctx, asha.Email)
		assert.ErrorIs(t, err, appointment.ErrNotFound)

		records, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []appointment.Record{ravi}, records)
	})

	t.Run("list keeps storage order", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Insert(ctx, ravi))
		require.NoError(t, store.Insert(ctx, asha))

		records, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []appointment.Record{ravi, asha}, records)
	})
}

func TestCSVStore_CreatesHeaderOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "appointments.csv")
	store := NewCSVStore(path, nil)

	_, err := store.ListAll(context.Background())
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "full_name,contact_email,phone_number,date,time\n", string(content))
}

func TestCSVStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.csv")
	ctx := context.Background()

	require.NoError(t, NewCSVStore(path, nil).Insert(ctx, asha))

	got, err := NewCSVStore(path, nil).FindByEmail(ctx, asha.Email)
	require.NoError(t, err)
	assert.Equal(t, asha, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestCSVStore_MalformedTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,email\nAsha,asha@example.com\n"), 0o644))

	_, err := NewCSVStore(path, nil).ListAll(context.Background())
	assert.ErrorIs(t, err, ErrMalformedTable)
}

func TestCSVStore_ConcurrentInsertsAreNotLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.csv")
	store := NewCSVStore(path, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := asha
			r.Email = string(rune('a'+i)) + "@example.com"
			assert.NoError(t, store.Insert(ctx, r))
		}(i)
	}
	wg.Wait()

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 10)
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := NewSQLStore(nil, DialectPostgres)
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE c = $3", pg.rebind("UPDATE t SET a = ?, b = ? WHERE c = ?"))

	lite := NewSQLStore(nil, DialectSQLite)
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}
