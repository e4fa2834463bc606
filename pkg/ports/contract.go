package ports

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMarkerStoreContract runs a suite of tests to verify that a MarkerStore implementation
// adheres to the defined interface contract. dir must be a writable working directory.
func RunMarkerStoreContract(t *testing.T, store MarkerStore, dir string) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		marker := &domain.Marker{Actions: []domain.Directive{
			domain.CopyDirective("CONTCAR", "POSCAR"),
			domain.SetDirective("INCAR", map[string]any{"ISTART": 1, "ALGO": "Fast"}),
		}}
		require.NoError(t, store.Save(ctx, dir, marker), "Save should not return error")

		loaded, err := store.Load(ctx, dir)
		require.NoError(t, err, "Load should not return error")
		require.Len(t, loaded.Actions, 2)
		assert.Equal(t, domain.TargetFile, loaded.Actions[0].Target)
		assert.Equal(t, "POSCAR", loaded.Actions[0].CopyTo)
		assert.Equal(t, "Fast", loaded.Actions[1].Set["ALGO"])
		// Persisted numbers may come back as float64.
		assert.EqualValues(t, 1, loaded.Actions[1].Set["ISTART"])
	})

	t.Run("Save Replaces", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, dir, &domain.Marker{Actions: domain.DefaultContinuation()}))
		require.NoError(t, store.Save(ctx, dir, &domain.Marker{}))

		loaded, err := store.Load(ctx, dir)
		require.NoError(t, err)
		assert.Empty(t, loaded.Actions)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, filepath.Join(dir, "never-used"))
		assert.ErrorIs(t, err, domain.ErrMarkerNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, dir, &domain.Marker{Actions: domain.DefaultContinuation()}))
		require.NoError(t, store.Delete(ctx, dir), "Delete should not return error")

		_, err := store.Load(ctx, dir)
		assert.ErrorIs(t, err, domain.ErrMarkerNotFound, "Load after Delete should return ErrMarkerNotFound")

		assert.NoError(t, store.Delete(ctx, dir), "Delete is idempotent")
	})
}

// RunLockerContract verifies that a DistributedLocker grants a key to one holder at a time.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-lock-" + time.Now().Format("20060102150405.000")

	t.Run("Lock and Unlock", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, time.Second)
		require.NoError(t, err)
		require.NoError(t, unlock(ctx))

		unlock, err = locker.Lock(ctx, key, time.Second)
		require.NoError(t, err, "released key can be locked again")
		require.NoError(t, unlock(ctx))
	})

	t.Run("Exclusive", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(short, key, time.Second)
		assert.Error(t, err, "second holder must wait until the context expires")

		require.NoError(t, unlock(ctx))
	})

	t.Run("Waiter Proceeds After Release", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)

		var acquired atomic.Bool
		done := make(chan struct{})
		go func() {
			defer close(done)
			u, err := locker.Lock(ctx, key, time.Second)
			if err == nil {
				acquired.Store(true)
				_ = u(ctx)
			}
		}()

		time.Sleep(50 * time.Millisecond)
		assert.False(t, acquired.Load())
		require.NoError(t, unlock(ctx))

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("waiter never acquired the lock")
		}
		assert.True(t, acquired.Load())
	})
}

// RunRecipeLoaderContract verifies that a RecipeLoader serves exactly the recipes in setupData.
func RunRecipeLoaderContract(t *testing.T, loader RecipeLoader, setupData map[string][]byte) {
	t.Helper()

	t.Run("GetRecipe", func(t *testing.T) {
		for id, want := range setupData {
			got, err := loader.GetRecipe(id)
			require.NoError(t, err, "recipe %s", id)
			assert.Equal(t, string(want), string(got))
		}
	})

	t.Run("GetRecipe NotFound", func(t *testing.T) {
		_, err := loader.GetRecipe("non-existent-recipe")
		assert.Error(t, err)
	})

	t.Run("ListRecipes", func(t *testing.T) {
		ids, err := loader.ListRecipes()
		require.NoError(t, err)
		want := make([]string, 0, len(setupData))
		for id := range setupData {
			want = append(want, id)
		}
		assert.ElementsMatch(t, want, ids)
	})
}
