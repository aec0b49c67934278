package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "teams", "missing")
	require.ErrorIs(t, err, ErrNoSuchDocument)

	err = store.Set(ctx, "teams", "t1", map[string]any{"name": "Alpha", "size": 3})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "teams", "t1")
	require.NoError(t, err)
	require.Equal(t, "Alpha", doc.Data["name"])

	err = store.Merge(ctx, "teams", "t1", map[string]any{"size": 4})
	require.NoError(t, err)
	doc, err = store.Get(ctx, "teams", "t1")
	require.NoError(t, err)
	require.Equal(t, "Alpha", doc.Data["name"])
	require.Equal(t, 4, doc.Data["size"])

	err = store.Update(ctx, "teams", "missing", map[string]any{"size": 1})
	require.ErrorIs(t, err, ErrNoSuchDocument)

	err = store.Delete(ctx, "teams", "t1")
	require.NoError(t, err)
	_, err = store.Get(ctx, "teams", "t1")
	require.ErrorIs(t, err, ErrNoSuchDocument)
}

func TestMemoryStoreMutationIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	original := map[string]any{"tags": []string{"a"}}
	require.NoError(t, store.Set(ctx, "docs", "d1", original))

	// Mutating the caller's map after Set must not leak into the store.
	original["tags"] = []string{"changed"}

	doc, err := store.Get(ctx, "docs", "d1")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, doc.Data["tags"])

	// Mutating a read result must not change the stored document.
	doc.Data["tags"] = []string{"also changed"}
	again, err := store.Get(ctx, "docs", "d1")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, again.Data["tags"])
}

func TestMemoryStoreQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, store.Set(ctx, "notifications", "n1", map[string]any{
		"recipientId": "u1", "createdAt": base.Add(-2 * time.Hour),
	}))
	require.NoError(t, store.Set(ctx, "notifications", "n2", map[string]any{
		"recipientId": "u1", "createdAt": base,
	}))
	require.NoError(t, store.Set(ctx, "notifications", "n3", map[string]any{
		"recipientId": "u2", "createdAt": base.Add(-time.Hour),
	}))

	docs, err := store.GetAll(ctx, Query{
		Collection: "notifications",
		Field:      "recipientId",
		Op:         OpEqual,
		Value:      "u1",
		OrderBy:    "createdAt",
		Desc:       true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "n2", docs[0].ID)
	require.Equal(t, "n1", docs[1].ID)

	docs, err = store.GetAll(ctx, Query{
		Collection: "notifications",
		Field:      "recipientId",
		Op:         OpEqual,
		Value:      "u1",
		OrderBy:    "createdAt",
		Desc:       true,
		Limit:      1,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "n2", docs[0].ID)
}

func TestMemoryStoreArrayContains(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "teams", "t1", map[string]any{"memberIds": []string{"u1", "u2"}}))
	require.NoError(t, store.Set(ctx, "teams", "t2", map[string]any{"memberIds": []any{"u3"}}))

	docs, err := store.GetAll(ctx, Query{
		Collection: "teams",
		Field:      "memberIds",
		Op:         OpArrayContains,
		Value:      "u2",
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "t1", docs[0].ID)

	docs, err = store.GetAll(ctx, Query{
		Collection: "teams",
		Field:      "memberIds",
		Op:         OpArrayContains,
		Value:      "u3",
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "t2", docs[0].ID)
}

func TestMemoryStoreTransaction(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "counters", "c1", map[string]any{"value": 1}))

	t.Run("writes apply atomically on success", func(t *testing.T) {
		err := store.RunTransaction(ctx, func(tx Tx) error {
			doc, err := tx.Get("counters", "c1")
			if err != nil {
				return err
			}
			tx.Update("counters", "c1", map[string]any{"value": doc.Data["value"].(int) + 1})
			tx.Set("counters", "c2", map[string]any{"value": 10})
			return nil
		})
		require.NoError(t, err)

		doc, err := store.Get(ctx, "counters", "c1")
		require.NoError(t, err)
		require.Equal(t, 2, doc.Data["value"])
		doc, err = store.Get(ctx, "counters", "c2")
		require.NoError(t, err)
		require.Equal(t, 10, doc.Data["value"])
	})

	t.Run("writes discarded on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.RunTransaction(ctx, func(tx Tx) error {
			tx.Update("counters", "c1", map[string]any{"value": 99})
			tx.Delete("counters", "c2")
			return boom
		})
		require.ErrorIs(t, err, boom)

		doc, err := store.Get(ctx, "counters", "c1")
		require.NoError(t, err)
		require.Equal(t, 2, doc.Data["value"])
		_, err = store.Get(ctx, "counters", "c2")
		require.NoError(t, err)
	})

	t.Run("reads see pre-transaction state", func(t *testing.T) {
		err := store.RunTransaction(ctx, func(tx Tx) error {
			tx.Update("counters", "c1", map[string]any{"value": 5})
			doc, err := tx.Get("counters", "c1")
			if err != nil {
				return err
			}
			require.Equal(t, 2, doc.Data["value"])
			return nil
		})
		require.NoError(t, err)
	})
}

func TestMemoryStoreWatch(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Set(ctx, "notifications", "n1", map[string]any{"recipientId": "u1"}))

	updates, err := store.Watch(ctx, Query{
		Collection: "notifications",
		Field:      "recipientId",
		Op:         OpEqual,
		Value:      "u1",
	})
	require.NoError(t, err)

	// Initial snapshot.
	docs := <-updates
	require.Len(t, docs, 1)

	require.NoError(t, store.Set(ctx, "notifications", "n2", map[string]any{"recipientId": "u1"}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case docs = <-updates:
			if len(docs) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("watch never delivered the second document")
		}
	}
}
