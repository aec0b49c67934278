package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on top of Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, firebaseApp *firebase.App) (*FirestoreStore, error) {
	client, err := firebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, ErrNoSuchDocument
	}
	if err != nil {
		return Document{}, err
	}

	return Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, data)
	return err
}

func (s *FirestoreStore) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, fields, firestore.MergeAll)
	return err
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields))
	if status.Code(err) == codes.NotFound {
		return ErrNoSuchDocument
	}
	return err
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

func (s *FirestoreStore) GetAll(ctx context.Context, q Query) ([]Document, error) {
	snaps, err := s.buildQuery(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (s *FirestoreStore) NewID() string {
	return shortuuid.New()
}

func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		tx := &firestoreTx{store: s, tx: ftx}
		if err := fn(tx); err != nil {
			return err
		}
		return tx.writeErr
	})
}

func (s *FirestoreStore) Watch(ctx context.Context, q Query) (<-chan []Document, error) {
	it := s.buildQuery(q).Snapshots(ctx)
	out := make(chan []Document, 1)

	go func() {
		defer close(out)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Str("collection", q.Collection).Msg("snapshot listener stopped")
				}
				return
			}

			docSnaps, err := snap.Documents.GetAll()
			if err != nil {
				log.Error().Err(err).Str("collection", q.Collection).Msg("failed to read snapshot documents")
				continue
			}

			docs := make([]Document, 0, len(docSnaps))
			for _, docSnap := range docSnaps {
				docs = append(docs, Document{ID: docSnap.Ref.ID, Data: docSnap.Data()})
			}

			select {
			case out <- docs:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *FirestoreStore) buildQuery(q Query) firestore.Query {
	query := s.client.Collection(q.Collection).Query
	if q.Field != "" {
		query = query.Where(q.Field, q.Op, q.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func toUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	return updates
}

// firestoreTx adapts *firestore.Transaction to the Tx interface. Firestore
// buffers writes until commit, so write errors are carried to commit time.
type firestoreTx struct {
	store    *FirestoreStore
	tx       *firestore.Transaction
	writeErr error
}

func (t *firestoreTx) Get(collection, id string) (Document, error) {
	snap, err := t.tx.Get(t.store.client.Collection(collection).Doc(id))
	if status.Code(err) == codes.NotFound {
		return Document{}, ErrNoSuchDocument
	}
	if err != nil {
		return Document{}, err
	}
	return Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (t *firestoreTx) GetAll(q Query) ([]Document, error) {
	snaps, err := t.tx.Documents(t.store.buildQuery(q)).GetAll()
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (t *firestoreTx) Set(collection, id string, data map[string]any) {
	t.record(t.tx.Set(t.store.client.Collection(collection).Doc(id), data))
}

func (t *firestoreTx) Update(collection, id string, fields map[string]any) {
	t.record(t.tx.Update(t.store.client.Collection(collection).Doc(id), toUpdates(fields)))
}

func (t *firestoreTx) Delete(collection, id string) {
	t.record(t.tx.Delete(t.store.client.Collection(collection).Doc(id)))
}

func (t *firestoreTx) record(err error) {
	if err != nil && t.writeErr == nil {
		t.writeErr = err
	}
}
