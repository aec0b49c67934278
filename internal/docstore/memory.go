package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// MemoryStore is an in-process Store used by tests and local development.
// A single mutex serializes transactions, which gives the same observable
// behavior as the backend's transactional isolation: of two racing
// transactions on one document, exactly one sees the pre-commit state.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	watchers    map[*memWatcher]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		watchers:    make(map[*memWatcher]struct{}),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(collection, id)
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	s.mu.Lock()
	s.setLocked(collection, id, cloneData(data))
	s.mu.Unlock()

	s.notifyWatchers()
	return nil
}

func (s *MemoryStore) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	existing, err := s.getLocked(collection, id)
	data := map[string]any{}
	if err == nil {
		data = existing.Data
	}
	for k, v := range fields {
		data[k] = cloneValue(v)
	}
	s.setLocked(collection, id, data)
	s.mu.Unlock()

	s.notifyWatchers()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	existing, err := s.getLocked(collection, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for k, v := range fields {
		existing.Data[k] = cloneValue(v)
	}
	s.setLocked(collection, id, existing.Data)
	s.mu.Unlock()

	s.notifyWatchers()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if col, ok := s.collections[collection]; ok {
		delete(col, id)
	}
	s.mu.Unlock()

	s.notifyWatchers()
	return nil
}

func (s *MemoryStore) GetAll(ctx context.Context, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(q), nil
}

func (s *MemoryStore) NewID() string {
	return shortuuid.New()
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()

	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return err
	}
	if tx.err != nil {
		s.mu.Unlock()
		return tx.err
	}

	for _, w := range tx.writes {
		switch w.kind {
		case writeSet:
			s.setLocked(w.collection, w.id, w.data)
		case writeUpdate:
			existing, err := s.getLocked(w.collection, w.id)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			for k, v := range w.data {
				existing.Data[k] = v
			}
			s.setLocked(w.collection, w.id, existing.Data)
		case writeDelete:
			if col, ok := s.collections[w.collection]; ok {
				delete(col, w.id)
			}
		}
	}
	s.mu.Unlock()

	s.notifyWatchers()
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, q Query) (<-chan []Document, error) {
	w := &memWatcher{q: q, ch: make(chan []Document, 1)}

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	current := s.queryLocked(q)
	s.mu.Unlock()

	w.send(current)

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
		w.close()
	}()

	return w.ch, nil
}

func (s *MemoryStore) getLocked(collection, id string) (Document, error) {
	col, ok := s.collections[collection]
	if !ok {
		return Document{}, ErrNoSuchDocument
	}
	data, ok := col[id]
	if !ok {
		return Document{}, ErrNoSuchDocument
	}
	return Document{ID: id, Data: cloneData(data)}, nil
}

func (s *MemoryStore) setLocked(collection, id string, data map[string]any) {
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]map[string]any)
		s.collections[collection] = col
	}
	col[id] = data
}

func (s *MemoryStore) queryLocked(q Query) []Document {
	var docs []Document
	for id, data := range s.collections[q.Collection] {
		doc := Document{ID: id, Data: cloneData(data)}
		if q.Field == "" || matches(doc, q) {
			docs = append(docs, doc)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			less := compareValues(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy]) < 0
			if q.Desc {
				return !less
			}
			return less
		})
	} else {
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

func (s *MemoryStore) notifyWatchers() {
	s.mu.RLock()
	type pending struct {
		w    *memWatcher
		docs []Document
	}
	updates := make([]pending, 0, len(s.watchers))
	for w := range s.watchers {
		updates = append(updates, pending{w: w, docs: s.queryLocked(w.q)})
	}
	s.mu.RUnlock()

	for _, u := range updates {
		u.w.send(u.docs)
	}
}

func matches(doc Document, q Query) bool {
	value, ok := doc.Data[q.Field]
	if !ok {
		return false
	}

	switch q.Op {
	case OpEqual:
		return reflect.DeepEqual(value, q.Value)
	case OpArrayContains:
		items := reflect.ValueOf(value)
		if items.Kind() != reflect.Slice {
			return false
		}
		for i := 0; i < items.Len(); i++ {
			if reflect.DeepEqual(items.Index(i).Interface(), q.Value) {
				return true
			}
		}
	}
	return false
}

func compareValues(a, b any) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}

	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return cloneData(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(value))
		copy(out, value)
		return out
	default:
		return v
	}
}

type writeKind int

const (
	writeSet writeKind = iota
	writeUpdate
	writeDelete
)

type stagedWrite struct {
	kind       writeKind
	collection string
	id         string
	data       map[string]any
}

// memoryTx buffers writes and applies them when the transaction function
// succeeds, mirroring the backend's read-then-write semantics. Reads observe
// only committed state.
type memoryTx struct {
	store  *MemoryStore
	writes []stagedWrite
	err    error
}

func (t *memoryTx) Get(collection, id string) (Document, error) {
	return t.store.getLocked(collection, id)
}

func (t *memoryTx) GetAll(q Query) ([]Document, error) {
	return t.store.queryLocked(q), nil
}

func (t *memoryTx) Set(collection, id string, data map[string]any) {
	t.writes = append(t.writes, stagedWrite{kind: writeSet, collection: collection, id: id, data: cloneData(data)})
}

func (t *memoryTx) Update(collection, id string, fields map[string]any) {
	if _, err := t.store.getLocked(collection, id); err != nil {
		if t.err == nil {
			t.err = err
		}
		return
	}
	t.writes = append(t.writes, stagedWrite{kind: writeUpdate, collection: collection, id: id, data: cloneData(fields)})
}

func (t *memoryTx) Delete(collection, id string) {
	t.writes = append(t.writes, stagedWrite{kind: writeDelete, collection: collection, id: id})
}

type memWatcher struct {
	q      Query
	mu     sync.Mutex
	ch     chan []Document
	closed bool
}

func (w *memWatcher) send(docs []Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	// Keep only the latest snapshot for slow consumers.
	select {
	case <-w.ch:
	default:
	}
	w.ch <- docs
}

func (w *memWatcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}
