package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/concave-dev/trail/internal/utils"
)

// Key layout, all encoded with orderedcode so prefixes never collide:
//
//	("coll", name)                       -> JSON []Index
//	("doc", collection, id)              -> JSON document
//	("idx", collection, fields, values)  -> id, for unique indexes
const (
	tagCollection = "coll"
	tagDocument   = "doc"
	tagIndex      = "idx"
)

// KVProvider stores documents in a tm-db key-value database. It is the
// embedded backend: goleveldb on disk for a single node, memdb for tests.
type KVProvider struct {
	db dbm.DB

	mu          sync.RWMutex
	collections map[string][]Index
}

var _ Provider = (*KVProvider)(nil)

// NewKVProvider wraps an open tm-db database.
func NewKVProvider(db dbm.DB) *KVProvider {
	return &KVProvider{db: db, collections: make(map[string][]Index)}
}

// NewMemProvider returns a provider over an in-memory database.
func NewMemProvider() *KVProvider {
	return NewKVProvider(dbm.NewMemDB())
}

// OpenKVProvider opens (or creates) the named tm-db backend in dir.
func OpenKVProvider(backend, dir string) (*KVProvider, error) {
	db, err := dbm.NewDB("trail", dbm.BackendType(backend), dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database in %s: %w", backend, dir, err)
	}
	return NewKVProvider(db), nil
}

func encodeKey(items ...any) []byte {
	key, err := orderedcode.Append(nil, items...)
	if err != nil {
		// Only strings are encoded, which cannot fail.
		panic(fmt.Sprintf("orderedcode: %v", err))
	}
	return key
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func documentKey(collection, id string) []byte {
	return encodeKey(tagDocument, collection, id)
}

// Init loads collection metadata written by earlier runs.
func (p *KVProvider) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := encodeKey(tagCollection)
	it, err := p.db.Iterator(prefix, prefixEnd(prefix))
	if err != nil {
		return err
	}
	defer it.Close()

	for ; it.Valid(); it.Next() {
		var tag, name string
		if _, err := orderedcode.Parse(string(it.Key()), &tag, &name); err != nil {
			return fmt.Errorf("corrupt collection key: %w", err)
		}
		var indexes []Index
		if err := json.Unmarshal(it.Value(), &indexes); err != nil {
			return fmt.Errorf("corrupt metadata for collection %s: %w", name, err)
		}
		p.collections[name] = indexes
	}
	return it.Error()
}

// CreateCollection records the collection and its indexes.
func (p *KVProvider) CreateCollection(ctx context.Context, name string, indexes []Index) error {
	for _, idx := range indexes {
		for _, f := range idx.Fields {
			if err := validateField(f); err != nil {
				return err
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.Marshal(indexes)
	if err != nil {
		return err
	}
	if err := p.db.SetSync(encodeKey(tagCollection, name), data); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	p.collections[name] = indexes
	return nil
}

type kvDocument struct {
	id  string
	doc map[string]any
}

// scan returns every document in collection matching q, in key order.
func (p *KVProvider) scan(collection string, q normalizedQuery) ([]kvDocument, error) {
	prefix := encodeKey(tagDocument, collection)
	it, err := p.db.Iterator(prefix, prefixEnd(prefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []kvDocument
	for ; it.Valid(); it.Next() {
		var tag, coll, id string
		if _, err := orderedcode.Parse(string(it.Key()), &tag, &coll, &id); err != nil {
			return nil, fmt.Errorf("corrupt document key in %s: %w", collection, err)
		}
		doc := make(map[string]any)
		if err := json.Unmarshal(it.Value(), &doc); err != nil {
			return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
		}
		if q.matches(doc) {
			out = append(out, kvDocument{id: id, doc: doc})
		}
	}
	return out, it.Error()
}

// lookup loads one document by id.
func (p *KVProvider) lookup(collection, id string) (map[string]any, error) {
	data, err := p.db.Get(documentKey(collection, id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotFound
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// findFirst resolves q through a unique index when it pins every indexed
// field, and falls back to a collection scan otherwise.
func (p *KVProvider) findFirst(collection string, q normalizedQuery) (string, map[string]any, error) {
	for _, idx := range p.collections[collection] {
		if !idx.Unique {
			continue
		}
		values, ok := indexValues(idx, func(f string) (any, bool) {
			v, present := q[f]
			return v, present && v != nil
		})
		if !ok {
			continue
		}

		id, err := p.db.Get(indexKey(collection, idx, values))
		if err != nil {
			return "", nil, err
		}
		if id == nil {
			return "", nil, ErrNotFound
		}
		doc, err := p.lookup(collection, string(id))
		if err != nil {
			return "", nil, err
		}
		if !q.matches(doc) {
			return "", nil, ErrNotFound
		}
		return string(id), doc, nil
	}

	docs, err := p.scan(collection, q)
	if err != nil {
		return "", nil, err
	}
	if len(docs) == 0 {
		return "", nil, ErrNotFound
	}
	return docs[0].id, docs[0].doc, nil
}

func indexValues(idx Index, get func(string) (any, bool)) ([]any, bool) {
	values := make([]any, len(idx.Fields))
	for i, f := range idx.Fields {
		v, ok := get(f)
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func indexKey(collection string, idx Index, values []any) []byte {
	encoded, _ := json.Marshal(values)
	return encodeKey(tagIndex, collection, strings.Join(idx.Fields, ","), string(encoded))
}

// uniqueKeys returns the index entries doc occupies. Documents missing an
// indexed field do not occupy that index.
func (p *KVProvider) uniqueKeys(collection string, doc map[string]any) [][]byte {
	var keys [][]byte
	for _, idx := range p.collections[collection] {
		if !idx.Unique {
			continue
		}
		values, ok := indexValues(idx, func(f string) (any, bool) {
			v, present := getPath(doc, f)
			return v, present && v != nil
		})
		if ok {
			keys = append(keys, indexKey(collection, idx, values))
		}
	}
	return keys
}

// Count returns the number of matching documents.
func (p *KVProvider) Count(ctx context.Context, collection string, query Query) (int64, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return 0, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	docs, err := p.scan(collection, q)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// Find returns matching documents sorted and paged per opts.
func (p *KVProvider) Find(ctx context.Context, collection string, query Query, opts FindOptions) ([]json.RawMessage, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	for _, s := range opts.Sort {
		if err := validateField(s.Field); err != nil {
			return nil, err
		}
	}

	p.mu.RLock()
	found, err := p.scan(collection, q)
	p.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	docs := make([]map[string]any, len(found))
	for i, d := range found {
		docs[i] = d.doc
	}
	sortDocuments(docs, opts.Sort)

	start, end := page(len(docs), opts)
	out := make([]json.RawMessage, 0, end-start)
	for _, doc := range docs[start:end] {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// FindOne returns the first matching document.
func (p *KVProvider) FindOne(ctx context.Context, collection string, query Query) (json.RawMessage, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	_, doc, err := p.findFirst(collection, q)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// UpdateOne applies update to the first matching document, creating it when
// upsert is set. Unique index entries are moved in the same atomic batch as
// the document.
func (p *KVProvider) UpdateOne(ctx context.Context, collection string, query Query, update Update, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q, err := normalizeQuery(query)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id, doc, err := p.findFirst(collection, q)
	var oldKeys [][]byte
	switch {
	case errors.Is(err, ErrNotFound):
		if !upsert {
			return ErrNotFound
		}
		id = utils.GenerateID()
		if doc, err = newDocument(q, update); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		oldKeys = p.uniqueKeys(collection, doc)
		if err := applyUpdate(doc, update); err != nil {
			return err
		}
	}
	newKeys := p.uniqueKeys(collection, doc)

	b := p.db.NewBatch()
	defer b.Close()

	for _, key := range newKeys {
		owner, err := p.db.Get(key)
		if err != nil {
			return err
		}
		if owner != nil && string(owner) != id {
			return fmt.Errorf("%w in %s", ErrDuplicateKey, collection)
		}
		if err := b.Set(key, []byte(id)); err != nil {
			return err
		}
	}
	for _, key := range oldKeys {
		if !containsKey(newKeys, key) {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := b.Set(documentKey(collection, id), data); err != nil {
		return err
	}
	return b.WriteSync()
}

func containsKey(keys [][]byte, key []byte) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}

// Close closes the underlying database.
func (p *KVProvider) Close() error {
	return p.db.Close()
}
