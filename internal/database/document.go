package database

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
)

var fieldPathRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)*$`)

// validateField rejects paths that could not be safely addressed in every
// backend.
func validateField(path string) error {
	if !fieldPathRegex.MatchString(path) {
		return fmt.Errorf("%w: %q", ErrInvalidField, path)
	}
	return nil
}

// validateQuery validates every key of q.
func validateQuery(q Query) error {
	for field := range q {
		if err := validateField(field); err != nil {
			return err
		}
	}
	return nil
}

// sortedKeys returns the keys of m in a stable order so generated SQL and
// index keys are deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalize converts v to its generic JSON form (map[string]any, []any,
// float64, string, bool, nil) so it compares equal to decoded documents.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// toDocument converts a value into a generic JSON object.
func toDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("value is not a JSON object: %w", err)
	}
	return doc, nil
}

// getPath resolves a dotted path in doc.
func getPath(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// setPath writes value at a dotted path, creating intermediate objects.
func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// normalizedQuery is a query whose values are in generic JSON form.
type normalizedQuery map[string]any

func normalizeQuery(q Query) (normalizedQuery, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	out := make(normalizedQuery, len(q))
	for field, v := range q {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("query field %s: %w", field, err)
		}
		out[field] = n
	}
	return out, nil
}

// matches reports whether doc satisfies every equality in q.
func (q normalizedQuery) matches(doc map[string]any) bool {
	for field, want := range q {
		got, ok := getPath(doc, field)
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// applyUpdate sets every field of u on doc.
func applyUpdate(doc map[string]any, u Update) error {
	for _, field := range sortedKeys(u) {
		if err := validateField(field); err != nil {
			return err
		}
		v, err := normalize(u[field])
		if err != nil {
			return fmt.Errorf("update field %s: %w", field, err)
		}
		setPath(doc, field, v)
	}
	return nil
}

// newDocument builds the document inserted by an upsert: the query's
// non-nil equality fields, then the update.
func newDocument(q normalizedQuery, u Update) (map[string]any, error) {
	doc := make(map[string]any)
	for _, field := range sortedKeys(q) {
		if q[field] != nil {
			setPath(doc, field, q[field])
		}
	}
	if err := applyUpdate(doc, u); err != nil {
		return nil, err
	}
	return doc, nil
}

// compareValues orders generic JSON values: nil first, then numbers,
// strings and booleans. Strings that both parse as RFC3339 timestamps are
// compared as times, since trimmed fractional seconds break lexical order.
func compareValues(a, b any) int {
	rank := func(v any) int {
		switch v.(type) {
		case nil:
			return 0
		case float64:
			return 1
		case string:
			return 2
		case bool:
			return 3
		default:
			return 4
		}
	}

	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}

	switch av := a.(type) {
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case string:
		bv := b.(string)
		if ta, err := time.Parse(time.RFC3339Nano, av); err == nil {
			if tb, err := time.Parse(time.RFC3339Nano, bv); err == nil {
				return ta.Compare(tb)
			}
		}
		return strings.Compare(av, bv)
	case bool:
		bv := b.(bool)
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
	}
	return 0
}

// sortDocuments orders docs in place by fields.
func sortDocuments(docs []map[string]any, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			a, _ := getPath(docs[i], f.Field)
			b, _ := getPath(docs[j], f.Field)
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if f.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// page applies skip and limit to n results and returns the bounds.
func page(n int, opts FindOptions) (int, int) {
	start := opts.Skip
	if start > n {
		start = n
	}
	if start < 0 {
		start = 0
	}
	end := n
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return start, end
}
