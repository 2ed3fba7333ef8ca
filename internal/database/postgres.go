package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/concave-dev/trail/internal/utils"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// PostgresProvider stores every collection in a single JSONB documents
// table. Indexes are expression indexes restricted to their collection.
type PostgresProvider struct {
	pool *pgxpool.Pool
}

var _ Provider = (*PostgresProvider)(nil)

// NewPostgresProvider connects to dsn and verifies the connection.
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return &PostgresProvider{pool: pool}, nil
}

// Init creates the documents table.
func (p *PostgresProvider) Init(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			doc        JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

// jsonPath renders a validated dotted field as a PostgreSQL text[] literal.
func jsonPath(field string) string {
	return "'{" + strings.ReplaceAll(field, ".", ",") + "}'"
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// indexName derives a stable, length-safe name for an index definition.
func indexName(collection string, idx Index) string {
	sum := sha256.Sum256([]byte(collection + "|" + strings.Join(idx.Fields, ",")))
	return "documents_idx_" + hex.EncodeToString(sum[:8])
}

// createIndexSQL builds the expression index for idx on collection.
func createIndexSQL(collection string, idx Index) (string, error) {
	exprs := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		if err := validateField(f); err != nil {
			return "", err
		}
		exprs[i] = fmt.Sprintf("(doc #>> %s)", jsonPath(f))
	}

	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON documents (%s) WHERE collection = %s",
		unique, indexName(collection, idx), strings.Join(exprs, ", "), quoteLiteral(collection)), nil
}

// CreateCollection creates the collection's indexes.
func (p *PostgresProvider) CreateCollection(ctx context.Context, name string, indexes []Index) error {
	for _, idx := range indexes {
		stmt, err := createIndexSQL(name, idx)
		if err != nil {
			return err
		}
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index on %s: %w", name, err)
		}
	}
	return nil
}

// buildWhere renders the WHERE clause for collection and q. Values are
// bound as JSONB parameters; field paths are validated identifiers.
func buildWhere(collection string, q Query) (string, []any, error) {
	if err := validateQuery(q); err != nil {
		return "", nil, err
	}

	clauses := []string{"collection = $1"}
	args := []any{collection}
	for _, field := range sortedKeys(q) {
		path := jsonPath(field)
		v := q[field]
		if v == nil {
			clauses = append(clauses, fmt.Sprintf("(doc #> %s IS NULL OR doc #> %s = 'null'::jsonb)", path, path))
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return "", nil, fmt.Errorf("query field %s: %w", field, err)
		}
		args = append(args, string(data))
		clauses = append(clauses, fmt.Sprintf("doc #> %s = $%d::jsonb", path, len(args)))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// buildFind renders the full SELECT for Find.
func buildFind(collection string, q Query, opts FindOptions) (string, []any, error) {
	where, args, err := buildWhere(collection, q)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT doc FROM documents WHERE ")
	sb.WriteString(where)

	if len(opts.Sort) > 0 {
		order := make([]string, len(opts.Sort))
		for i, s := range opts.Sort {
			if err := validateField(s.Field); err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if s.Descending {
				dir = "DESC"
			}
			order[i] = fmt.Sprintf("doc #> %s %s", jsonPath(s.Field), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	} else {
		sb.WriteString(" ORDER BY id")
	}

	if opts.Skip > 0 {
		args = append(args, opts.Skip)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args, nil
}

// Count returns the number of matching documents.
func (p *PostgresProvider) Count(ctx context.Context, collection string, query Query) (int64, error) {
	where, args, err := buildWhere(collection, query)
	if err != nil {
		return 0, err
	}
	var n int64
	err = p.pool.QueryRow(ctx, "SELECT count(*) FROM documents WHERE "+where, args...).Scan(&n)
	return n, err
}

// Find returns matching documents.
func (p *PostgresProvider) Find(ctx context.Context, collection string, query Query, opts FindOptions) ([]json.RawMessage, error) {
	stmt, args, err := buildFind(collection, query, opts)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(doc))
	}
	return out, rows.Err()
}

// FindOne returns the first matching document.
func (p *PostgresProvider) FindOne(ctx context.Context, collection string, query Query) (json.RawMessage, error) {
	docs, err := p.Find(ctx, collection, query, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// UpdateOne merges update into the first matching row inside a transaction
// holding a row lock, or inserts a new row when upsert is set.
func (p *PostgresProvider) UpdateOne(ctx context.Context, collection string, query Query, update Update, upsert bool) error {
	q, err := normalizeQuery(query)
	if err != nil {
		return err
	}
	where, args, err := buildWhere(collection, query)
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var id string
	var raw []byte
	err = tx.QueryRow(ctx, "SELECT id, doc FROM documents WHERE "+where+" ORDER BY id LIMIT 1 FOR UPDATE", args...).Scan(&id, &raw)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if !upsert {
			return ErrNotFound
		}
		doc, err := newDocument(q, update)
		if err != nil {
			return err
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, "INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3::jsonb)",
			collection, utils.GenerateID(), string(data))
		if err != nil {
			return translatePgError(err)
		}
	case err != nil:
		return err
	default:
		doc := make(map[string]any)
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
		}
		if err := applyUpdate(doc, update); err != nil {
			return err
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, "UPDATE documents SET doc = $1::jsonb WHERE collection = $2 AND id = $3",
			string(data), collection, id)
		if err != nil {
			return translatePgError(err)
		}
	}

	return translatePgError(tx.Commit(ctx))
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

// Close closes the connection pool.
func (p *PostgresProvider) Close() error {
	p.pool.Close()
	return nil
}
