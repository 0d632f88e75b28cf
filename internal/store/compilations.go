package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fastjson"

	"github.com/roach88/esfilter/internal/compiler"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("compilation not found")

// Compilation is one recorded request cycle.
type Compilation struct {
	ID string `json:"id"`

	// Seq is assigned by Record; values written by callers are ignored.
	Seq int64 `json:"seq"`

	Layer       string `json:"layer"`
	Operation   string `json:"operation"`
	Fingerprint string `json:"fingerprint"`

	// Query and PostFilter are the compiled halves as JSON text.
	Query      string `json:"query"`
	PostFilter string `json:"post_filter"`

	FullySupported bool           `json:"fully_supported"`
	Gaps           []compiler.Gap `json:"gaps"`
	Hits           int64          `json:"hits"`
	CreatedAt      time.Time      `json:"created_at"`
}

const selectCompilations = `
	SELECT id, seq, layer, operation, fingerprint, query, post_filter,
	       fully_supported, gaps, hits, created_at_ms
	FROM compilations`

// Record appends c to the log. Uses ON CONFLICT(id) DO NOTHING, so
// recording the same id twice keeps the first row.
func (s *Store) Record(ctx context.Context, c Compilation) error {
	gaps := marshalGaps(c.Gaps)

	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compilations
		(id, seq, layer, operation, fingerprint, query, post_filter, fully_supported, gaps, hits, created_at_ms)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.Layer,
		c.Operation,
		c.Fingerprint,
		c.Query,
		c.PostFilter,
		c.FullySupported,
		gaps,
		c.Hits,
		created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record compilation: %w", err)
	}
	return nil
}

// Get returns the compilation with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Compilation, error) {
	row := s.db.QueryRowContext(ctx, selectCompilations+` WHERE id = ?`, id)
	c, err := scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Compilation{}, fmt.Errorf("get %s: %w", id, err)
	}
	return c, nil
}

// List returns the most recent limit compilations in seq order. A limit
// of zero or less returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Compilation, error) {
	if limit <= 0 {
		return s.query(ctx, selectCompilations+`
			ORDER BY seq ASC, id ASC COLLATE BINARY`)
	}
	return s.query(ctx, `SELECT * FROM (`+selectCompilations+`
			ORDER BY seq DESC LIMIT ?)
		ORDER BY seq ASC, id ASC COLLATE BINARY`, limit)
}

// ByFingerprint returns every compilation of the same request, oldest
// first.
func (s *Store) ByFingerprint(ctx context.Context, fingerprint string) ([]Compilation, error) {
	return s.query(ctx, selectCompilations+`
		WHERE fingerprint = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY`, fingerprint)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	out := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompilation(row scanner) (Compilation, error) {
	var (
		c       Compilation
		gaps    string
		created int64
	)
	err := row.Scan(
		&c.ID,
		&c.Seq,
		&c.Layer,
		&c.Operation,
		&c.Fingerprint,
		&c.Query,
		&c.PostFilter,
		&c.FullySupported,
		&gaps,
		&c.Hits,
		&created,
	)
	if err != nil {
		return Compilation{}, err
	}

	c.Gaps, err = unmarshalGaps(gaps)
	if err != nil {
		return Compilation{}, fmt.Errorf("compilation %s: %w", c.ID, err)
	}
	c.CreatedAt = time.UnixMilli(created)
	return c, nil
}

var (
	arenaPool  fastjson.ArenaPool
	parserPool fastjson.ParserPool
)

func marshalGaps(gaps []compiler.Gap) string {
	a := arenaPool.Get()
	defer arenaPool.Put(a)

	arr := a.NewArray()
	for i, g := range gaps {
		o := a.NewObject()
		o.Set("node", a.NewString(g.Node))
		if g.Field != "" {
			o.Set("field", a.NewString(g.Field))
		}
		o.Set("reason", a.NewString(g.Reason))
		arr.SetArrayItem(i, o)
	}
	return string(arr.MarshalTo(nil))
}

func unmarshalGaps(text string) ([]compiler.Gap, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse gaps: %w", err)
	}
	items, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("parse gaps: %w", err)
	}

	gaps := make([]compiler.Gap, 0, len(items))
	for _, item := range items {
		gaps = append(gaps, compiler.Gap{
			Node:   string(item.GetStringBytes("node")),
			Field:  string(item.GetStringBytes("field")),
			Reason: string(item.GetStringBytes("reason")),
		})
	}
	return gaps, nil
}
