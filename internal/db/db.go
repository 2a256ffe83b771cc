package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/models"
)

// Entry is one embedded chunk. Seq records first insertion and breaks
// distance ties.
type Entry struct {
	bun.BaseModel `bun:"table:rag_entries,alias:e"`
	ID            string          `bun:"id,pk"`
	Seq           int64           `bun:"seq,autoincrement"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source,notnull"`
	ChunkIndex    int             `bun:"chunk_index,notnull"`
	Title         string          `bun:"title"`
	DocType       string          `bun:"doc_type"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector"`
}

type scoredEntry struct {
	Entry    `bun:",extend"`
	Distance float64 `bun:"distance,scanonly"`
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9_]+`)

// TableName maps a store name to its table, e.g. "praison" -> "rag_praison".
func TableName(store string) string {
	name := unsafeChars.ReplaceAllString(strings.ToLower(store), "_")
	return "rag_" + strings.Trim(name, "_")
}

// Store keeps vectors in PostgreSQL through the pgvector extension.
type Store struct {
	db    *bun.DB
	table string
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

// Open connects to dsn and makes sure the table for storeName exists.
func Open(ctx context.Context, dsn, storeName string, debug bool) (*Store, error) {
	s := &Store{db: NewDB(ConnectDB(dsn), debug), table: TableName(storeName)}
	if err := s.db.PingContext(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := s.InitDB(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	log.Debug().Str("table", s.table).Msg("Opened pgvector store")
	return s, nil
}

func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS ? (
		id text PRIMARY KEY,
		seq bigserial NOT NULL,
		content text NOT NULL,
		source text NOT NULL,
		chunk_index integer NOT NULL,
		title text,
		doc_type text,
		embedding vector NOT NULL
	)`, bun.Ident(s.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	_, err = s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS ? ON ? (source)",
		bun.Ident(s.table+"_source_idx"), bun.Ident(s.table))
	if err != nil {
		return fmt.Errorf("create index on %s: %w", s.table, err)
	}
	return nil
}

// Upsert inserts entries or updates them in place; seq is never rewritten.
func (s *Store) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]Entry, len(entries))
	for i, e := range entries {
		rows[i] = Entry{
			ID:         e.ID,
			Content:    e.Text,
			Source:     e.Metadata.Source,
			ChunkIndex: e.Metadata.ChunkIndex,
			Title:      e.Metadata.Title,
			DocType:    string(e.Metadata.DocType),
			Embedding:  pgvector.NewVector(e.Vector),
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		ModelTableExpr("?", bun.Ident(s.table)).
		ExcludeColumn("seq").
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("source = EXCLUDED.source").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("title = EXCLUDED.title").
		Set("doc_type = EXCLUDED.doc_type").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", s.table, err)
	}
	return nil
}

// Query orders by cosine distance, then by insertion.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]models.ScoredEntry, error) {
	if topK <= 0 {
		return nil, nil
	}
	var rows []scoredEntry
	err := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr("? AS e", bun.Ident(s.table)).
		Column("id", "seq", "content", "source", "chunk_index", "title", "doc_type", "embedding").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(vector)).
		OrderExpr("distance ASC, seq ASC").
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.table, err)
	}

	out := make([]models.ScoredEntry, len(rows))
	for i, r := range rows {
		out[i] = models.ScoredEntry{
			Entry: models.IndexEntry{
				ID:     r.ID,
				Vector: r.Embedding.Slice(),
				Text:   r.Content,
				Metadata: models.EntryMetadata{
					Source:     r.Source,
					ChunkIndex: r.ChunkIndex,
					Title:      r.Title,
					DocType:    models.DocType(r.DocType),
				},
			},
			Distance: float32(r.Distance),
		}
	}
	return out, nil
}

// DeleteSource removes the rows of one file from chunk index from onwards.
func (s *Store) DeleteSource(ctx context.Context, source string, from int) error {
	_, err := s.db.NewDelete().
		Model((*Entry)(nil)).
		ModelTableExpr("? AS e", bun.Ident(s.table)).
		Where("source = ?", source).
		Where("chunk_index >= ?", from).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete %s from %s: %w", source, s.table, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().
		Model((*Entry)(nil)).
		ModelTableExpr("? AS e", bun.Ident(s.table)).
		Count(ctx)
}

// Clear empties the table and restarts the insertion sequence
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE ? RESTART IDENTITY", bun.Ident(s.table)); err != nil {
		return fmt.Errorf("truncate %s: %w", s.table, err)
	}
	return nil
}

// DropTable removes the table entirely
func (s *Store) DropTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident(s.table))
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
