package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pgvector/pgvector-go"

	"github.com/doubletabai/askdb/pkg/config"
	"github.com/doubletabai/askdb/pkg/training"
)

// Store is the durable home of training items. SQLite keeps embeddings as pgvector text
// literals, PostgreSQL as a native VECTOR column.
type Store struct {
	DB     *sqlx.DB
	Driver string
}

func OpenStore(ctx context.Context, driver, dsn string) (*Store, error) {
	if err := config.EnsureSQLiteDir(driver, dsn); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to corpus database: %w", err)
	}
	if driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	s := &Store{DB: db, Driver: driver}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	schema := sqliteSchemaSQL
	if s.Driver == config.DriverPostgres {
		schema = postgresSchemaSQL
	}
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create corpus schema: %w", err)
	}
	return nil
}

type itemRow struct {
	ID        int64           `db:"id"`
	Kind      string          `db:"kind"`
	Content   string          `db:"content"`
	Question  string          `db:"question"`
	SQL       string          `db:"sql_text"`
	Embedding pgvector.Vector `db:"embedding"`
}

func (r itemRow) item() (training.Item, error) {
	kind, err := training.ParseKind(r.Kind)
	if err != nil {
		return training.Item{}, fmt.Errorf("item %d: %w", r.ID, err)
	}
	return training.Item{
		ID:        r.ID,
		Kind:      kind,
		Content:   r.Content,
		Question:  r.Question,
		SQL:       r.SQL,
		Embedding: r.Embedding.Slice(),
	}, nil
}

func (s *Store) Insert(ctx context.Context, it training.Item) (int64, error) {
	var id int64
	err := s.DB.QueryRowxContext(ctx, s.DB.Rebind(insertItemSQL),
		it.Kind.String(), it.Content, it.Question, it.SQL, pgvector.NewVector(it.Embedding), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert training item: %w", err)
	}
	return id, nil
}

func (s *Store) List(ctx context.Context) ([]training.Item, error) {
	var rows []itemRow
	if err := s.DB.SelectContext(ctx, &rows, listItemsSQL); err != nil {
		return nil, fmt.Errorf("failed to list training items: %w", err)
	}
	items := make([]training.Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.item()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// Get returns sql.ErrNoRows when id does not exist.
func (s *Store) Get(ctx context.Context, id int64) (training.Item, error) {
	var r itemRow
	if err := s.DB.GetContext(ctx, &r, s.DB.Rebind(getItemSQL), id); err != nil {
		return training.Item{}, err
	}
	return r.item()
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(deleteItemSQL), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete training item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Truncate removes all items and the recorded dimension. Ids are not reused afterwards.
func (s *Store) Truncate(ctx context.Context) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, truncateItemsSQL); err != nil {
		return fmt.Errorf("failed to truncate training items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, clearMetaSQL); err != nil {
		return fmt.Errorf("failed to clear corpus metadata: %w", err)
	}
	return tx.Commit()
}

// Dimension returns the recorded embedding dimension, or 0 for a corpus that never held an item.
func (s *Store) Dimension(ctx context.Context) (int, error) {
	var value string
	err := s.DB.GetContext(ctx, &value, s.DB.Rebind(getMetaSQL), metaDimension)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read corpus dimension: %w", err)
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corrupt corpus dimension %q: %w", value, err)
	}
	return dim, nil
}

func (s *Store) SetDimension(ctx context.Context, dim int) error {
	if _, err := s.DB.ExecContext(ctx, s.DB.Rebind(setMetaSQL), metaDimension, strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("failed to record corpus dimension: %w", err)
	}
	return nil
}
