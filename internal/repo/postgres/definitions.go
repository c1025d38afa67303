package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/repo"
)

type definitionRow struct {
	Name        string
	DSL         string
	Description string
}

// definitionTable holds the queries shared by the stream and task definition tables.
type definitionTable struct {
	db    DB
	table string
}

func (t definitionTable) get(ctx context.Context, name string) (definitionRow, error) {
	var row definitionRow
	err := t.db.QueryRowContext(
		ctx,
		`SELECT name, dsl, description FROM `+t.table+` WHERE name = $1`,
		strings.TrimSpace(name),
	).Scan(&row.Name, &row.DSL, &row.Description)
	if err != nil {
		return definitionRow{}, handleNotFound(err)
	}
	return row, nil
}

func insertDefinition(ctx context.Context, db DB, table string, row definitionRow) error {
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO `+table+` (name, dsl, description) VALUES ($1,$2,$3)`,
		strings.TrimSpace(row.Name),
		row.DSL,
		row.Description,
	)
	if err != nil {
		return handleConflict("insert definition", err)
	}
	return nil
}

func deleteDefinition(ctx context.Context, db DB, table, name string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE name = $1`, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	return requireRowsAffected(res)
}

func (t definitionTable) list(ctx context.Context, filter repo.DefinitionFilter) ([]definitionRow, int, error) {
	where := ""
	args := make([]any, 0, 3)
	if strings.TrimSpace(filter.Search) != "" {
		args = append(args, searchPattern(filter.Search))
		where = fmt.Sprintf(" WHERE name LIKE $%d", len(args))
	}

	var total int
	if err := t.db.QueryRowContext(ctx, `SELECT count(*) FROM `+t.table+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count definitions: %w", err)
	}

	limit, args := pageClause(args, filter.Page.Page, filter.Page.Size)
	rows, err := t.db.QueryContext(ctx, `SELECT name, dsl, description FROM `+t.table+where+` ORDER BY name`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	out := make([]definitionRow, 0)
	for rows.Next() {
		var row definitionRow
		if err := rows.Scan(&row.Name, &row.DSL, &row.Description); err != nil {
			return nil, 0, fmt.Errorf("scan definition: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate definitions: %w", err)
	}
	return out, total, nil
}

type StreamDefinitionStore struct {
	db    DB
	table definitionTable
}

func NewStreamDefinitionStore(db DB) *StreamDefinitionStore {
	if db == nil {
		return nil
	}
	return &StreamDefinitionStore{db: db, table: definitionTable{db: db, table: "stream_definitions"}}
}

func (s *StreamDefinitionStore) Get(ctx context.Context, name string) (domain.StreamDefinition, error) {
	row, err := s.table.get(ctx, name)
	if err != nil {
		return domain.StreamDefinition{}, err
	}
	return domain.StreamDefinition(row), nil
}

func (s *StreamDefinitionStore) Save(ctx context.Context, def domain.StreamDefinition) error {
	return insertDefinition(ctx, s.db, "stream_definitions", definitionRow(def))
}

func (s *StreamDefinitionStore) Delete(ctx context.Context, name string) error {
	return deleteDefinition(ctx, s.db, "stream_definitions", name)
}

func (s *StreamDefinitionStore) List(ctx context.Context, filter repo.DefinitionFilter) (domain.Page[domain.StreamDefinition], error) {
	rows, total, err := s.table.list(ctx, filter)
	if err != nil {
		return domain.Page[domain.StreamDefinition]{}, err
	}
	items := make([]domain.StreamDefinition, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.StreamDefinition(row))
	}
	return domain.Page[domain.StreamDefinition]{Items: items, Total: total}, nil
}

type TaskDefinitionStore struct {
	db    TxDB
	table definitionTable
}

func NewTaskDefinitionStore(db TxDB) *TaskDefinitionStore {
	if db == nil {
		return nil
	}
	return &TaskDefinitionStore{db: db, table: definitionTable{db: db, table: "task_definitions"}}
}

func (s *TaskDefinitionStore) Get(ctx context.Context, name string) (domain.TaskDefinition, error) {
	row, err := s.table.get(ctx, name)
	if err != nil {
		return domain.TaskDefinition{}, err
	}
	return domain.TaskDefinition(row), nil
}

func (s *TaskDefinitionStore) Save(ctx context.Context, def domain.TaskDefinition) error {
	return insertDefinition(ctx, s.db, "task_definitions", definitionRow(def))
}

func (s *TaskDefinitionStore) SaveAll(ctx context.Context, defs []domain.TaskDefinition) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, def := range defs {
			if err := insertDefinition(ctx, tx, "task_definitions", definitionRow(def)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *TaskDefinitionStore) Delete(ctx context.Context, name string) error {
	return deleteDefinition(ctx, s.db, "task_definitions", name)
}

func (s *TaskDefinitionStore) DeleteAll(ctx context.Context, names []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			if err := deleteDefinition(ctx, tx, "task_definitions", name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *TaskDefinitionStore) List(ctx context.Context, filter repo.DefinitionFilter) (domain.Page[domain.TaskDefinition], error) {
	rows, total, err := s.table.list(ctx, filter)
	if err != nil {
		return domain.Page[domain.TaskDefinition]{}, err
	}
	items := make([]domain.TaskDefinition, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.TaskDefinition(row))
	}
	return domain.Page[domain.TaskDefinition]{Items: items, Total: total}, nil
}

func (s *TaskDefinitionStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
