package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/repo"
)

type AppRegistrationStore struct {
	db TxDB
}

func NewAppRegistrationStore(db TxDB) *AppRegistrationStore {
	if db == nil {
		return nil
	}
	return &AppRegistrationStore{db: db}
}

const appColumns = `name, type, version, uri, metadata_uri, is_default`

func scanApp(scan func(dest ...any) error) (domain.AppRegistration, error) {
	var (
		reg domain.AppRegistration
		typ string
	)
	if err := scan(&reg.Name, &typ, &reg.Version, &reg.URI, &reg.MetadataURI, &reg.Default); err != nil {
		return domain.AppRegistration{}, err
	}
	reg.Type = domain.AppType(typ)
	return reg, nil
}

func (s *AppRegistrationStore) Save(ctx context.Context, reg domain.AppRegistration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if reg.Default {
		if err := clearDefault(ctx, tx, reg.Name, reg.Type); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO app_registrations (`+appColumns+`) VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (name, type, version) DO UPDATE
		 SET uri = EXCLUDED.uri, metadata_uri = EXCLUDED.metadata_uri, is_default = EXCLUDED.is_default`,
		strings.TrimSpace(reg.Name),
		string(reg.Type),
		strings.TrimSpace(reg.Version),
		strings.TrimSpace(reg.URI),
		strings.TrimSpace(reg.MetadataURI),
		reg.Default,
	)
	if err != nil {
		return fmt.Errorf("upsert app registration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func clearDefault(ctx context.Context, db DB, name string, typ domain.AppType) error {
	_, err := db.ExecContext(
		ctx,
		`UPDATE app_registrations SET is_default = FALSE WHERE name = $1 AND type = $2 AND is_default`,
		name, string(typ),
	)
	if err != nil {
		return fmt.Errorf("clear default: %w", err)
	}
	return nil
}

func (s *AppRegistrationStore) Get(ctx context.Context, name string, typ domain.AppType, version string) (domain.AppRegistration, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+appColumns+` FROM app_registrations WHERE name = $1 AND type = $2 AND version = $3`,
		name, string(typ), version,
	)
	reg, err := scanApp(row.Scan)
	if err != nil {
		return domain.AppRegistration{}, handleNotFound(err)
	}
	return reg, nil
}

func (s *AppRegistrationStore) Default(ctx context.Context, name string, typ domain.AppType) (domain.AppRegistration, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+appColumns+` FROM app_registrations WHERE name = $1 AND type = $2 AND is_default`,
		name, string(typ),
	)
	reg, err := scanApp(row.Scan)
	if err != nil {
		return domain.AppRegistration{}, handleNotFound(err)
	}
	return reg, nil
}

func (s *AppRegistrationStore) SetDefault(ctx context.Context, name string, typ domain.AppType, version string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := clearDefault(ctx, tx, name, typ); err != nil {
		return err
	}
	res, err := tx.ExecContext(
		ctx,
		`UPDATE app_registrations SET is_default = TRUE WHERE name = $1 AND type = $2 AND version = $3`,
		name, string(typ), version,
	)
	if err != nil {
		return fmt.Errorf("set default: %w", err)
	}
	if err := requireRowsAffected(res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *AppRegistrationStore) List(ctx context.Context, filter repo.AppFilter) ([]domain.AppRegistration, error) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Name) != "" {
		args = append(args, strings.TrimSpace(filter.Name))
		clauses = append(clauses, fmt.Sprintf("name = $%d", len(args)))
	}
	query := `SELECT ` + appColumns + ` FROM app_registrations`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY type, name, version"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list app registrations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AppRegistration, 0)
	for rows.Next() {
		reg, err := scanApp(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan app registration: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate app registrations: %w", err)
	}
	return out, nil
}

func (s *AppRegistrationStore) Delete(ctx context.Context, name string, typ domain.AppType, version string) error {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM app_registrations WHERE name = $1 AND type = $2 AND version = $3`,
		name, string(typ), version,
	)
	if err != nil {
		return fmt.Errorf("delete app registration: %w", err)
	}
	return requireRowsAffected(res)
}

