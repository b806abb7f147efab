package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engageautomations/ghl-api-backend/internal/domain"
	"github.com/engageautomations/ghl-api-backend/internal/secrets"
)

// Compile-time interface assertions.
var (
	_ InstallationRepository = (*PostgresInstallationRepo)(nil)
	_ DirectoryRepository    = (*PostgresDirectoryRepo)(nil)
)

// PostgresInstallationRepo implements InstallationRepository. Token columns
// are encrypted with the injected cipher before they reach the database.
type PostgresInstallationRepo struct {
	db     *pgxpool.Pool
	cipher *secrets.TokenCipher
}

func NewPostgresInstallationRepo(pool *pgxpool.Pool, cipher *secrets.TokenCipher) *PostgresInstallationRepo {
	return &PostgresInstallationRepo{db: pool, cipher: cipher}
}

const installationColumns = `id, ghl_user_id, ghl_user_email, ghl_user_name, ghl_location_id,
ghl_location_name, ghl_company_id, access_token, refresh_token, token_type, expires_at,
scopes, is_active, installed_at, refreshed_at`

const insertInstallationSQL = `INSERT INTO oauth_installations
(id, ghl_user_id, ghl_user_email, ghl_user_name, ghl_location_id, ghl_location_name,
 ghl_company_id, access_token, refresh_token, token_type, expires_at, scopes, is_active, installed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

func (r *PostgresInstallationRepo) Create(ctx context.Context, inst domain.Installation) (domain.Installation, error) {
	access, err := r.cipher.Encrypt(inst.AccessToken)
	if err != nil {
		return domain.Installation{}, fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := r.cipher.Encrypt(inst.RefreshToken)
	if err != nil {
		return domain.Installation{}, fmt.Errorf("encrypt refresh token: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Installation{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if inst.LocationID != "" {
		if _, err := tx.Exec(ctx,
			`UPDATE oauth_installations SET is_active = FALSE WHERE ghl_location_id = $1 AND is_active`,
			inst.LocationID,
		); err != nil {
			return domain.Installation{}, fmt.Errorf("deactivate prior installs: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, insertInstallationSQL,
		inst.ID, inst.UserID, inst.UserEmail, inst.UserName, inst.LocationID, inst.LocationName,
		inst.CompanyID, access, refresh, inst.TokenType, inst.ExpiresAt, inst.Scopes,
		inst.IsActive, inst.InstalledAt,
	); err != nil {
		return domain.Installation{}, fmt.Errorf("insert installation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Installation{}, fmt.Errorf("commit: %w", err)
	}
	return inst, nil
}

func (r *PostgresInstallationRepo) GetByID(ctx context.Context, id int64) (domain.Installation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+installationColumns+` FROM oauth_installations WHERE id = $1`, id)
	return r.scanInstallation(row)
}

func (r *PostgresInstallationRepo) GetActiveByLocation(ctx context.Context, locationID string) (domain.Installation, error) {
	var row pgx.Row
	if locationID == "" {
		row = r.db.QueryRow(ctx,
			`SELECT `+installationColumns+` FROM oauth_installations
			 WHERE is_active ORDER BY installed_at DESC LIMIT 1`)
	} else {
		row = r.db.QueryRow(ctx,
			`SELECT `+installationColumns+` FROM oauth_installations
			 WHERE is_active AND ghl_location_id = $1 ORDER BY installed_at DESC LIMIT 1`, locationID)
	}
	return r.scanInstallation(row)
}

func (r *PostgresInstallationRepo) List(ctx context.Context) ([]domain.InstallationSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, ghl_user_id, ghl_user_email, ghl_location_id, ghl_location_name, ghl_company_id,
		        token_type, expires_at, scopes, is_active, installed_at, refreshed_at
		 FROM oauth_installations ORDER BY installed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list installations: %w", err)
	}
	defer rows.Close()

	var summaries []domain.InstallationSummary
	for rows.Next() {
		var s domain.InstallationSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.UserEmail, &s.LocationID, &s.LocationName,
			&s.CompanyID, &s.TokenType, &s.ExpiresAt, &s.Scopes, &s.IsActive,
			&s.InstalledAt, &s.RefreshedAt); err != nil {
			return nil, fmt.Errorf("scan installation summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *PostgresInstallationRepo) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt, refreshedAt time.Time) error {
	access, err := r.cipher.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := r.cipher.Encrypt(refreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE oauth_installations
		 SET access_token = $2, refresh_token = $3, expires_at = $4, refreshed_at = $5
		 WHERE id = $1`,
		id, access, refresh, expiresAt, refreshedAt)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInstallationNotFound
	}
	return nil
}

func (r *PostgresInstallationRepo) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE oauth_installations SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate installation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInstallationNotFound
	}
	return nil
}

func (r *PostgresInstallationRepo) scanInstallation(row pgx.Row) (domain.Installation, error) {
	var inst domain.Installation
	var access, refresh string
	err := row.Scan(&inst.ID, &inst.UserID, &inst.UserEmail, &inst.UserName, &inst.LocationID,
		&inst.LocationName, &inst.CompanyID, &access, &refresh, &inst.TokenType,
		&inst.ExpiresAt, &inst.Scopes, &inst.IsActive, &inst.InstalledAt, &inst.RefreshedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Installation{}, domain.ErrInstallationNotFound
		}
		return domain.Installation{}, fmt.Errorf("scan installation: %w", err)
	}
	if inst.AccessToken, err = r.cipher.Decrypt(access); err != nil {
		return domain.Installation{}, fmt.Errorf("decrypt access token: %w", err)
	}
	if inst.RefreshToken, err = r.cipher.Decrypt(refresh); err != nil {
		return domain.Installation{}, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return inst, nil
}

// PostgresDirectoryRepo implements DirectoryRepository.
type PostgresDirectoryRepo struct {
	db *pgxpool.Pool
}

func NewPostgresDirectoryRepo(pool *pgxpool.Pool) *PostgresDirectoryRepo {
	return &PostgresDirectoryRepo{db: pool}
}

func (r *PostgresDirectoryRepo) Create(ctx context.Context, dir domain.Directory) (domain.Directory, error) {
	config, err := marshalConfig(dir.Config)
	if err != nil {
		return domain.Directory{}, err
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO directories (id, ghl_location_id, name, slug, config, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		dir.ID, dir.LocationID, dir.Name, dir.Slug, config, dir.CreatedAt, dir.UpdatedAt,
	); err != nil {
		return domain.Directory{}, fmt.Errorf("insert directory: %w", err)
	}
	return dir, nil
}

func (r *PostgresDirectoryRepo) GetByID(ctx context.Context, id int64) (domain.Directory, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, ghl_location_id, name, slug, config, created_at, updated_at
		 FROM directories WHERE id = $1`, id)
	return scanDirectory(row)
}

func (r *PostgresDirectoryRepo) List(ctx context.Context, locationID string) ([]domain.Directory, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if locationID == "" {
		rows, err = r.db.Query(ctx,
			`SELECT id, ghl_location_id, name, slug, config, created_at, updated_at
			 FROM directories ORDER BY created_at DESC`)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, ghl_location_id, name, slug, config, created_at, updated_at
			 FROM directories WHERE ghl_location_id = $1 ORDER BY created_at DESC`, locationID)
	}
	if err != nil {
		return nil, fmt.Errorf("list directories: %w", err)
	}
	defer rows.Close()

	var dirs []domain.Directory
	for rows.Next() {
		dir, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

func (r *PostgresDirectoryRepo) Update(ctx context.Context, dir domain.Directory) (domain.Directory, error) {
	config, err := marshalConfig(dir.Config)
	if err != nil {
		return domain.Directory{}, err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE directories SET name = $2, slug = $3, config = $4, updated_at = $5 WHERE id = $1`,
		dir.ID, dir.Name, dir.Slug, config, dir.UpdatedAt)
	if err != nil {
		return domain.Directory{}, fmt.Errorf("update directory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Directory{}, domain.ErrDirectoryNotFound
	}
	return dir, nil
}

func (r *PostgresDirectoryRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM directories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete directory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDirectoryNotFound
	}
	return nil
}

func scanDirectory(row pgx.Row) (domain.Directory, error) {
	var dir domain.Directory
	var config []byte
	err := row.Scan(&dir.ID, &dir.LocationID, &dir.Name, &dir.Slug, &config, &dir.CreatedAt, &dir.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Directory{}, domain.ErrDirectoryNotFound
		}
		return domain.Directory{}, fmt.Errorf("scan directory: %w", err)
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &dir.Config); err != nil {
			return domain.Directory{}, fmt.Errorf("decode directory config: %w", err)
		}
	}
	return dir, nil
}

func marshalConfig(config map[string]any) ([]byte, error) {
	if config == nil {
		return []byte(`{}`), nil
	}
	payload, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encode directory config: %w", err)
	}
	return payload, nil
}
