package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/idgate/internal/model"
	"github.com/lib/pq"
)

// PostgreSQLの一意制約違反エラーコード
const pqUniqueViolation = "23505"

// マイグレーションで定義した制約名
const (
	constraintGoogleID = "users_google_id_key"
	constraintEmail    = "users_email_key"
)

const userColumns = `id, google_id, email, name, picture, created_at, last_login`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
// UUID形式でないIDは存在しないものとして扱う。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByGoogleID はGoogleのsubjectでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = $1`,
		googleID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google ID: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, google_id, email, name, picture, created_at, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.GoogleID, user.Email, user.Name, nullString(user.Picture), user.CreatedAt, user.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", classifyUniqueViolation(err))
	}
	return nil
}

// UpdateLastLogin はlast_loginのみを更新する。
func (r *PostgresUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return nil
}

// scanUser は1行をmodel.Userに読み込む。行が無い場合はnil, nilを返す。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var picture sql.NullString
	err := row.Scan(
		&user.ID, &user.GoogleID, &user.Email, &user.Name, &picture,
		&user.CreatedAt, &user.LastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Picture = picture.String
	return user, nil
}

// classifyUniqueViolation はlib/pqの一意制約違反を制約名に応じたセンチネルエラーに変換する。
// それ以外のエラーはそのまま返す。
func classifyUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case constraintGoogleID:
		return ErrDuplicateGoogleID
	case constraintEmail:
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pqErr.Constraint)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
