package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/productguard/internal/model"
)

// PostgresAPITokenRepo はPostgreSQLを使用したAPIトークンリポジトリ。
type PostgresAPITokenRepo struct {
	db *sql.DB
}

// NewPostgresAPITokenRepo はPostgresAPITokenRepoを生成する。
func NewPostgresAPITokenRepo(db *sql.DB) *PostgresAPITokenRepo {
	return &PostgresAPITokenRepo{db: db}
}

// FindByTokenHash はトークンハッシュでAPIトークンを検索する。見つからない場合はnilを返す。
func (r *PostgresAPITokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.APIToken, error) {
	token := &model.APIToken{}
	var label sql.NullString
	var lastUsedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, label, last_used_at, created_at
		 FROM api_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &label, &lastUsedAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("APIトークンの検索に失敗しました: %w", err)
	}

	token.Label = nullStringValue(label)
	if lastUsedAt.Valid {
		token.LastUsedAt = &lastUsedAt.Time
	}
	return token, nil
}

// Create はAPIトークンを作成する。
func (r *PostgresAPITokenRepo) Create(ctx context.Context, token *model.APIToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_tokens (id, user_id, token_hash, label, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.UserID, token.TokenHash, nullString(token.Label), token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("APIトークンの作成に失敗しました: %w", err)
	}
	return nil
}

// TouchLastUsed はトークンの最終使用日時を更新する。
func (r *PostgresAPITokenRepo) TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = $2 WHERE id = $1`,
		id, usedAt,
	)
	if err != nil {
		return fmt.Errorf("APIトークンの最終使用日時の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ APITokenRepository = (*PostgresAPITokenRepo)(nil)
