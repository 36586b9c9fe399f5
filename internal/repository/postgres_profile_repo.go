package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/productguard/internal/model"
)

// PostgresDMCAProfileRepo はPostgreSQLを使用したDMCAプロフィールリポジトリ。
type PostgresDMCAProfileRepo struct {
	db *sql.DB
}

// NewPostgresDMCAProfileRepo はPostgresDMCAProfileRepoを生成する。
func NewPostgresDMCAProfileRepo(db *sql.DB) *PostgresDMCAProfileRepo {
	return &PostgresDMCAProfileRepo{db: db}
}

// FindByUserID はユーザーのDMCAプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresDMCAProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.DMCAProfile, error) {
	profile := &model.DMCAProfile{}
	var company, phone, ownerRelation sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, company, email, phone, address,
		        is_owner, owner_relation, created_at, updated_at
		 FROM dmca_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&profile.ID, &profile.UserID, &profile.Name, &company,
		&profile.Email, &phone, &profile.Address,
		&profile.IsOwner, &ownerRelation,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("DMCAプロフィールの取得に失敗しました: %w", err)
	}

	profile.Company = nullStringValue(company)
	profile.Phone = nullStringValue(phone)
	profile.OwnerRelation = nullStringValue(ownerRelation)
	return profile, nil
}

// Upsert はDMCAプロフィールを冪等にUPSERTする。ユーザーにつき1件。
func (r *PostgresDMCAProfileRepo) Upsert(ctx context.Context, profile *model.DMCAProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dmca_profiles (id, user_id, name, company, email, phone, address,
		                            is_owner, owner_relation, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id) DO UPDATE SET
		     name = EXCLUDED.name,
		     company = EXCLUDED.company,
		     email = EXCLUDED.email,
		     phone = EXCLUDED.phone,
		     address = EXCLUDED.address,
		     is_owner = EXCLUDED.is_owner,
		     owner_relation = EXCLUDED.owner_relation,
		     updated_at = now()`,
		profile.ID, profile.UserID, profile.Name, nullString(profile.Company),
		profile.Email, nullString(profile.Phone), profile.Address,
		profile.IsOwner, nullString(profile.OwnerRelation),
		profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("DMCAプロフィールのUPSERTに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DMCAProfileRepository = (*PostgresDMCAProfileRepo)(nil)
