package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/productguard/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productColumns = `id, user_id, name, type, price, url, description,
	        brand_name, trademark_number, copyright_registration_number,
	        fingerprint, dmca_contact_email, created_at, updated_at`

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	return product, nil
}

// ListByUserID はユーザーの商品一覧を返す。
func (r *PostgresProductRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("商品の読み取りに失敗しました: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品一覧の走査に失敗しました: %w", err)
	}
	return products, nil
}

// Create は商品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) error {
	fingerprint, err := json.Marshal(product.Fingerprint)
	if err != nil {
		return fmt.Errorf("フィンガープリントのエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO products (id, user_id, name, type, price, url, description,
		                       brand_name, trademark_number, copyright_registration_number,
		                       fingerprint, dmca_contact_email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		product.ID, product.UserID, product.Name, product.Type,
		nullString(product.Price), nullString(product.URL), nullString(product.Description),
		nullString(product.BrandName), nullString(product.TrademarkNumber),
		nullString(product.CopyrightRegistrationNumber),
		fingerprint, nullString(product.DMCAContactEmail),
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は商品情報を更新する。
func (r *PostgresProductRepo) Update(ctx context.Context, product *model.Product) error {
	fingerprint, err := json.Marshal(product.Fingerprint)
	if err != nil {
		return fmt.Errorf("フィンガープリントのエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE products SET
		    name = $2, type = $3, price = $4, url = $5, description = $6,
		    brand_name = $7, trademark_number = $8, copyright_registration_number = $9,
		    fingerprint = $10, dmca_contact_email = $11, updated_at = now()
		 WHERE id = $1`,
		product.ID, product.Name, product.Type,
		nullString(product.Price), nullString(product.URL), nullString(product.Description),
		nullString(product.BrandName), nullString(product.TrademarkNumber),
		nullString(product.CopyrightRegistrationNumber),
		fingerprint, nullString(product.DMCAContactEmail),
	)
	if err != nil {
		return fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return nil
}

// rowScanner はsql.Rowとsql.Rowsの共通走査インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProduct は1行分の商品データを読み取る。
func scanProduct(row rowScanner) (*model.Product, error) {
	product := &model.Product{}
	var price, url, description sql.NullString
	var brandName, trademarkNumber, registrationNumber, dmcaContactEmail sql.NullString
	var fingerprint []byte

	err := row.Scan(
		&product.ID, &product.UserID, &product.Name, &product.Type,
		&price, &url, &description,
		&brandName, &trademarkNumber, &registrationNumber,
		&fingerprint, &dmcaContactEmail,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Price = nullStringValue(price)
	product.URL = nullStringValue(url)
	product.Description = nullStringValue(description)
	product.BrandName = nullStringValue(brandName)
	product.TrademarkNumber = nullStringValue(trademarkNumber)
	product.CopyrightRegistrationNumber = nullStringValue(registrationNumber)
	product.DMCAContactEmail = nullStringValue(dmcaContactEmail)

	if len(fingerprint) > 0 {
		if err := json.Unmarshal(fingerprint, &product.Fingerprint); err != nil {
			return nil, fmt.Errorf("フィンガープリントのパースに失敗しました: %w", err)
		}
	}
	return product, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
