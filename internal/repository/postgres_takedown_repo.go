package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/productguard/internal/model"
)

// PostgresTakedownRepo はPostgreSQLを使用したテイクダウンリポジトリ。
type PostgresTakedownRepo struct {
	db *sql.DB
}

// NewPostgresTakedownRepo はPostgresTakedownRepoを生成する。
func NewPostgresTakedownRepo(db *sql.DB) *PostgresTakedownRepo {
	return &PostgresTakedownRepo{db: db}
}

const takedownColumns = `id, infringement_id, user_id, type, status, recipient,
	        infringing_url, notice_subject, notice_body, sent_at, resolved_at,
	        created_at, updated_at`

// FindByID は指定IDのテイクダウンを取得する。見つからない場合はnilを返す。
func (r *PostgresTakedownRepo) FindByID(ctx context.Context, id string) (*model.Takedown, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+takedownColumns+` FROM takedowns WHERE id = $1`, id)

	td, err := scanTakedown(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("テイクダウンの取得に失敗しました: %w", err)
	}
	return td, nil
}

// Create はテイクダウンレコードを作成する。
func (r *PostgresTakedownRepo) Create(ctx context.Context, td *model.Takedown) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO takedowns (id, infringement_id, user_id, type, status, recipient,
		                        infringing_url, notice_subject, notice_body,
		                        sent_at, resolved_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		td.ID, td.InfringementID, td.UserID, td.Type, td.Status, td.Recipient,
		nullString(td.InfringingURL), td.NoticeSubject, td.NoticeBody,
		td.SentAt, td.ResolvedAt, td.CreatedAt, td.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("テイクダウンの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーのテイクダウン一覧を送付日時の降順で返す。
func (r *PostgresTakedownRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Takedown, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+takedownColumns+` FROM takedowns
		 WHERE user_id = $1 ORDER BY sent_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("テイクダウン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tds []*model.Takedown
	for rows.Next() {
		td, err := scanTakedown(rows)
		if err != nil {
			return nil, fmt.Errorf("テイクダウンの読み取りに失敗しました: %w", err)
		}
		tds = append(tds, td)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("テイクダウン一覧の走査に失敗しました: %w", err)
	}
	return tds, nil
}

// UpdateStatus はテイクダウンのステータスを更新する。
// 終端状態（removed/refused）への遷移時はresolved_atも記録する。
func (r *PostgresTakedownRepo) UpdateStatus(ctx context.Context, id string, status model.TakedownStatus) error {
	resolved := status == model.TakedownStatusRemoved || status == model.TakedownStatusRefused
	var err error
	if resolved {
		_, err = r.db.ExecContext(ctx,
			`UPDATE takedowns SET status = $2, resolved_at = now(), updated_at = now()
			 WHERE id = $1`,
			id, status,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE takedowns SET status = $2, updated_at = now() WHERE id = $1`,
			id, status,
		)
	}
	if err != nil {
		return fmt.Errorf("テイクダウンのステータス更新に失敗しました: %w", err)
	}
	return nil
}

// scanTakedown は1行分のテイクダウンを読み取る。
func scanTakedown(row rowScanner) (*model.Takedown, error) {
	td := &model.Takedown{}
	var infringingURL sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&td.ID, &td.InfringementID, &td.UserID, &td.Type, &td.Status, &td.Recipient,
		&infringingURL, &td.NoticeSubject, &td.NoticeBody,
		&td.SentAt, &resolvedAt, &td.CreatedAt, &td.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	td.InfringingURL = nullStringValue(infringingURL)
	if resolvedAt.Valid {
		td.ResolvedAt = &resolvedAt.Time
	}
	return td, nil
}

// compile-time interface check
var _ TakedownRepository = (*PostgresTakedownRepo)(nil)
