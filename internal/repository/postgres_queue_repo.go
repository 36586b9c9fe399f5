package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/productguard/internal/model"
)

// PostgresQueueRepo はPostgreSQLを使用した送信キューリポジトリ。
type PostgresQueueRepo struct {
	db *sql.DB
}

// NewPostgresQueueRepo はPostgresQueueRepoを生成する。
func NewPostgresQueueRepo(db *sql.DB) *PostgresQueueRepo {
	return &PostgresQueueRepo{db: db}
}

const queueColumns = `id, user_id, infringement_id, recipient_email, recipient_name,
	        provider_name, web_form_url, subject, body, priority,
	        attempt_count, max_attempts, status, error_message,
	        scheduled_for, completed_at, created_at, updated_at`

// FindByID は指定IDのキュー項目を取得する。見つからない場合はnilを返す。
func (r *PostgresQueueRepo) FindByID(ctx context.Context, id string) (*model.QueueItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM send_queue WHERE id = $1`, id)

	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キュー項目の取得に失敗しました: %w", err)
	}
	return item, nil
}

// Enqueue はキュー項目を作成する。
func (r *PostgresQueueRepo) Enqueue(ctx context.Context, item *model.QueueItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO send_queue (id, user_id, infringement_id, recipient_email,
		                         recipient_name, provider_name, web_form_url,
		                         subject, body, priority, attempt_count, max_attempts,
		                         status, error_message, scheduled_for, completed_at,
		                         created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		item.ID, item.UserID, item.InfringementID,
		nullString(item.RecipientEmail), nullString(item.RecipientName),
		item.ProviderName, nullString(item.WebFormURL),
		item.Subject, item.Body, item.Priority,
		item.AttemptCount, item.MaxAttempts,
		item.Status, nullString(item.ErrorMessage),
		item.ScheduledFor, item.CompletedAt,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("キュー項目の作成に失敗しました: %w", err)
	}
	return nil
}

// ClaimBatch は送信対象のpending項目を要求しprocessingへ遷移させる。
// 選択と状態遷移を単一のUPDATE文で行う。サブクエリのFOR UPDATE SKIP LOCKEDに
// より、並行する2つのプロセッサ実行が同一項目を二重に要求することはない。
// これがシステムで唯一の正しさに関わるロックである。
func (r *PostgresQueueRepo) ClaimBatch(ctx context.Context, limit int) ([]*model.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE send_queue SET status = 'processing', updated_at = now()
		 WHERE id IN (
		     SELECT id FROM send_queue
		     WHERE status = 'pending'
		       AND scheduled_for <= now()
		       AND attempt_count < max_attempts
		     ORDER BY priority DESC, scheduled_for ASC
		     LIMIT $1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+queueColumns,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("キュー項目の要求に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("要求済みキュー項目の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("要求済みキュー項目の走査に失敗しました: %w", err)
	}
	return items, nil
}

// MarkSent は項目を終端状態sentにし完了日時を記録する。
func (r *PostgresQueueRepo) MarkSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE send_queue SET status = 'sent', completed_at = now(), updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("キュー項目の送信済み更新に失敗しました: %w", err)
	}
	return nil
}

// MarkFailed は項目を終端状態failedにし最終試行回数・エラーメッセージ・
// 完了日時を記録する。
func (r *PostgresQueueRepo) MarkFailed(ctx context.Context, id string, attemptCount int, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE send_queue SET status = 'failed', attempt_count = $2,
		        error_message = $3, completed_at = now(), updated_at = now()
		 WHERE id = $1`,
		id, attemptCount, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("キュー項目の失敗更新に失敗しました: %w", err)
	}
	return nil
}

// RescheduleForRetry は試行回数を更新しpendingへ戻して再スケジュールする。
func (r *PostgresQueueRepo) RescheduleForRetry(ctx context.Context, id string, attemptCount int, errorMessage string, scheduledFor time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE send_queue SET status = 'pending', attempt_count = $2,
		        error_message = $3, scheduled_for = $4, updated_at = now()
		 WHERE id = $1`,
		id, attemptCount, errorMessage, scheduledFor,
	)
	if err != nil {
		return fmt.Errorf("キュー項目の再スケジュールに失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーのキュー項目一覧を作成日時の降順で返す。
func (r *PostgresQueueRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+queueColumns+` FROM send_queue
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("キュー項目一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("キュー項目の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("キュー項目一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// scanQueueItem は1行分のキュー項目を読み取る。
func scanQueueItem(row rowScanner) (*model.QueueItem, error) {
	item := &model.QueueItem{}
	var recipientEmail, recipientName, webFormURL, errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&item.ID, &item.UserID, &item.InfringementID,
		&recipientEmail, &recipientName,
		&item.ProviderName, &webFormURL,
		&item.Subject, &item.Body, &item.Priority,
		&item.AttemptCount, &item.MaxAttempts,
		&item.Status, &errorMessage,
		&item.ScheduledFor, &completedAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.RecipientEmail = nullStringValue(recipientEmail)
	item.RecipientName = nullStringValue(recipientName)
	item.WebFormURL = nullStringValue(webFormURL)
	item.ErrorMessage = nullStringValue(errorMessage)
	if completedAt.Valid {
		item.CompletedAt = &completedAt.Time
	}
	return item, nil
}

// compile-time interface check
var _ QueueRepository = (*PostgresQueueRepo)(nil)
