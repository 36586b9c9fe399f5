package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/productguard/internal/model"
)

// PostgresCommLogRepo はPostgreSQLを使用した通信ログリポジトリ。
type PostgresCommLogRepo struct {
	db *sql.DB
}

// NewPostgresCommLogRepo はPostgresCommLogRepoを生成する。
func NewPostgresCommLogRepo(db *sql.DB) *PostgresCommLogRepo {
	return &PostgresCommLogRepo{db: db}
}

// Create は通信ログエントリを作成する。
func (r *PostgresCommLogRepo) Create(ctx context.Context, log *model.CommunicationLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO communication_logs (id, user_id, infringement_id, takedown_id,
		                                 direction, channel, recipient, subject, body,
		                                 message_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		log.ID, log.UserID, log.InfringementID, nullString(log.TakedownID),
		log.Direction, log.Channel, log.Recipient, log.Subject, log.Body,
		nullString(log.MessageID), log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("通信ログの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByInfringementID は侵害レコードに関する通信履歴を時系列順で返す。
func (r *PostgresCommLogRepo) ListByInfringementID(ctx context.Context, infringementID string, limit int) ([]*model.CommunicationLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, infringement_id, takedown_id, direction, channel,
		        recipient, subject, body, message_id, created_at
		 FROM communication_logs
		 WHERE infringement_id = $1 ORDER BY created_at ASC LIMIT $2`,
		infringementID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("通信ログ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var logs []*model.CommunicationLog
	for rows.Next() {
		log := &model.CommunicationLog{}
		var takedownID, messageID sql.NullString
		if err := rows.Scan(
			&log.ID, &log.UserID, &log.InfringementID, &takedownID,
			&log.Direction, &log.Channel, &log.Recipient, &log.Subject, &log.Body,
			&messageID, &log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("通信ログの読み取りに失敗しました: %w", err)
		}
		log.TakedownID = nullStringValue(takedownID)
		log.MessageID = nullStringValue(messageID)
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通信ログ一覧の走査に失敗しました: %w", err)
	}
	return logs, nil
}

// compile-time interface check
var _ CommunicationLogRepository = (*PostgresCommLogRepo)(nil)
