package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/productguard/internal/model"
)

// PostgresInfringementRepo はPostgreSQLを使用した侵害レコードリポジトリ。
type PostgresInfringementRepo struct {
	db *sql.DB
}

// NewPostgresInfringementRepo はPostgresInfringementRepoを生成する。
func NewPostgresInfringementRepo(db *sql.DB) *PostgresInfringementRepo {
	return &PostgresInfringementRepo{db: db}
}

const infringementColumns = `id, user_id, product_id, source_url, platform,
	        infringement_type, evidence, infrastructure, severity_score, status,
	        first_seen_at, last_seen_at, seen_count, created_at, updated_at`

// FindByID は指定IDの侵害レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresInfringementRepo) FindByID(ctx context.Context, id string) (*model.Infringement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+infringementColumns+` FROM infringements WHERE id = $1`, id)

	inf, err := scanInfringement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("侵害レコードの取得に失敗しました: %w", err)
	}
	return inf, nil
}

// ListByUserID はユーザーの侵害レコード一覧を返す。
// statusが空でない場合はステータスで絞り込む。作成日時の降順。
func (r *PostgresInfringementRepo) ListByUserID(ctx context.Context, userID string, status model.InfringementStatus, limit int) ([]*model.Infringement, error) {
	query := `SELECT ` + infringementColumns + ` FROM infringements WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("侵害レコード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var infs []*model.Infringement
	for rows.Next() {
		inf, err := scanInfringement(rows)
		if err != nil {
			return nil, fmt.Errorf("侵害レコードの読み取りに失敗しました: %w", err)
		}
		infs = append(infs, inf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("侵害レコード一覧の走査に失敗しました: %w", err)
	}
	return infs, nil
}

// Create は侵害レコードを作成する。
func (r *PostgresInfringementRepo) Create(ctx context.Context, inf *model.Infringement) error {
	evidence, err := json.Marshal(inf.Evidence)
	if err != nil {
		return fmt.Errorf("証拠データのエンコードに失敗しました: %w", err)
	}
	var infrastructure []byte
	if inf.Infrastructure != nil {
		infrastructure, err = json.Marshal(inf.Infrastructure)
		if err != nil {
			return fmt.Errorf("インフラ情報のエンコードに失敗しました: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO infringements (id, user_id, product_id, source_url, platform,
		                            infringement_type, evidence, infrastructure,
		                            severity_score, status, first_seen_at, last_seen_at,
		                            seen_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		inf.ID, inf.UserID, inf.ProductID, inf.SourceURL,
		nullString(inf.Platform), nullString(inf.InfringementType),
		evidence, infrastructure,
		inf.SeverityScore, inf.Status, inf.FirstSeenAt, inf.LastSeenAt,
		inf.SeenCount, inf.CreatedAt, inf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("侵害レコードの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は侵害レコードのステータスを無条件に更新する。
func (r *PostgresInfringementRepo) UpdateStatus(ctx context.Context, id string, status model.InfringementStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE infringements SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("侵害レコードのステータス更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatusIfActive はステータスがactiveの場合のみ指定ステータスへ遷移させる。
// WHERE句の条件によりガードされた単一ステートメントの更新であり、
// より進んだ状態（removed等）を巻き戻すことはない。no-opは正常。
func (r *PostgresInfringementRepo) UpdateStatusIfActive(ctx context.Context, id string, status model.InfringementStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE infringements SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = 'active'`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("侵害レコードのガード付きステータス更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateEvidence は侵害レコードの証拠ブロブを更新する。
func (r *PostgresInfringementRepo) UpdateEvidence(ctx context.Context, id string, ev model.Evidence) error {
	evidence, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("証拠データのエンコードに失敗しました: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE infringements SET evidence = $2, updated_at = now() WHERE id = $1`,
		id, evidence,
	)
	if err != nil {
		return fmt.Errorf("証拠データの更新に失敗しました: %w", err)
	}
	return nil
}

// scanInfringement は1行分の侵害レコードを読み取る。
func scanInfringement(row rowScanner) (*model.Infringement, error) {
	inf := &model.Infringement{}
	var platform, infringementType sql.NullString
	var evidence, infrastructure []byte

	err := row.Scan(
		&inf.ID, &inf.UserID, &inf.ProductID, &inf.SourceURL,
		&platform, &infringementType, &evidence, &infrastructure,
		&inf.SeverityScore, &inf.Status,
		&inf.FirstSeenAt, &inf.LastSeenAt, &inf.SeenCount,
		&inf.CreatedAt, &inf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inf.Platform = nullStringValue(platform)
	inf.InfringementType = nullStringValue(infringementType)

	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &inf.Evidence); err != nil {
			return nil, fmt.Errorf("証拠データのパースに失敗しました: %w", err)
		}
	}
	if len(infrastructure) > 0 {
		inf.Infrastructure = &model.InfrastructureProfile{}
		if err := json.Unmarshal(infrastructure, inf.Infrastructure); err != nil {
			return nil, fmt.Errorf("インフラ情報のパースに失敗しました: %w", err)
		}
	}
	return inf, nil
}

// compile-time interface check
var _ InfringementRepository = (*PostgresInfringementRepo)(nil)
