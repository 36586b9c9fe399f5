// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/productguard/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// APITokenRepository はAPIトークンの永続化インターフェース。
// トークン本体は保存されず、SHA-256ハッシュでの照合のみを提供する。
type APITokenRepository interface {
	// FindByTokenHash はトークンハッシュでAPIトークンを検索する。
	// 見つからない場合はnilを返す。
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.APIToken, error)

	// Create はAPIトークンを作成する。
	Create(ctx context.Context, token *model.APIToken) error

	// TouchLastUsed はトークンの最終使用日時を更新する。
	TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error
}

// ProductRepository は商品（保護対象の著作物）の永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// ListByUserID はユーザーの商品一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Product, error)

	// Create は商品を作成する。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品情報を更新する。
	Update(ctx context.Context, product *model.Product) error
}

// InfringementRepository は侵害レコードの永続化インターフェース。
type InfringementRepository interface {
	// FindByID は指定IDの侵害レコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Infringement, error)

	// ListByUserID はユーザーの侵害レコード一覧を返す。
	// statusが空でない場合はステータスで絞り込む。作成日時の降順。
	ListByUserID(ctx context.Context, userID string, status model.InfringementStatus, limit int) ([]*model.Infringement, error)

	// Create は侵害レコードを作成する。
	Create(ctx context.Context, inf *model.Infringement) error

	// UpdateStatus は侵害レコードのステータスを無条件に更新する。
	UpdateStatus(ctx context.Context, id string, status model.InfringementStatus) error

	// UpdateStatusIfActive はステータスがactiveの場合のみ指定ステータスへ
	// 遷移させる。より進んだ状態を巻き戻さないためのガード付き更新。
	// 更新の有無に関わらずエラーを返さない（no-opは正常）。
	UpdateStatusIfActive(ctx context.Context, id string, status model.InfringementStatus) error

	// UpdateEvidence は侵害レコードの証拠ブロブを更新する。
	// ページキャプチャとAI分析の結果を書き戻すために使用される。
	UpdateEvidence(ctx context.Context, id string, evidence model.Evidence) error
}

// DMCAProfileRepository はDMCA連絡先プロフィールの永続化インターフェース。
type DMCAProfileRepository interface {
	// FindByUserID はユーザーのDMCAプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.DMCAProfile, error)

	// Upsert はDMCAプロフィールを冪等にUPSERTする。ユーザーにつき1件。
	Upsert(ctx context.Context, profile *model.DMCAProfile) error
}

// QueueRepository は送信キューの永続化インターフェース。
type QueueRepository interface {
	// FindByID は指定IDのキュー項目を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.QueueItem, error)

	// Enqueue はキュー項目を作成する。
	Enqueue(ctx context.Context, item *model.QueueItem) error

	// ClaimBatch は送信対象のpending項目を最大limit件、単一の条件付き更新で
	// 要求しprocessingに遷移させる。scheduled_forが到来済みかつ試行回数が
	// 上限未満の項目を優先度、次にスケジュール時刻の順で選択する。
	// 単一ステートメントのFOR UPDATE SKIP LOCKEDにより、並行する2つの
	// プロセッサが同一項目を二重に要求することはない。
	ClaimBatch(ctx context.Context, limit int) ([]*model.QueueItem, error)

	// MarkSent は項目を終端状態sentにし完了日時を記録する。
	MarkSent(ctx context.Context, id string) error

	// MarkFailed は項目を終端状態failedにし最終試行回数・エラーメッセージ・
	// 完了日時を記録する。
	MarkFailed(ctx context.Context, id string, attemptCount int, errorMessage string) error

	// RescheduleForRetry は試行回数を更新しpendingへ戻して再スケジュールする。
	RescheduleForRetry(ctx context.Context, id string, attemptCount int, errorMessage string, scheduledFor time.Time) error

	// ListByUserID はユーザーのキュー項目一覧を返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.QueueItem, error)
}

// TakedownRepository はテイクダウンレコードの永続化インターフェース。
type TakedownRepository interface {
	// FindByID は指定IDのテイクダウンを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Takedown, error)

	// Create はテイクダウンレコードを作成する。配送成功時にのみ呼ばれる。
	Create(ctx context.Context, takedown *model.Takedown) error

	// ListByUserID はユーザーのテイクダウン一覧を送付日時の降順で返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Takedown, error)

	// UpdateStatus はテイクダウンのステータスを更新する。
	// removedまたはrefusedへの遷移時はresolved_atも記録する。
	UpdateStatus(ctx context.Context, id string, status model.TakedownStatus) error
}

// CommunicationLogRepository は通信ログの永続化インターフェース。
type CommunicationLogRepository interface {
	// Create は通信ログエントリを作成する。
	Create(ctx context.Context, log *model.CommunicationLog) error

	// ListByInfringementID は侵害レコードに関する通信履歴を時系列順で返す。
	ListByInfringementID(ctx context.Context, infringementID string, limit int) ([]*model.CommunicationLog, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
