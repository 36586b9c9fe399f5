// Package model はドメインモデルを定義する。
package model

import "time"

// QueueStatus は送信キュー項目の状態を表す。
// 終端状態はsentとfailed。
type QueueStatus string

const (
	// QueueStatusPending は送信待ちの状態。
	QueueStatusPending QueueStatus = "pending"
	// QueueStatusProcessing はプロセッサが要求済みの状態。
	QueueStatusProcessing QueueStatus = "processing"
	// QueueStatusSent は送信成功の終端状態。
	QueueStatusSent QueueStatus = "sent"
	// QueueStatusFailed は送信失敗の終端状態。
	QueueStatusFailed QueueStatus = "failed"
)

// QueueItem は送信待ちのDMCA通知1件を表す耐久レコード。
// 一括オーケストレータまたは単発送信フローが作成し、
// キュープロセッサのみがステータス遷移・試行回数・再スケジュールを変更する。
type QueueItem struct {
	ID             string
	UserID         string
	InfringementID string
	RecipientEmail string
	RecipientName  string
	ProviderName   string
	WebFormURL     string
	Subject        string
	Body           string
	Priority       int
	AttemptCount   int
	MaxAttempts    int
	Status         QueueStatus
	ErrorMessage   string
	ScheduledFor   time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TakedownStatus はテイクダウンレコードの状態を表す。
type TakedownStatus string

const (
	// TakedownStatusSent は通知送付済みの状態。
	TakedownStatusSent TakedownStatus = "sent"
	// TakedownStatusAcknowledged はプラットフォームが受領確認した状態。
	TakedownStatusAcknowledged TakedownStatus = "acknowledged"
	// TakedownStatusRemoved はコンテンツが削除された状態。
	TakedownStatusRemoved TakedownStatus = "removed"
	// TakedownStatusRefused はプラットフォームが拒否した状態。
	TakedownStatusRefused TakedownStatus = "refused"
)

// Takedown は実際に送付された通知の耐久レコードを表す。
// 配送成功時にのみ作成される。以降のステータス遷移はプラットフォームの
// 応答により進行する。
type Takedown struct {
	ID             string
	InfringementID string
	UserID         string
	Type           TargetType
	Status         TakedownStatus
	Recipient      string
	InfringingURL  string
	NoticeSubject  string
	NoticeBody     string
	SentAt         time.Time
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CommDirection は通信ログの方向を表す。
type CommDirection string

const (
	// CommDirectionOutbound は送信。
	CommDirectionOutbound CommDirection = "outbound"
	// CommDirectionInbound は受信。
	CommDirectionInbound CommDirection = "inbound"
)

// CommunicationLog はテイクダウンに関する通信履歴の1件を表す。
type CommunicationLog struct {
	ID             string
	UserID         string
	InfringementID string
	TakedownID     string
	Direction      CommDirection
	Channel        DeliveryMethod
	Recipient      string
	Subject        string
	Body           string
	MessageID      string
	CreatedAt      time.Time
}
