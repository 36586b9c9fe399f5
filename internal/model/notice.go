// Package model はドメインモデルを定義する。
package model

import "time"

// ComparisonItem はオリジナルと侵害テキストの対比項目を表す。
// 両側とも非空であることが不変条件。正規化したオリジナルテキストで重複排除される。
type ComparisonItem struct {
	OriginalText   string
	InfringingText string
	Context        string
}

// TimestampProof はブロックチェーンタイムスタンプの証明を表す。
// 内部フォーマットには依存せず、有無とステータスタグのみを扱う。
type TimestampProof struct {
	Status        string `json:"status"` // pending / confirmed / failed
	TransactionID string `json:"transaction_id,omitempty"`
	ProofURL      string `json:"proof_url,omitempty"`
}

// EvidencePacket は通知を補強する証拠パケットを表す。
type EvidencePacket struct {
	ContentHash string
	Timestamp   *TimestampProof
	ArchiveURL  string // Wayback Machine等のアーカイブURL
	CapturedAt  *time.Time
	CaptureNote string
}

// HasBlockchainTimestamp は確定済みのブロックチェーンタイムスタンプがあるかを返す。
func (e *EvidencePacket) HasBlockchainTimestamp() bool {
	return e != nil && e.Timestamp != nil && e.Timestamp.Status == "confirmed"
}

// BuiltNotice は組み立て済みのDMCA通知を表す。
// 生成後は不変。再生成は新しいBuiltNoticeを作る。
type BuiltNotice struct {
	Subject string
	// Body は7セクションを可視のセパレータで結合した通知本文。
	Body string

	// 送付先（解決済みプロバイダから直接コピーされる）
	RecipientEmail string // 空文字列はWebフォーム/手動チャネルを示すシグナル
	RecipientName  string
	WebFormURL     string

	LegalCitations   []string
	EvidenceURLs     []string
	PerjuryStatement string
	Comparisons      []ComparisonItem
	Profile          InfringementProfile
	GeneratedAt      time.Time
}

// NoticeStrength は通知の強度ティアを表す。
type NoticeStrength string

const (
	// NoticeStrengthStrong はエラーなし・スコア85以上・警告2件以下。
	NoticeStrengthStrong NoticeStrength = "strong"
	// NoticeStrengthStandard はエラーなし・スコア60以上。
	NoticeStrengthStandard NoticeStrength = "standard"
	// NoticeStrengthWeak は上記以外。
	NoticeStrengthWeak NoticeStrength = "weak"
)

// QualityIssue は品質チェックで検出された個別の問題を表す。
// Fixは操作者が実行可能な修正手順の説明文。
type QualityIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fix     string `json:"fix"`
}

// QualityResult は通知の品質チェック結果を表す。
// 永続化されず、必要なときに再計算される。
type QualityResult struct {
	// Passed はハードエラーがゼロの場合のみtrue。警告は送付を妨げない。
	Passed   bool           `json:"passed"`
	Score    int            `json:"score"` // 0-100
	Strength NoticeStrength `json:"strength"`
	Errors   []QualityIssue `json:"errors"`
	Warnings []QualityIssue `json:"warnings"`
}

// DeliveryMethod は通知の配送チャネルを表す。
type DeliveryMethod string

const (
	// DeliveryMethodEmail はメール送付（送信キュー経由）。
	DeliveryMethodEmail DeliveryMethod = "email"
	// DeliveryMethodWebForm はプロバイダのWebフォームからの手動送付。
	DeliveryMethodWebForm DeliveryMethod = "web_form"
	// DeliveryMethodManual はその他の手動対応。
	DeliveryMethodManual DeliveryMethod = "manual"
)

// BulkGenerationResult は一括生成における1件分の結果を表す。
type BulkGenerationResult struct {
	InfringementID string
	Target         EnforcementTarget
	Provider       Provider
	Notice         *BuiltNotice
	DeliveryMethod DeliveryMethod
	AllTargets     []EnforcementTarget
}

// BulkGroup は配送チャネルごとにまとめられた通知グループを表す。
type BulkGroup struct {
	Key             string // email / provider+formURL / provider
	ProviderName    string
	RecipientEmail  string
	WebFormURL      string
	InfringementIDs []string
	Count           int
	// UnverifiedRecipient は未確認の連絡先を含むグループであることを示す。
	UnverifiedRecipient bool
}

// BulkSummary は一括生成結果の集計を表す。グループ化はキー単位で順序非依存。
type BulkSummary struct {
	EmailGroups   []BulkGroup
	WebFormGroups []BulkGroup
	ManualGroups  []BulkGroup
	TotalCount    int
}

// BulkResult は一括生成の全体結果を表す。
// Resultsは入力順を保持する。
type BulkResult struct {
	Results []BulkGenerationResult
	Summary BulkSummary
}
