// Package model はドメインモデルを定義する。
package model

// TargetType はエンフォースメント対象の種別を表す。
// エスカレーション順序: platform → hosting → registrar → search_engine。
type TargetType string

const (
	// TargetTypePlatform はコンテンツ掲載プラットフォーム。
	TargetTypePlatform TargetType = "platform"
	// TargetTypeHosting はホスティングプロバイダ。
	TargetTypeHosting TargetType = "hosting"
	// TargetTypeRegistrar はドメインレジストラ。
	TargetTypeRegistrar TargetType = "registrar"
	// TargetTypeSearchEngine は検索エンジン（インデックス削除）。
	TargetTypeSearchEngine TargetType = "search_engine"
)

// ContactMethod はプロバイダへの推奨連絡手段を表す。
type ContactMethod string

const (
	// ContactMethodEmail はメールによる連絡。
	ContactMethodEmail ContactMethod = "email"
	// ContactMethodWebForm はWebフォームによる連絡。
	ContactMethodWebForm ContactMethod = "web_form"
)

// Provider はDMCA通知の送付先プロバイダ情報を表す。
// 静的なプロバイダディレクトリのエントリ、または解決時に合成される。
type Provider struct {
	ID            string
	Name          string
	DMCAEmail     string // 空の場合はメール送付不可
	WebFormURL    string // 空の場合はWebフォームなし
	ContactMethod ContactMethod
	// Verified は公式ソースで確認済みの連絡先であることを示す。
	// falseのエントリは信頼度が低いものとして操作者に提示される。
	Verified bool
}

// Usable はプロバイダが送付先として使用可能かを返す。
// メールもWebフォームもないエントリは終端の配送チャネルにならない。
func (p Provider) Usable() bool {
	return p.DMCAEmail != "" || p.WebFormURL != ""
}

// EnforcementTarget は解決済みのエンフォースメント対象を表す。
type EnforcementTarget struct {
	Type     TargetType
	Provider Provider
	// Step はエスカレーション順序（1が最初の送付先）。
	Step int
	// Recommended は最初に送付すべき対象であることを示す。
	// 通常、リスト内で最大1件がtrueになる。
	Recommended bool
	// Reason は対象を選定した理由の説明文。
	Reason string
	// EscalationDays は次の対象へエスカレーションするまでの推奨日数。
	// 0は他の対象と並行して即時実行可能であることを示す。
	EscalationDays int
}
