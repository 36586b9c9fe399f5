// Package model はドメインモデルを定義する。
package model

import "time"

// Infringement は検出された無断コピー（侵害）を表す。
// スキャンエンジン（外部）が作成し、検証操作とテイクダウンパイプラインが
// ステータスを遷移させる。
type Infringement struct {
	ID               string
	UserID           string
	ProductID        string
	SourceURL        string
	Platform         string
	InfringementType string
	Evidence         Evidence
	Infrastructure   *InfrastructureProfile
	SeverityScore    int // 0-100
	Status           InfringementStatus
	FirstSeenAt      time.Time
	LastSeenAt       time.Time
	SeenCount        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InfringementStatus は侵害レコードのライフサイクル状態を表す。
type InfringementStatus string

const (
	// InfringementStatusPendingVerification は検証待ちの状態。
	InfringementStatusPendingVerification InfringementStatus = "pending_verification"
	// InfringementStatusActive は検証済みで対応可能な状態。
	InfringementStatusActive InfringementStatus = "active"
	// InfringementStatusTakedownSent はテイクダウン通知送信済みの状態。
	InfringementStatusTakedownSent InfringementStatus = "takedown_sent"
	// InfringementStatusRemoved はコンテンツが削除された状態。
	InfringementStatusRemoved InfringementStatus = "removed"
	// InfringementStatusDisputed は相手方が異議申し立てをした状態。
	InfringementStatusDisputed InfringementStatus = "disputed"
	// InfringementStatusFalsePositive は誤検出と判定された状態。
	InfringementStatusFalsePositive InfringementStatus = "false_positive"
	// InfringementStatusArchived はアーカイブされた状態。
	InfringementStatusArchived InfringementStatus = "archived"
)

// Evidence は侵害の証拠データを表す。
// スキャンエンジンが収集した生データとAI分析結果を保持する。
// JSONBカラムとして永続化される自由形式のブロブ。
type Evidence struct {
	MatchedText        []string        `json:"matched_text,omitempty"`
	RawExcerpts        []string        `json:"raw_excerpts,omitempty"`
	RedirectChain      []string        `json:"redirect_chain,omitempty"`
	ListedPrice        string          `json:"listed_price,omitempty"`
	MarketplaceListing bool            `json:"marketplace_listing,omitempty"`
	ImageMatchCount    int             `json:"image_match_count,omitempty"`
	TextMatchCount     int             `json:"text_match_count,omitempty"`
	CapturedTitle      string          `json:"captured_title,omitempty"`
	CapturedText       string          `json:"captured_text,omitempty"`
	AnalyzedMatches    []EvidenceMatch `json:"analyzed_matches,omitempty"`
}

// InfrastructureProfile は侵害サイトのインフラ情報を表す。
// WHOIS/DNS調査で得られた構造化データ。全フィールドが任意。
type InfrastructureProfile struct {
	IPAddress       string `json:"ip_address,omitempty"`
	HostingProvider string `json:"hosting_provider,omitempty"`
	Registrar       string `json:"registrar,omitempty"`
	AbuseEmail      string `json:"abuse_email,omitempty"`
	WhoisOwner      string `json:"whois_owner,omitempty"`
	WhoisCountry    string `json:"whois_country,omitempty"`
}

// InfringementProfile は侵害を分類した法的類型を表す。
type InfringementProfile string

const (
	// ProfileFullReupload はコンテンツ全体の無断再アップロード。
	// 最も広範な主張であり、分類不能時のデフォルト。
	ProfileFullReupload InfringementProfile = "full_reupload"
	// ProfileCopiedText はテキストの複製。
	ProfileCopiedText InfringementProfile = "copied_text"
	// ProfileCopiedImages は画像の複製。
	ProfileCopiedImages InfringementProfile = "copied_images"
	// ProfileLeakedDownload はダウンロード商品の流出。
	ProfileLeakedDownload InfringementProfile = "leaked_download"
	// ProfileUnauthorizedResale は無断転売。
	ProfileUnauthorizedResale InfringementProfile = "unauthorized_resale"
	// ProfilePartialCopy は部分的な複製。
	ProfilePartialCopy InfringementProfile = "partial_copy"
)
