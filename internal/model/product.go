// Package model はドメインモデルを定義する。
package model

import "time"

// Product は保護対象の著作物（デジタル商品）を表す。
// 商品登録時に作成され、通知パイプラインからは参照のみされる。
type Product struct {
	ID          string
	UserID      string
	Name        string
	Type        ProductType
	Price       string
	URL         string
	Description string

	// 著作権・商標メタデータ
	BrandName                   string
	TrademarkNumber             string
	CopyrightRegistrationNumber string

	// AI抽出の構造化フィンガープリント
	Fingerprint Fingerprint

	// DMCA連絡先の上書き（空の場合はユーザープロフィールのデフォルトを使用）
	DMCAContactEmail string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductType は商品の種類を表す。
type ProductType string

const (
	// ProductTypeCourse はオンラインコース。
	ProductTypeCourse ProductType = "course"
	// ProductTypeIndicator はトレーディングインジケーター。
	ProductTypeIndicator ProductType = "indicator"
	// ProductTypeSoftware はソフトウェア。
	ProductTypeSoftware ProductType = "software"
	// ProductTypeTemplate はテンプレート。
	ProductTypeTemplate ProductType = "template"
	// ProductTypeEbook は電子書籍。
	ProductTypeEbook ProductType = "ebook"
	// ProductTypeOther はその他。
	ProductTypeOther ProductType = "other"
)

// Fingerprint は商品コンテンツのAI抽出フィンガープリントを表す。
// 比較項目の生成と証拠分析で参照される。
// JSONBカラムとして永続化される。
type Fingerprint struct {
	BrandIdentifiers []string `json:"brand_identifiers,omitempty"`
	UniquePhrases    []string `json:"unique_phrases,omitempty"`
	CopyrightedTerms []string `json:"copyrighted_terms,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
}

// HasUniqueMarkers はフィンガープリントに識別力のあるマーカーが含まれるかを返す。
func (f Fingerprint) HasUniqueMarkers() bool {
	return len(f.UniquePhrases) > 0 || len(f.CopyrightedTerms) > 0
}

// DMCAContact は通知の署名ブロックに使用する権利者の身元情報を表す。
// リクエストごとに指定するか、ユーザープロフィールのデフォルトを使用する。
// 名前と住所は法的に完全な通知の必須項目（品質チェッカーがハードエラーとして強制）。
type DMCAContact struct {
	Name          string
	Company       string
	Email         string
	Phone         string
	Address       string
	IsOwner       bool
	OwnerRelation string // 権利者本人でない場合の関係（例: authorized agent）
	SignatureName string // 電子署名に使用する名前（空の場合はNameを使用）
}
