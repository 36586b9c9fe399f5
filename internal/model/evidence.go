// Package model はドメインモデルを定義する。
package model

// MatchType はAI証拠分析が検出した一致の種類を表す。
type MatchType string

const (
	// MatchTypeExactReproduction は逐語的な複製。未知のラベルはここに丸められる。
	MatchTypeExactReproduction MatchType = "exact_reproduction"
	// MatchTypeParaphrase は言い換えによる複製。
	MatchTypeParaphrase MatchType = "paraphrase"
	// MatchTypeBrandUse はブランド名・商標の無断使用。
	MatchTypeBrandUse MatchType = "brand_use"
	// MatchTypeStructuralCopy は構成・構造の複製。
	MatchTypeStructuralCopy MatchType = "structural_copy"
)

// MatchSignificance は一致の法的重要度ティアを表す。
type MatchSignificance string

const (
	// SignificanceCritical は単独で侵害を立証しうる一致。
	SignificanceCritical MatchSignificance = "critical"
	// SignificanceStrong は強い裏付けとなる一致。
	SignificanceStrong MatchSignificance = "strong"
	// SignificanceSupporting は補助的な一致。未知のラベルはここに丸められる。
	SignificanceSupporting MatchSignificance = "supporting"
)

// EvidenceMatch はAI証拠分析が生成した型付きの一致項目を表す。
type EvidenceMatch struct {
	Type           MatchType         `json:"type"`
	OriginalText   string            `json:"original_text"`
	InfringingText string            `json:"infringing_text"`
	Context        string            `json:"context,omitempty"`
	Significance   MatchSignificance `json:"significance"`
	Explanation    string            `json:"explanation,omitempty"`
	DMCAPhrasing   string            `json:"dmca_phrasing,omitempty"`
	Confidence     float64           `json:"confidence"` // 0-1
}

// EvidenceAnalysis はAI証拠分析の結果全体を表す。
// 分析不能（ページテキスト不足、能力の障害）の場合は結果自体がnilになり、
// 「分析したが一致ゼロ」とは区別される。
type EvidenceAnalysis struct {
	Matches            []EvidenceMatch `json:"matches"`
	Summary            string          `json:"summary"`
	StrengthScore      int             `json:"strength_score"` // 0-100
	RecommendedForDMCA bool            `json:"recommended_for_dmca"`
}
