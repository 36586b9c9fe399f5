// Package evidence は侵害ページの証拠収集と分析を提供する。
// SSRF防止付きのページキャプチャと、AIテキスト分析能力の検証ラッパーを含む。
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/productguard/internal/model"
)

const (
	// minPageTextLength はこの文字数未満のページテキストでは分析をスキップする。
	// データ不足で分析をでっち上げるより「結果なし」を返す方が安全。
	minPageTextLength = 50
	// maxPageTextLength は分析に渡すページテキストの上限（文字予算）。
	maxPageTextLength = 12000
	// minMatchTextLength は一致項目の両側テキストの最小文字数。
	minMatchTextLength = 5
	// minMatchConfidence は一致項目の最小信頼度。
	minMatchConfidence = 0.5
	// maxMatches は保持する一致項目の上限（重要度順）。
	maxMatches = 8
)

// Completer はAIテキスト分析能力のインターフェースを定義する。
// JSONレスポンスフォーマットでの構造化出力を前提とする。
type Completer interface {
	// Complete はシステムプロンプトとユーザープロンプトから構造化JSONを生成する。
	Complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error)
}

// AnalyzeInput は証拠分析の入力。
type AnalyzeInput struct {
	Product   *model.Product
	PageText  string
	PageTitle string
	SourceURL string
}

// Analyzer はAI分析能力の出力を検証・正規化するラッパー。
// 能力の生の出力をそのまま信用せず、契約に適合する一致項目のみを通す。
type Analyzer struct {
	completer Completer
	logger    *slog.Logger
}

// NewAnalyzer はAnalyzerの新しいインスタンスを生成する。
func NewAnalyzer(completer Completer, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		completer: completer,
		logger:    logger,
	}
}

// rawAnalysis は能力が返す生のJSON構造。検証前の中間表現。
type rawAnalysis struct {
	Matches []struct {
		Type           string  `json:"type"`
		OriginalText   string  `json:"original_text"`
		InfringingText string  `json:"infringing_text"`
		Context        string  `json:"context"`
		Significance   string  `json:"significance"`
		Explanation    string  `json:"explanation"`
		DMCAPhrasing   string  `json:"dmca_phrasing"`
		Confidence     float64 `json:"confidence"`
	} `json:"matches"`
	Summary            string `json:"summary"`
	StrengthScore      int    `json:"strength_score"`
	RecommendedForDMCA bool   `json:"recommended_for_dmca"`
}

// Analyze はキャプチャ済みページテキストを商品の参照データと比較分析する。
//
// ページテキストが50文字未満の場合は分析をスキップし(nil, nil)を返す。
// これは「分析したが一致ゼロ」（非nilで空のMatches）と区別される。
// 能力の転送・パース障害も(nil, nil)に縮退する。証拠の不在は呼び出し元に
// とって正常で一般的な結果であり、エラーではない。
func (a *Analyzer) Analyze(ctx context.Context, in AnalyzeInput) (*model.EvidenceAnalysis, error) {
	text := strings.TrimSpace(in.PageText)
	if len(text) < minPageTextLength {
		a.logger.Debug("ページテキストが不足しているため証拠分析をスキップします",
			slog.Int("text_length", len(text)),
			slog.String("source_url", in.SourceURL),
		)
		return nil, nil
	}
	if len(text) > maxPageTextLength {
		// マルチバイト文字の途中で切らないようルーン境界まで戻す
		cut := maxPageTextLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	raw, err := a.completer.Complete(ctx, analysisSystemPrompt, buildUserPrompt(in.Product, text, in.PageTitle, in.SourceURL))
	if err != nil {
		a.logger.Warn("証拠分析能力の呼び出しに失敗しました。結果なしとして続行します",
			slog.String("error", err.Error()),
			slog.String("source_url", in.SourceURL),
		)
		return nil, nil
	}

	var parsed rawAnalysis
	if err := json.Unmarshal(raw, &parsed); err != nil {
		a.logger.Warn("証拠分析のレスポンスのパースに失敗しました。結果なしとして続行します",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	return a.validate(parsed), nil
}

// validate は生の分析結果を契約に適合する形に正規化する。
//   - 両側テキスト5文字未満または信頼度0.5未満の一致は破棄
//   - 未知のタイプ/重要度ラベルは安全なデフォルトに丸める
//   - 重要度順に上位8件へ切り詰める
func (a *Analyzer) validate(raw rawAnalysis) *model.EvidenceAnalysis {
	matches := make([]model.EvidenceMatch, 0, len(raw.Matches))
	for _, m := range raw.Matches {
		original := strings.TrimSpace(m.OriginalText)
		infringing := strings.TrimSpace(m.InfringingText)
		if len(original) < minMatchTextLength || len(infringing) < minMatchTextLength {
			continue
		}
		if m.Confidence < minMatchConfidence {
			continue
		}
		matches = append(matches, model.EvidenceMatch{
			Type:           coerceMatchType(m.Type),
			OriginalText:   original,
			InfringingText: infringing,
			Context:        m.Context,
			Significance:   coerceSignificance(m.Significance),
			Explanation:    m.Explanation,
			DMCAPhrasing:   m.DMCAPhrasing,
			Confidence:     m.Confidence,
		})
	}

	// 重要度の高い順に安定ソートしてから上限で切り詰める
	sort.SliceStable(matches, func(i, j int) bool {
		return significanceRank(matches[i].Significance) < significanceRank(matches[j].Significance)
	})
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	score := raw.StrengthScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &model.EvidenceAnalysis{
		Matches:            matches,
		Summary:            raw.Summary,
		StrengthScore:      score,
		RecommendedForDMCA: raw.RecommendedForDMCA,
	}
}

// coerceMatchType は未知のタイプラベルをexact_reproductionに丸める。
func coerceMatchType(s string) model.MatchType {
	switch model.MatchType(strings.ToLower(strings.TrimSpace(s))) {
	case model.MatchTypeExactReproduction, model.MatchTypeParaphrase,
		model.MatchTypeBrandUse, model.MatchTypeStructuralCopy:
		return model.MatchType(strings.ToLower(strings.TrimSpace(s)))
	default:
		return model.MatchTypeExactReproduction
	}
}

// coerceSignificance は未知の重要度ラベルをsupportingに丸める。
func coerceSignificance(s string) model.MatchSignificance {
	switch model.MatchSignificance(strings.ToLower(strings.TrimSpace(s))) {
	case model.SignificanceCritical, model.SignificanceStrong, model.SignificanceSupporting:
		return model.MatchSignificance(strings.ToLower(strings.TrimSpace(s)))
	default:
		return model.SignificanceSupporting
	}
}

// significanceRank は重要度の序列を返す（小さいほど重要）。
func significanceRank(s model.MatchSignificance) int {
	switch s {
	case model.SignificanceCritical:
		return 0
	case model.SignificanceStrong:
		return 1
	default:
		return 2
	}
}

// analysisSystemPrompt は証拠分析能力へのシステムプロンプト。
const analysisSystemPrompt = `You are a copyright-infringement evidence analyst. Compare the captured page text against the product's reference data and return JSON with this exact shape:
{"matches":[{"type":"exact_reproduction|paraphrase|brand_use|structural_copy","original_text":"...","infringing_text":"...","context":"...","significance":"critical|strong|supporting","explanation":"...","dmca_phrasing":"...","confidence":0.0}],"summary":"...","strength_score":0,"recommended_for_dmca":false}
Only report matches you can ground in the provided texts. Never invent text that does not appear in the inputs.`

// buildUserPrompt は商品参照データとキャプチャ済みテキストからプロンプトを構築する。
func buildUserPrompt(p *model.Product, pageText, pageTitle, sourceURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PRODUCT NAME: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "PRODUCT DESCRIPTION: %s\n", p.Description)
	}
	if len(p.Fingerprint.UniquePhrases) > 0 {
		fmt.Fprintf(&b, "UNIQUE PHRASES: %s\n", strings.Join(p.Fingerprint.UniquePhrases, "; "))
	}
	if len(p.Fingerprint.CopyrightedTerms) > 0 {
		fmt.Fprintf(&b, "COPYRIGHTED TERMS: %s\n", strings.Join(p.Fingerprint.CopyrightedTerms, "; "))
	}
	if len(p.Fingerprint.BrandIdentifiers) > 0 {
		fmt.Fprintf(&b, "BRAND IDENTIFIERS: %s\n", strings.Join(p.Fingerprint.BrandIdentifiers, "; "))
	}
	fmt.Fprintf(&b, "\nCAPTURED PAGE URL: %s\n", sourceURL)
	if pageTitle != "" {
		fmt.Fprintf(&b, "CAPTURED PAGE TITLE: %s\n", pageTitle)
	}
	fmt.Fprintf(&b, "CAPTURED PAGE TEXT:\n%s\n", pageText)
	return b.String()
}
