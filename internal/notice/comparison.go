package notice

import (
	"strings"

	"github.com/hitoshi/productguard/internal/model"
)

// ComparisonInput は比較項目構築の入力。
type ComparisonInput struct {
	ProductName string
	ProductURL  string
	SourceURL   string
	Evidence    *model.Evidence
	Fingerprint model.Fingerprint
}

// genericKeywords は単独では比較項目として弱すぎる一般的な業界用語の除外リスト。
// 他のシグナルの裏付けがない単一の一般用語の一致は、強い比較項目として
// 扱ってはならない。
var genericKeywords = map[string]bool{
	"trading":   true,
	"course":    true,
	"indicator": true,
	"software":  true,
	"template":  true,
	"ebook":     true,
	"download":  true,
	"free":      true,
	"video":     true,
	"guide":     true,
	"online":    true,
	"profit":    true,
	"signal":    true,
	"strategy":  true,
	"tutorial":  true,
	"premium":   true,
}

// BuildComparisonItems は商品の参照データと証拠から「オリジナル対侵害」の
// 比較項目リストを構築する。順序は法的強度を反映する（強いものが先頭）:
//  1. AI分析の一致項目（重要度順に既ソート）
//  2. フィンガープリントの固有フレーズ・著作権対象語の一致
//  3. ブランド識別子の一致
//  4. 一般キーワードの一致（除外リスト該当は破棄）
//
// オリジナルテキストの小文字正規化で重複排除する。純粋関数。
func BuildComparisonItems(in ComparisonInput) []model.ComparisonItem {
	var items []model.ComparisonItem
	seen := make(map[string]bool)

	add := func(original, infringing, context string) {
		original = strings.TrimSpace(original)
		infringing = strings.TrimSpace(infringing)
		// 両側非空が不変条件
		if original == "" || infringing == "" {
			return
		}
		key := strings.ToLower(original)
		if seen[key] {
			return
		}
		seen[key] = true
		items = append(items, model.ComparisonItem{
			OriginalText:   original,
			InfringingText: infringing,
			Context:        context,
		})
	}

	capturedText := ""
	if in.Evidence != nil {
		capturedText = strings.ToLower(in.Evidence.CapturedText)
	}

	// 1. AI分析の一致項目（最も強いソース）
	if in.Evidence != nil {
		for _, m := range in.Evidence.AnalyzedMatches {
			add(m.OriginalText, m.InfringingText, m.Context)
		}
	}

	// 2. 固有フレーズ・著作権対象語: キャプチャ済みテキスト内での出現を照合
	for _, phrase := range in.Fingerprint.UniquePhrases {
		if containsPhrase(capturedText, phrase) {
			add(phrase, phrase, "商品に固有のフレーズが侵害ページに出現")
		}
	}
	for _, term := range in.Fingerprint.CopyrightedTerms {
		if containsPhrase(capturedText, term) {
			add(term, term, "著作権保護対象の用語が侵害ページに出現")
		}
	}

	// 3. ブランド識別子
	for _, brand := range in.Fingerprint.BrandIdentifiers {
		if containsPhrase(capturedText, brand) {
			add(brand, brand, "ブランド識別子が侵害ページに出現")
		}
	}

	// 4. スキャンエンジンの一致テキスト（中間的な強度）
	if in.Evidence != nil {
		for _, matched := range in.Evidence.MatchedText {
			if isGenericKeyword(matched) {
				continue
			}
			add(matched, matched, "スキャンで検出された一致テキスト")
		}
	}

	// 5. 一般キーワード: 除外リスト該当は破棄
	for _, kw := range in.Fingerprint.Keywords {
		if isGenericKeyword(kw) {
			continue
		}
		if containsPhrase(capturedText, kw) {
			add(kw, kw, "キーワードの一致")
		}
	}

	return items
}

// containsPhrase はキャプチャ済みテキストにフレーズが含まれるかを
// 小文字正規化して判定する。キャプチャがない場合はfalse。
func containsPhrase(capturedLower, phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" || capturedLower == "" {
		return false
	}
	return strings.Contains(capturedLower, phrase)
}

// isGenericKeyword は単独では弱すぎる一般用語かを判定する。
// 複数語からなるフレーズは固有性があるため除外対象にしない。
func isGenericKeyword(s string) bool {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if strings.Contains(normalized, " ") {
		return false
	}
	return genericKeywords[normalized]
}
