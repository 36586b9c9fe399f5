package notice

import (
	"strings"

	"github.com/hitoshi/productguard/internal/model"
)

// 品質チェックの採点定数。
const (
	hardErrorPenalty = 15
	warningPenalty   = 4

	strongScoreFloor   = 85
	strongMaxWarnings  = 2
	standardScoreFloor = 60
)

// 品質問題のコード。エラーは送付をブロックし、警告はしない。
const (
	CodeNoContactName        = "NO_CONTACT_NAME"
	CodeNoContactEmail       = "NO_CONTACT_EMAIL"
	CodeNoContactAddress     = "NO_CONTACT_ADDRESS"
	CodeNoProductName        = "NO_PRODUCT_NAME"
	CodeNoInfringingURL      = "NO_INFRINGING_URL"
	CodeNoGoodFaithStatement = "NO_GOOD_FAITH_STATEMENT"
	CodeNoPerjuryStatement   = "NO_PERJURY_STATEMENT"
	CodeNoSignature          = "NO_SIGNATURE"

	CodeFewComparisons          = "FEW_COMPARISONS"
	CodeNoEvidence              = "NO_EVIDENCE"
	CodeNoCopyrightRegistration = "NO_COPYRIGHT_REGISTRATION"
	CodeNoUniqueMarkers         = "NO_UNIQUE_MARKERS"
	CodeNoPhone                 = "NO_PHONE"
	CodeNoProductURL            = "NO_PRODUCT_URL"
	CodeWeakDescription         = "WEAK_DESCRIPTION"
)

// QualityInput は品質チェックの入力。組み立て済み通知の生成元データを
// フラットに展開したビュー。
type QualityInput struct {
	Contact      model.DMCAContact
	Product      *model.Product
	Infringement *model.Infringement
	Comparisons  []model.ComparisonItem
	Evidence     *model.EvidencePacket

	// 通知本文の内容フラグ。ビルダー出力を検査して設定する。
	HasGoodFaithStatement bool
	HasPerjuryStatement   bool
	HasSignature          bool
}

// QualityInputFromNotice は組み立て済み通知と生成元データから
// 品質チェック入力を構築する。本文の法定文言フラグは実際の本文を検査する。
func QualityInputFromNotice(n *model.BuiltNotice, contact model.DMCAContact, product *model.Product, inf *model.Infringement, evidence *model.EvidencePacket) QualityInput {
	return QualityInput{
		Contact:               contact,
		Product:               product,
		Infringement:          inf,
		Comparisons:           n.Comparisons,
		Evidence:              evidence,
		HasGoodFaithStatement: strings.Contains(n.Body, GoodFaithStatement),
		HasPerjuryStatement:   strings.Contains(n.Body, PerjuryStatement),
		HasSignature:          strings.Contains(n.Body, "Electronic signature:"),
	}
}

// CheckQuality は通知の法的完全性（ハードエラー）と説得力（警告・ボーナス）を
// 採点する。スコアは100から開始し、ハードエラー1件につき15減点、警告1件に
// つき4減点、該当するボーナスを加点した後に[0,100]へクランプする。
//
// passedはハードエラーがゼロの場合のみtrue。警告は送付をブロックしない。
// 同一入力に対して常に同一の結果を返す。
func CheckQuality(in QualityInput) *model.QualityResult {
	var errors, warnings []model.QualityIssue

	addError := func(code, message, fix string) {
		errors = append(errors, model.QualityIssue{Code: code, Message: message, Fix: fix})
	}
	addWarning := func(code, message, fix string) {
		warnings = append(warnings, model.QualityIssue{Code: code, Message: message, Fix: fix})
	}

	// ハードエラー: 法定必須フィールドの欠落
	if strings.TrimSpace(in.Contact.Name) == "" {
		addError(CodeNoContactName, "通知者の氏名がありません", "DMCA連絡先プロファイルに氏名を設定してください")
	}
	if strings.TrimSpace(in.Contact.Email) == "" {
		addError(CodeNoContactEmail, "通知者のメールアドレスがありません", "DMCA連絡先プロファイルにメールアドレスを設定してください")
	}
	if strings.TrimSpace(in.Contact.Address) == "" {
		addError(CodeNoContactAddress, "通知者の住所がありません", "DMCA連絡先プロファイルに住所を設定してください")
	}
	if in.Product == nil || strings.TrimSpace(in.Product.Name) == "" {
		addError(CodeNoProductName, "著作物の名称がありません", "商品に名称を設定してください")
	}
	if in.Infringement == nil || strings.TrimSpace(in.Infringement.SourceURL) == "" {
		addError(CodeNoInfringingURL, "侵害URLがありません", "侵害レコードにURLを設定してください")
	}
	if !in.HasGoodFaithStatement {
		addError(CodeNoGoodFaithStatement, "善意の信念の法定陳述が本文にありません", "通知を再生成してください")
	}
	if !in.HasPerjuryStatement {
		addError(CodeNoPerjuryStatement, "偽証罪の制裁下の法定陳述が本文にありません", "通知を再生成してください")
	}
	if !in.HasSignature {
		addError(CodeNoSignature, "電子署名が本文にありません", "通知を再生成してください")
	}

	// 警告: 説得力を下げる欠落
	if len(in.Comparisons) < 3 {
		addWarning(CodeFewComparisons, "比較項目が3件未満です", "フィンガープリントを充実させるか証拠分析を実行してください")
	}
	if in.Evidence == nil {
		addWarning(CodeNoEvidence, "証拠パケットがありません", "侵害ページのキャプチャを実行してください")
	}

	hasRegistration := in.Product != nil && strings.TrimSpace(in.Product.CopyrightRegistrationNumber) != ""
	if !hasRegistration {
		addWarning(CodeNoCopyrightRegistration, "著作権登録番号がありません", "登録済みであれば商品に登録番号を設定してください")
	}
	hasMarkers := in.Product != nil && in.Product.Fingerprint.HasUniqueMarkers()
	if !hasMarkers {
		addWarning(CodeNoUniqueMarkers, "商品を識別する固有マーカーがありません", "固有フレーズやブランド識別子をフィンガープリントに追加してください")
	}
	if strings.TrimSpace(in.Contact.Phone) == "" {
		addWarning(CodeNoPhone, "通知者の電話番号がありません", "DMCA連絡先プロファイルに電話番号を設定してください")
	}
	if in.Product == nil || strings.TrimSpace(in.Product.URL) == "" {
		addWarning(CodeNoProductURL, "著作物の公式URLがありません", "商品に公式URLを設定してください")
	}
	if in.Product == nil || len(strings.TrimSpace(in.Product.Description)) < 20 {
		addWarning(CodeWeakDescription, "著作物の説明が欠落しているか20文字未満です", "商品の説明を充実させてください")
	}

	// 採点: 100からの減点とボーナス加点、最後に[0,100]へクランプ
	score := 100
	score -= hardErrorPenalty * len(errors)
	score -= warningPenalty * len(warnings)

	if len(in.Comparisons) >= 3 {
		score += 5
	}
	if in.Evidence != nil {
		score += 5
		if in.Evidence.HasBlockchainTimestamp() {
			score += 3
		}
		if in.Evidence.ArchiveURL != "" {
			score += 2
		}
	}
	if hasRegistration {
		score += 3
	}
	if hasMarkers {
		score += 2
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	passed := len(errors) == 0

	strength := model.NoticeStrengthWeak
	switch {
	case passed && score >= strongScoreFloor && len(warnings) <= strongMaxWarnings:
		strength = model.NoticeStrengthStrong
	case passed && score >= standardScoreFloor:
		strength = model.NoticeStrengthStandard
	}

	return &model.QualityResult{
		Passed:   passed,
		Score:    score,
		Strength: strength,
		Errors:   errors,
		Warnings: warnings,
	}
}
