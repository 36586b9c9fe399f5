// Package notice はDMCA通知の生成パイプラインを提供する。
// 侵害プロファイル分類、比較項目構築、通知本文の組み立て、
// 品質チェック、一括生成オーケストレーションを含む。
// このパッケージの関数は全て純粋で副作用を持たない。
package notice

import (
	"strings"

	"github.com/hitoshi/productguard/internal/model"
)

// ProfileInput は侵害プロファイル分類の入力。
// 全フィールドが任意だが、少なくとも1つは存在することが期待される。
type ProfileInput struct {
	Platform         string
	InfringementType string
	Evidence         *model.Evidence
	SourceURL        string
}

// typeToProfile は侵害タイプ文字列からプロファイルへの静的マップ。
// 最も具体的なシグナルのため最初に評価される。
var typeToProfile = map[string]model.InfringementProfile{
	"full_reupload":       model.ProfileFullReupload,
	"reupload":            model.ProfileFullReupload,
	"copied_text":         model.ProfileCopiedText,
	"text_copy":           model.ProfileCopiedText,
	"copied_images":       model.ProfileCopiedImages,
	"image_copy":          model.ProfileCopiedImages,
	"leaked_download":     model.ProfileLeakedDownload,
	"leak":                model.ProfileLeakedDownload,
	"file_share":          model.ProfileLeakedDownload,
	"unauthorized_resale": model.ProfileUnauthorizedResale,
	"resale":              model.ProfileUnauthorizedResale,
	"partial_copy":        model.ProfilePartialCopy,
	"partial":             model.ProfilePartialCopy,
}

// platformToProfile はプラットフォームからプロファイルへの静的マップ。
// 弱いシグナルのため最後のヒューリスティックとして評価される。
var platformToProfile = map[string]model.InfringementProfile{
	"telegram":  model.ProfileLeakedDownload,
	"mega":      model.ProfileLeakedDownload,
	"mediafire": model.ProfileLeakedDownload,
	"dropbox":   model.ProfileLeakedDownload,
	"etsy":      model.ProfileUnauthorizedResale,
	"ebay":      model.ProfileUnauthorizedResale,
	"gumroad":   model.ProfileUnauthorizedResale,
	"shopify":   model.ProfileUnauthorizedResale,
	"youtube":   model.ProfileFullReupload,
	"scribd":    model.ProfileFullReupload,
	"udemy":     model.ProfileFullReupload,
}

// fileHostDomains はダウンロード流出を示唆する既知のファイルホストドメイン。
var fileHostDomains = []string{
	"mega.nz", "mediafire.com", "drive.google.com", "dropbox.com",
	"anonfiles.com", "4shared.com", "zippyshare.com", "pixeldrain.com",
	"gofile.io", "files.fm",
}

// storefrontDomains は無断転売を示唆する既知のストアフロントドメイン。
var storefrontDomains = []string{
	"etsy.com", "ebay.com", "gumroad.com", "myshopify.com",
	"sellfy.com", "payhip.com", "whop.com",
}

// ClassifyProfile は侵害レコードを法的類型に分類する。
// 先勝ちの評価順序:
//  1. 侵害タイプの静的マップ（最も具体的なシグナル）
//  2. 証拠ヒューリスティック（価格/マーケットプレイス、画像のみの一致）
//  3. URL部分文字列ヒューリスティック（ファイルホスト、ストアフロント）
//  4. プラットフォームの静的マップ
//  5. デフォルト: full_reupload（最も広範で汎用的に正当化しやすい主張）
//
// 純粋関数であり、常に値を返す。エラーにはならない。
func ClassifyProfile(in ProfileInput) model.InfringementProfile {
	// 1. 侵害タイプ
	if in.InfringementType != "" {
		if p, ok := typeToProfile[strings.ToLower(strings.TrimSpace(in.InfringementType))]; ok {
			return p
		}
	}

	// 2. 証拠ヒューリスティック
	if ev := in.Evidence; ev != nil {
		if ev.ListedPrice != "" || ev.MarketplaceListing {
			return model.ProfileUnauthorizedResale
		}
		if ev.ImageMatchCount > 0 && ev.TextMatchCount == 0 {
			return model.ProfileCopiedImages
		}
	}

	// 3. URLヒューリスティック
	if in.SourceURL != "" {
		lower := strings.ToLower(in.SourceURL)
		for _, d := range fileHostDomains {
			if strings.Contains(lower, d) {
				return model.ProfileLeakedDownload
			}
		}
		for _, d := range storefrontDomains {
			if strings.Contains(lower, d) {
				return model.ProfileUnauthorizedResale
			}
		}
	}

	// 4. プラットフォーム
	if in.Platform != "" {
		if p, ok := platformToProfile[strings.ToLower(strings.TrimSpace(in.Platform))]; ok {
			return p
		}
	}

	// 5. デフォルト
	return model.ProfileFullReupload
}

// profileLegalBasis はプロファイルごとの法的根拠文（通知本文で使用、英語）。
var profileLegalBasis = map[model.InfringementProfile]string{
	model.ProfileFullReupload:       "The infringing page hosts a complete, unauthorized reproduction of the copyrighted work.",
	model.ProfileCopiedText:         "The infringing page reproduces substantial portions of the copyrighted text without authorization.",
	model.ProfileCopiedImages:       "The infringing page reproduces copyrighted images and visual materials without authorization.",
	model.ProfileLeakedDownload:     "The infringing page distributes unauthorized copies of a paid digital product, circumventing the rights holder's sales channel.",
	model.ProfileUnauthorizedResale: "The infringing page offers the copyrighted work for sale without any license or authorization from the rights holder.",
	model.ProfilePartialCopy:        "The infringing page reproduces identifiable portions of the copyrighted work without authorization.",
}

// LegalBasis はプロファイルの法的根拠文を返す。
// 未知のプロファイルにはfull_reuploadの文言を返す。
func LegalBasis(p model.InfringementProfile) string {
	if s, ok := profileLegalBasis[p]; ok {
		return s
	}
	return profileLegalBasis[model.ProfileFullReupload]
}
