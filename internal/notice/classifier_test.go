package notice

import (
	"testing"

	"github.com/hitoshi/productguard/internal/model"
)

func TestClassifyProfile_TypeTakesPrecedence(t *testing.T) {
	// 侵害タイプは最も具体的なシグナルであり、他の全てのヒューリスティックに優先する
	got := ClassifyProfile(ProfileInput{
		InfringementType: "copied_text",
		Platform:         "telegram",
		SourceURL:        "https://mega.nz/file/abc",
		Evidence:         &model.Evidence{ListedPrice: "$49"},
	})
	if got != model.ProfileCopiedText {
		t.Errorf("プロファイル = %q, want copied_text（タイプが最優先）", got)
	}
}

func TestClassifyProfile_EvidenceHeuristics(t *testing.T) {
	cases := []struct {
		name string
		ev   model.Evidence
		want model.InfringementProfile
	}{
		{"価格あり", model.Evidence{ListedPrice: "$99"}, model.ProfileUnauthorizedResale},
		{"マーケットプレイス出品", model.Evidence{MarketplaceListing: true}, model.ProfileUnauthorizedResale},
		{"画像のみ一致", model.Evidence{ImageMatchCount: 4, TextMatchCount: 0}, model.ProfileCopiedImages},
	}
	for _, c := range cases {
		got := ClassifyProfile(ProfileInput{Evidence: &c.ev})
		if got != c.want {
			t.Errorf("%s: プロファイル = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestClassifyProfile_ImageAndTextMatchesNotImagesOnly(t *testing.T) {
	// テキスト一致もある場合は画像コピーと断定しない
	got := ClassifyProfile(ProfileInput{
		Evidence: &model.Evidence{ImageMatchCount: 2, TextMatchCount: 3},
	})
	if got == model.ProfileCopiedImages {
		t.Error("テキスト一致がある場合はcopied_imagesに分類すべきでない")
	}
}

func TestClassifyProfile_URLHeuristics(t *testing.T) {
	cases := []struct {
		url  string
		want model.InfringementProfile
	}{
		{"https://mega.nz/file/abc123", model.ProfileLeakedDownload},
		{"https://www.mediafire.com/file/xyz", model.ProfileLeakedDownload},
		{"https://drive.google.com/file/d/1", model.ProfileLeakedDownload},
		{"https://www.etsy.com/listing/12345", model.ProfileUnauthorizedResale},
		{"https://someone.gumroad.com/l/copy", model.ProfileUnauthorizedResale},
		{"https://store.myshopify.com/products/x", model.ProfileUnauthorizedResale},
	}
	for _, c := range cases {
		got := ClassifyProfile(ProfileInput{SourceURL: c.url})
		if got != c.want {
			t.Errorf("ClassifyProfile(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestClassifyProfile_PlatformFallback(t *testing.T) {
	got := ClassifyProfile(ProfileInput{
		Platform:  "Telegram",
		SourceURL: "https://unknown.example/post",
	})
	if got != model.ProfileLeakedDownload {
		t.Errorf("プロファイル = %q, want leaked_download（プラットフォームヒューリスティック）", got)
	}
}

func TestClassifyProfile_DefaultFullReupload(t *testing.T) {
	got := ClassifyProfile(ProfileInput{})
	if got != model.ProfileFullReupload {
		t.Errorf("プロファイル = %q, want full_reupload（デフォルト）", got)
	}
}

func TestClassifyProfile_Deterministic(t *testing.T) {
	in := ProfileInput{
		Platform:  "etsy",
		SourceURL: "https://www.etsy.com/listing/1",
		Evidence:  &model.Evidence{TextMatchCount: 2},
	}
	first := ClassifyProfile(in)
	for i := 0; i < 10; i++ {
		if got := ClassifyProfile(in); got != first {
			t.Fatalf("同一入力で結果が変化した: %q vs %q", first, got)
		}
	}
}

func TestLegalBasis_UnknownProfileFallsBack(t *testing.T) {
	if LegalBasis(model.InfringementProfile("nonsense")) != LegalBasis(model.ProfileFullReupload) {
		t.Error("未知のプロファイルはfull_reuploadの法的根拠文を返すべき")
	}
}
