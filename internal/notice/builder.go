package notice

import (
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/productguard/internal/model"
)

// 法定の定型文。DMCA §512(c)(3)が要求する文言であり、一言一句このまま
// 通知に含める。生成的な処理で言い換えてはならない。
const (
	// GoodFaithStatement は善意の信念の法定陳述。
	GoodFaithStatement = "I have a good faith belief that the use of the material in the manner complained of is not authorized by the copyright owner, its agent, or the law."
	// PerjuryStatement は偽証罪の制裁下での正確性の法定陳述。
	PerjuryStatement = "The information in this notification is accurate, and under penalty of perjury, I swear that I am the copyright owner or am authorized to act on behalf of the owner of an exclusive right that is allegedly infringed."
)

// sectionSeparator は通知本文の7セクションを区切る可視のセパレータ。
const sectionSeparator = "\n\n----------------------------------------\n\n"

// 引用する法的条文。
const (
	citationNotice            = "17 U.S.C. § 512(c)(3)"
	citationMisrepresentation = "17 U.S.C. § 512(f)"
)

// BuildInput はDMCA通知組み立ての入力。
type BuildInput struct {
	Contact      model.DMCAContact
	Product      *model.Product
	Infringement *model.Infringement
	Profile      model.InfringementProfile
	Provider     model.Provider
	Comparisons  []model.ComparisonItem
	Evidence     *model.EvidencePacket
	// Now は署名日。ゼロ値の場合は現在時刻を使用する（テストで固定可能）。
	Now time.Time
}

// BuildNotice は7セクション構成のDMCA通知を組み立てる。
// セクションは固定順で、決定的な文字列テンプレートのみで構成される。
// 法定必須セクションの条件付き省略はない（省略可能なのは証拠セクションDのみ）。
// 送付先フィールドはプロバイダから直接コピーされ、メールがないプロバイダでは
// RecipientEmailが空文字列になる（Webフォーム/手動チャネルを使うシグナル）。
// 副作用なし。
func BuildNotice(in BuildInput) *model.BuiltNotice {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	sections := []string{
		buildIdentitySection(in.Contact),
		buildWorkSection(in.Product),
		buildInfringingSection(in.Infringement, in.Profile, in.Comparisons),
	}

	var evidenceURLs []string
	// セクションD: 証拠パケットがない場合はセクションごと省略する
	if in.Evidence != nil {
		sections = append(sections, buildEvidenceSection(in.Evidence))
		if in.Evidence.ArchiveURL != "" {
			evidenceURLs = append(evidenceURLs, in.Evidence.ArchiveURL)
		}
		if in.Evidence.Timestamp != nil && in.Evidence.Timestamp.ProofURL != "" {
			evidenceURLs = append(evidenceURLs, in.Evidence.Timestamp.ProofURL)
		}
	}

	sections = append(sections,
		buildStatutorySection(),
		buildRequestedActionSection(in.Infringement),
		buildSignatureSection(in.Contact, now),
	)

	subject := fmt.Sprintf("DMCA Takedown Notice - %s - %s",
		in.Product.Name, in.Infringement.SourceURL)

	return &model.BuiltNotice{
		Subject:          subject,
		Body:             strings.Join(sections, sectionSeparator),
		RecipientEmail:   in.Provider.DMCAEmail,
		RecipientName:    in.Provider.Name,
		WebFormURL:       in.Provider.WebFormURL,
		LegalCitations:   []string{citationNotice, citationMisrepresentation},
		EvidenceURLs:     evidenceURLs,
		PerjuryStatement: PerjuryStatement,
		Comparisons:      in.Comparisons,
		Profile:          in.Profile,
		GeneratedAt:      now,
	}
}

// buildIdentitySection はセクションA: 通知者の身元と権限の根拠。
func buildIdentitySection(c model.DMCAContact) string {
	var b strings.Builder
	b.WriteString("SECTION A - NOTIFYING PARTY\n\n")
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	if c.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", c.Company)
	}
	fmt.Fprintf(&b, "Email: %s\n", c.Email)
	if c.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", c.Phone)
	}
	fmt.Fprintf(&b, "Address: %s\n\n", c.Address)

	if c.IsOwner {
		b.WriteString("I am the owner of the copyrighted work identified below.")
	} else {
		relation := c.OwnerRelation
		if relation == "" {
			relation = "authorized agent"
		}
		fmt.Fprintf(&b, "I am authorized to act on behalf of the owner of the copyrighted work identified below (%s).", relation)
	}
	return b.String()
}

// buildWorkSection はセクションB: 著作物の特定。
func buildWorkSection(p *model.Product) string {
	var b strings.Builder
	b.WriteString("SECTION B - IDENTIFICATION OF THE COPYRIGHTED WORK\n\n")
	fmt.Fprintf(&b, "Title: %s\n", p.Name)
	fmt.Fprintf(&b, "Type: %s\n", p.Type)
	if p.URL != "" {
		fmt.Fprintf(&b, "Official URL: %s\n", p.URL)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	if p.CopyrightRegistrationNumber != "" {
		fmt.Fprintf(&b, "Copyright Registration Number: %s\n", p.CopyrightRegistrationNumber)
	}
	if p.TrademarkNumber != "" {
		fmt.Fprintf(&b, "Trademark Registration Number: %s\n", p.TrademarkNumber)
	}
	if p.BrandName != "" {
		fmt.Fprintf(&b, "Brand: %s\n", p.BrandName)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildInfringingSection はセクションC: 侵害素材の特定。
// プロファイルの法的根拠文と比較項目を含む。
func buildInfringingSection(inf *model.Infringement, profile model.InfringementProfile, comparisons []model.ComparisonItem) string {
	var b strings.Builder
	b.WriteString("SECTION C - IDENTIFICATION OF THE INFRINGING MATERIAL\n\n")
	fmt.Fprintf(&b, "Infringing URL: %s\n", inf.SourceURL)
	if inf.Platform != "" {
		fmt.Fprintf(&b, "Platform: %s\n", inf.Platform)
	}
	b.WriteString("\n")
	b.WriteString(LegalBasis(profile))
	b.WriteString("\n")

	if len(comparisons) > 0 {
		b.WriteString("\nThe following side-by-side comparisons demonstrate the unauthorized reproduction:\n")
		for i, c := range comparisons {
			fmt.Fprintf(&b, "\n%d. Original: \"%s\"\n   Found on infringing page: \"%s\"\n", i+1, c.OriginalText, c.InfringingText)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildEvidenceSection はセクションD: 補足証拠（省略可能な唯一のセクション）。
func buildEvidenceSection(e *model.EvidencePacket) string {
	var b strings.Builder
	b.WriteString("SECTION D - SUPPLEMENTAL EVIDENCE\n\n")
	if e.ContentHash != "" {
		fmt.Fprintf(&b, "Content hash of the original work: %s\n", e.ContentHash)
	}
	if e.Timestamp != nil && e.Timestamp.Status == "confirmed" {
		b.WriteString("The original work's existence and ownership have been timestamped on a public blockchain")
		if e.Timestamp.TransactionID != "" {
			fmt.Fprintf(&b, " (transaction: %s)", e.Timestamp.TransactionID)
		}
		b.WriteString(".\n")
	}
	if e.ArchiveURL != "" {
		fmt.Fprintf(&b, "An archived snapshot of the infringing page is preserved at: %s\n", e.ArchiveURL)
	}
	if e.CapturedAt != nil {
		fmt.Fprintf(&b, "The infringing page was captured on %s.\n", e.CapturedAt.UTC().Format("2006-01-02"))
	}
	if e.CaptureNote != "" {
		fmt.Fprintf(&b, "Note: %s\n", e.CaptureNote)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildStatutorySection はセクションE: 2つの法定陳述。
// 一言一句この文言のまま含める。
func buildStatutorySection() string {
	return "SECTION E - STATUTORY STATEMENTS\n\n" +
		GoodFaithStatement + "\n\n" + PerjuryStatement
}

// buildRequestedActionSection はセクションF: 要求事項。
func buildRequestedActionSection(inf *model.Infringement) string {
	var b strings.Builder
	b.WriteString("SECTION F - REQUESTED ACTION\n\n")
	fmt.Fprintf(&b, "Pursuant to %s, I request that you:\n\n", citationNotice)
	fmt.Fprintf(&b, "1. Expeditiously remove or disable access to the infringing material at %s;\n", inf.SourceURL)
	b.WriteString("2. Notify the party responsible for the infringing material of this notice;\n")
	b.WriteString("3. Confirm to the contact address above when the material has been removed;\n")
	b.WriteString("4. Take reasonable steps to locate and remove any duplicate copies of the same material on your service.\n\n")
	fmt.Fprintf(&b, "Please note that under %s, any person who knowingly materially misrepresents that material is infringing may be subject to liability.", citationMisrepresentation)
	return b.String()
}

// buildSignatureSection はセクションG: 電子署名ブロック。
func buildSignatureSection(c model.DMCAContact, now time.Time) string {
	name := c.SignatureName
	if name == "" {
		name = c.Name
	}
	var b strings.Builder
	b.WriteString("SECTION G - SIGNATURE\n\n")
	fmt.Fprintf(&b, "Electronic signature: /s/ %s\n", name)
	fmt.Fprintf(&b, "Date: %s", now.UTC().Format("2006-01-02"))
	return b.String()
}
