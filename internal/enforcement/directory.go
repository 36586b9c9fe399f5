// Package enforcement はDMCA通知の送付先（エンフォースメント対象）の
// 解決機能を提供する。静的なプロバイダディレクトリとURLパターンマッチング、
// プラットフォーム→ホスティング→レジストラ→検索エンジンの
// エスカレーション順序による対象リスト構築を含む。
package enforcement

import (
	"regexp"
	"strings"

	"github.com/hitoshi/productguard/internal/model"
)

// providerDirectory は既知プロバイダの静的ディレクトリ。
// プロセス起動時に1回構築され、以降は読み取り専用として全ゴルーチンで共有される。
// Verified=trueのエントリは公式のDMCA/著作権窓口ページで確認済みの連絡先。
// Verified=falseは公開情報からの推定であり、信頼度が低いものとして扱う。
var providerDirectory = map[string]model.Provider{
	// --- プラットフォーム ---
	"telegram": {
		ID: "telegram", Name: "Telegram",
		DMCAEmail:     "dmca@telegram.org",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"youtube": {
		ID: "youtube", Name: "YouTube",
		DMCAEmail:     "copyright@youtube.com",
		WebFormURL:    "https://www.youtube.com/copyright_complaint_form",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"facebook": {
		ID: "facebook", Name: "Facebook",
		WebFormURL:    "https://www.facebook.com/help/contact/634636770043106",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"instagram": {
		ID: "instagram", Name: "Instagram",
		WebFormURL:    "https://help.instagram.com/contact/372592039493026",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"x": {
		ID: "x", Name: "X (Twitter)",
		WebFormURL:    "https://help.twitter.com/forms/dmca",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"tiktok": {
		ID: "tiktok", Name: "TikTok",
		DMCAEmail:     "copyright@tiktok.com",
		WebFormURL:    "https://www.tiktok.com/legal/report/Copyright",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"discord": {
		ID: "discord", Name: "Discord",
		DMCAEmail:     "dmca@discord.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"reddit": {
		ID: "reddit", Name: "Reddit",
		WebFormURL:    "https://www.reddit.com/report?reason=copyright",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"github": {
		ID: "github", Name: "GitHub",
		DMCAEmail:     "copyright@github.com",
		WebFormURL:    "https://github.com/contact/dmca",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"vk": {
		ID: "vk", Name: "VK",
		DMCAEmail:     "abuse@vk.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      false,
	},
	"gumroad": {
		ID: "gumroad", Name: "Gumroad",
		DMCAEmail:     "support@gumroad.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      false,
	},
	"etsy": {
		ID: "etsy", Name: "Etsy",
		DMCAEmail:     "legal@etsy.com",
		WebFormURL:    "https://www.etsy.com/legal/ip-report",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"ebay": {
		ID: "ebay", Name: "eBay",
		DMCAEmail:     "vero@ebay.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"scribd": {
		ID: "scribd", Name: "Scribd",
		DMCAEmail:     "copyright@scribd.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"udemy": {
		ID: "udemy", Name: "Udemy",
		DMCAEmail:     "policy@udemy.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      false,
	},
	"mega": {
		ID: "mega", Name: "MEGA",
		DMCAEmail:     "copyright@mega.nz",
		WebFormURL:    "https://mega.nz/copyright",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"mediafire": {
		ID: "mediafire", Name: "MediaFire",
		DMCAEmail:     "legal@mediafire.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"dropbox": {
		ID: "dropbox", Name: "Dropbox",
		DMCAEmail:     "dmca@dropbox.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"google_drive": {
		ID: "google_drive", Name: "Google Drive",
		WebFormURL:    "https://support.google.com/legal/troubleshooter/1114905",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"shopify": {
		ID: "shopify", Name: "Shopify",
		DMCAEmail:     "legal@shopify.com",
		WebFormURL:    "https://www.shopify.com/legal/dmca",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},

	// --- ホスティングプロバイダ ---
	"cloudflare": {
		ID: "cloudflare", Name: "Cloudflare",
		DMCAEmail:     "abuse@cloudflare.com",
		WebFormURL:    "https://abuse.cloudflare.com/",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"digitalocean": {
		ID: "digitalocean", Name: "DigitalOcean",
		DMCAEmail:     "abuse@digitalocean.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"aws": {
		ID: "aws", Name: "Amazon Web Services",
		DMCAEmail:     "abuse@amazonaws.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"ovh": {
		ID: "ovh", Name: "OVH",
		DMCAEmail:     "abuse@ovh.net",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"hetzner": {
		ID: "hetzner", Name: "Hetzner",
		DMCAEmail:     "abuse@hetzner.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"hostinger": {
		ID: "hostinger", Name: "Hostinger",
		DMCAEmail:     "abuse@hostinger.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      false,
	},
	"vultr": {
		ID: "vultr", Name: "Vultr",
		DMCAEmail:     "abuse@vultr.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      false,
	},
	"linode": {
		ID: "linode", Name: "Linode (Akamai)",
		DMCAEmail:     "abuse@linode.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"contabo": {
		ID: "contabo", Name: "Contabo",
		DMCAEmail:     "abuse@contabo.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      false,
	},

	// --- レジストラ ---
	"namecheap": {
		ID: "namecheap", Name: "Namecheap",
		DMCAEmail:     "abuse@namecheap.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      true,
	},
	"godaddy": {
		ID: "godaddy", Name: "GoDaddy",
		DMCAEmail:     "abuse@godaddy.com",
		WebFormURL:    "https://supportcenter.godaddy.com/AbuseReport",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
	"tucows": {
		ID: "tucows", Name: "Tucows",
		DMCAEmail:     "abuse@tucows.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      false,
	},
	"porkbun": {
		ID: "porkbun", Name: "Porkbun",
		DMCAEmail:     "abuse@porkbun.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      false,
	},
	"dynadot": {
		ID: "dynadot", Name: "Dynadot",
		DMCAEmail:     "abuse@dynadot.com",
		ContactMethod: model.ContactMethodEmail,
		Verified:      false,
	},

	// --- 検索エンジン ---
	"google": {
		ID: "google", Name: "Google Search",
		WebFormURL:    "https://reportcontent.google.com/forms/dmca_search",
		ContactMethod: model.ContactMethodWebForm,
		Verified:      true,
	},
}

// urlPattern はURLからプラットフォームを特定するためのパターン。
// 評価順序が重要: 具体的なパターンを先に、包括パターン（"google."等）を最後に置く。
// 先頭一致で評価を打ち切る。
type urlPattern struct {
	pattern    *regexp.Regexp
	providerID string
}

var urlPatterns = []urlPattern{
	{regexp.MustCompile(`(^|\.)t\.me$|(^|\.)telegram\.(me|org)$`), "telegram"},
	{regexp.MustCompile(`(^|\.)youtube\.com$|(^|\.)youtu\.be$`), "youtube"},
	{regexp.MustCompile(`(^|\.)facebook\.com$|(^|\.)fb\.com$`), "facebook"},
	{regexp.MustCompile(`(^|\.)instagram\.com$`), "instagram"},
	{regexp.MustCompile(`(^|\.)twitter\.com$|^x\.com$|(^|\.)x\.com$`), "x"},
	{regexp.MustCompile(`(^|\.)tiktok\.com$`), "tiktok"},
	{regexp.MustCompile(`(^|\.)discord\.(com|gg)$`), "discord"},
	{regexp.MustCompile(`(^|\.)reddit\.com$|(^|\.)redd\.it$`), "reddit"},
	{regexp.MustCompile(`(^|\.)github\.com$|(^|\.)github\.io$`), "github"},
	{regexp.MustCompile(`(^|\.)vk\.com$`), "vk"},
	{regexp.MustCompile(`(^|\.)gumroad\.com$`), "gumroad"},
	{regexp.MustCompile(`(^|\.)etsy\.com$`), "etsy"},
	{regexp.MustCompile(`(^|\.)ebay\.(com|co\.uk|de)$`), "ebay"},
	{regexp.MustCompile(`(^|\.)scribd\.com$`), "scribd"},
	{regexp.MustCompile(`(^|\.)udemy\.com$`), "udemy"},
	{regexp.MustCompile(`(^|\.)mega\.(nz|io)$`), "mega"},
	{regexp.MustCompile(`(^|\.)mediafire\.com$`), "mediafire"},
	{regexp.MustCompile(`(^|\.)dropbox\.com$`), "dropbox"},
	{regexp.MustCompile(`(^|\.)shopify\.com$|(^|\.)myshopify\.com$`), "shopify"},
	// Google Driveはdrive.google.comのみ。包括のgoogle.パターンより先に評価する。
	{regexp.MustCompile(`^drive\.google\.com$|^docs\.google\.com$`), "google_drive"},
	// 包括パターン: 上のいずれにも該当しないgoogle.*ドメインは検索エンジン扱い。
	{regexp.MustCompile(`(^|\.)google\.`), "google"},
}

// platformAliases はプラットフォームヒント文字列からプロバイダIDへの別名マップ。
// URLパターンで特定できなかった場合のフォールバックとして使用する。
var platformAliases = map[string]string{
	"telegram":     "telegram",
	"youtube":      "youtube",
	"facebook":     "facebook",
	"instagram":    "instagram",
	"twitter":      "x",
	"x":            "x",
	"tiktok":       "tiktok",
	"discord":      "discord",
	"reddit":       "reddit",
	"github":       "github",
	"vk":           "vk",
	"gumroad":      "gumroad",
	"etsy":         "etsy",
	"ebay":         "ebay",
	"scribd":       "scribd",
	"udemy":        "udemy",
	"mega":         "mega",
	"mediafire":    "mediafire",
	"dropbox":      "dropbox",
	"google drive": "google_drive",
	"shopify":      "shopify",
}

// hostingAliases はホスティングプロバイダ文字列からプロバイダIDへの別名マップ。
// WHOISの組織名は表記ゆれが大きいため部分一致で解決する。
var hostingAliases = map[string]string{
	"cloudflare":    "cloudflare",
	"digitalocean":  "digitalocean",
	"digital ocean": "digitalocean",
	"amazon":        "aws",
	"aws":           "aws",
	"ovh":           "ovh",
	"hetzner":       "hetzner",
	"hostinger":     "hostinger",
	"vultr":         "vultr",
	"linode":        "linode",
	"akamai":        "linode",
	"contabo":       "contabo",
}

// registrarAliases はレジストラ文字列からプロバイダIDへの別名マップ。
var registrarAliases = map[string]string{
	"namecheap": "namecheap",
	"godaddy":   "godaddy",
	"go daddy":  "godaddy",
	"tucows":    "tucows",
	"porkbun":   "porkbun",
	"dynadot":   "dynadot",
}

// LookupProvider はプロバイダIDでディレクトリを検索する。
// 見つからない場合は2番目の戻り値がfalseになる。
func LookupProvider(id string) (model.Provider, bool) {
	p, ok := providerDirectory[id]
	return p, ok
}

// matchPlatformByURL はURLのホスト名をパターンリストと照合し、
// 最初に一致したプロバイダIDを返す。一致しない場合は空文字列を返す。
func matchPlatformByURL(host string) string {
	host = strings.ToLower(host)
	for _, up := range urlPatterns {
		if up.pattern.MatchString(host) {
			return up.providerID
		}
	}
	return ""
}

// resolveAlias は文字列を小文字化し、別名マップとの部分一致で
// プロバイダIDを解決する。解決できない場合は空文字列を返す。
func resolveAlias(s string, aliases map[string]string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" {
		return ""
	}
	if id, ok := aliases[lower]; ok {
		return id
	}
	for alias, id := range aliases {
		if strings.Contains(lower, alias) {
			return id
		}
	}
	return ""
}
