package enforcement

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hitoshi/productguard/internal/model"
)

// エスカレーション期限（日数）。検索エンジンのインデックス削除は
// コンテンツ削除を必要としないため、他の対象と並行して即時実行できる。
const (
	platformDeadlineDays  = 7
	hostingDeadlineDays   = 14
	registrarDeadlineDays = 14
	searchDeadlineDays    = 0
	fallbackDeadlineDays  = 14
)

// ResolveInput はエンフォースメント対象解決の入力。
// SourceURL以外は全て任意。
type ResolveInput struct {
	SourceURL       string
	PlatformHint    string
	HostingProvider string
	Registrar       string
	AbuseEmail      string
}

// ResolveAllTargets は侵害URLとインフラ情報からエンフォースメント対象の
// 順序付きリストを構築する。リストは常に非空で、順序は
// platform → hosting → registrar → search_engine。
// recommendedは通常1件のみ: プラットフォームが特定できればそれ、
// できなければホスティング、どちらもなければ検索エンジン。
func ResolveAllTargets(in ResolveInput) []model.EnforcementTarget {
	var targets []model.EnforcementTarget
	step := 1
	added := make(map[string]bool)

	// 1. プラットフォーム対象: URLパターン照合 → プラットフォームヒントの順で解決
	platformID := matchPlatformByURL(hostOf(in.SourceURL))
	if platformID == "" {
		platformID = resolveAlias(in.PlatformHint, platformAliases)
	}
	hasPlatform := false
	if platformID != "" {
		if p, ok := LookupProvider(platformID); ok {
			targets = append(targets, model.EnforcementTarget{
				Type:           model.TargetTypePlatform,
				Provider:       p,
				Step:           step,
				Recommended:    true,
				Reason:         fmt.Sprintf("%s はコンテンツを直接掲載しているプラットフォームであり、最も迅速な削除が期待できます。", p.Name),
				EscalationDays: platformDeadlineDays,
			})
			added[p.ID] = true
			hasPlatform = true
			step++
		}
	}

	// 2. ホスティング対象: DMCAセーフハーバーにより、有効な通知を受けた
	// ホスティングプロバイダには対応義務がある。
	if in.HostingProvider != "" {
		if hostID := resolveAlias(in.HostingProvider, hostingAliases); hostID != "" && !added[hostID] {
			if p, ok := LookupProvider(hostID); ok {
				targets = append(targets, model.EnforcementTarget{
					Type:           model.TargetTypeHosting,
					Provider:       p,
					Step:           step,
					Recommended:    !hasPlatform,
					Reason:         fmt.Sprintf("%s は侵害サイトのホスティングプロバイダです。DMCAセーフハーバー条項（17 U.S.C. §512(c)）により、有効な通知への対応が免責の条件となります。", p.Name),
					EscalationDays: hostingDeadlineDays,
				})
				added[p.ID] = true
				step++
			}
		}
	}

	// 3. レジストラ対象: 対応が遅いフォールバックチャネルのため
	// recommendedには決してしない。未知のレジストラでもabuseメールが
	// 分かっていれば未確認の対象として合成する。
	if in.Registrar != "" {
		regID := resolveAlias(in.Registrar, registrarAliases)
		if regID != "" && !added[regID] {
			if p, ok := LookupProvider(regID); ok {
				targets = append(targets, model.EnforcementTarget{
					Type:           model.TargetTypeRegistrar,
					Provider:       p,
					Step:           step,
					Recommended:    false,
					Reason:         fmt.Sprintf("%s は侵害サイトのドメインレジストラです。プラットフォーム・ホスティングが対応しない場合のエスカレーション先となります。", p.Name),
					EscalationDays: registrarDeadlineDays,
				})
				added[p.ID] = true
				step++
			}
		} else if regID == "" && in.AbuseEmail != "" {
			targets = append(targets, model.EnforcementTarget{
				Type: model.TargetTypeRegistrar,
				Provider: model.Provider{
					ID:            "registrar_unverified",
					Name:          in.Registrar,
					DMCAEmail:     in.AbuseEmail,
					ContactMethod: model.ContactMethodEmail,
					Verified:      false,
				},
				Step:           step,
				Recommended:    false,
				Reason:         fmt.Sprintf("%s はディレクトリ未登録のレジストラです。WHOISのabuse連絡先を使用します（未確認の連絡先）。", in.Registrar),
				EscalationDays: registrarDeadlineDays,
			})
			step++
		}
	}

	// 4. 検索エンジン対象: 常に追加する。コンテンツ削除を必要としないため
	// 他の対象と並行して即時実行できる（期限0日）。
	if !added["google"] {
		if p, ok := LookupProvider("google"); ok {
			targets = append(targets, model.EnforcementTarget{
				Type:           model.TargetTypeSearchEngine,
				Provider:       p,
				Step:           step,
				Recommended:    len(targets) == 0,
				Reason:         "検索結果からのインデックス削除により、コンテンツが残存していても流入を遮断できます。他の対象への通知と並行して実行可能です。",
				EscalationDays: searchDeadlineDays,
			})
			added[p.ID] = true
			step++
		}
	}

	// 5. フォールバック: ここまでで対象が空の場合、URLのドメインと
	// 入手可能なabuseメールから汎用のプラットフォーム対象を合成する。
	// 「対象なし」よりも「未確認と明示したベストゲス」を優先する。
	if len(targets) == 0 {
		domain := hostOf(in.SourceURL)
		if domain == "" {
			domain = in.SourceURL
		}
		targets = append(targets, model.EnforcementTarget{
			Type: model.TargetTypePlatform,
			Provider: model.Provider{
				ID:            "generic_" + domain,
				Name:          domain,
				DMCAEmail:     in.AbuseEmail,
				ContactMethod: model.ContactMethodEmail,
				Verified:      false,
			},
			Step:           1,
			Recommended:    true,
			Reason:         fmt.Sprintf("%s はディレクトリ未登録のサイトです。サイト運営者への直接通知を試みます（未確認の連絡先）。", domain),
			EscalationDays: fallbackDeadlineDays,
		})
	}

	return targets
}

// PrimaryTarget は対象リストから送付先として選択すべき対象を返す。
// recommendedが付いた対象を優先し、なければ先頭を返す。
// リストが空の場合はゼロ値とfalseを返す（ResolveAllTargetsの出力では起きない）。
func PrimaryTarget(targets []model.EnforcementTarget) (model.EnforcementTarget, bool) {
	if len(targets) == 0 {
		return model.EnforcementTarget{}, false
	}
	for _, t := range targets {
		if t.Recommended {
			return t, true
		}
	}
	return targets[0], true
}

// hostOf はURLからホスト名を取り出す。パース不能の場合は空文字列を返す。
func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// スキームなしの素のドメインが渡されるケースに対応
		if !strings.Contains(rawURL, "://") {
			u2, err2 := url.Parse("https://" + rawURL)
			if err2 == nil && u2.Host != "" {
				return strings.ToLower(u2.Hostname())
			}
		}
		return ""
	}
	return strings.ToLower(u.Hostname())
}
