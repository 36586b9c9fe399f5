package notice

import (
	"sort"
	"time"

	"github.com/hitoshi/productguard/internal/enforcement"
	"github.com/hitoshi/productguard/internal/model"
)

// BulkItem は一括生成の1件分の入力。
type BulkItem struct {
	Infringement *model.Infringement
	Product      *model.Product
	Contact      model.DMCAContact
	Evidence     *model.EvidencePacket
}

// GenerateBulk は侵害レコードのバッチに対して通知生成パイプラインを
// 1件ずつ実行し、結果を配送チャネルごとに集計する。I/Oは行わない。
//
// 件別の配送方法の決定: 選択されたプロバイダにメールがあればemail
// （プロバイダの希望がWebフォームでもメールを優先する。一括処理は
// 無人配送に最適化するため）、なければフォームURLがあればweb_form、
// どちらもなければmanual。
//
// Resultsは入力順を保持する。Summaryのグループはキー単位であり
// 入力順に依存しない。
func GenerateBulk(items []BulkItem, now time.Time) *model.BulkResult {
	results := make([]model.BulkGenerationResult, 0, len(items))

	for _, item := range items {
		results = append(results, generateOne(item, now))
	}

	return &model.BulkResult{
		Results: results,
		Summary: summarize(results),
	}
}

// generateOne は1件分のパイプライン（分類、比較、対象解決、組み立て）を実行する。
func generateOne(item BulkItem, now time.Time) model.BulkGenerationResult {
	inf := item.Infringement

	profile := ClassifyProfile(ProfileInput{
		Platform:         inf.Platform,
		InfringementType: inf.InfringementType,
		Evidence:         &inf.Evidence,
		SourceURL:        inf.SourceURL,
	})

	comparisons := BuildComparisonItems(ComparisonInput{
		ProductName: item.Product.Name,
		ProductURL:  item.Product.URL,
		SourceURL:   inf.SourceURL,
		Evidence:    &inf.Evidence,
		Fingerprint: item.Product.Fingerprint,
	})

	resolveIn := enforcement.ResolveInput{
		SourceURL:    inf.SourceURL,
		PlatformHint: inf.Platform,
	}
	if infra := inf.Infrastructure; infra != nil {
		resolveIn.HostingProvider = infra.HostingProvider
		resolveIn.Registrar = infra.Registrar
		resolveIn.AbuseEmail = infra.AbuseEmail
	}
	targets := enforcement.ResolveAllTargets(resolveIn)
	target, _ := enforcement.PrimaryTarget(targets)

	built := BuildNotice(BuildInput{
		Contact:      item.Contact,
		Product:      item.Product,
		Infringement: inf,
		Profile:      profile,
		Provider:     target.Provider,
		Comparisons:  comparisons,
		Evidence:     item.Evidence,
		Now:          now,
	})

	return model.BulkGenerationResult{
		InfringementID: inf.ID,
		Target:         target,
		Provider:       target.Provider,
		Notice:         built,
		DeliveryMethod: decideDeliveryMethod(target.Provider),
		AllTargets:     targets,
	}
}

// decideDeliveryMethod はプロバイダの連絡手段から配送方法を決定する。
// メールの存在がWebフォームの希望より常に優先される。
func decideDeliveryMethod(p model.Provider) model.DeliveryMethod {
	if p.DMCAEmail != "" {
		return model.DeliveryMethodEmail
	}
	if p.WebFormURL != "" {
		return model.DeliveryMethodWebForm
	}
	return model.DeliveryMethodManual
}

// summarize は件別結果を配送チャネルごとのグループに集計する。
// メールチャネルは受信者メール、Webフォームチャネルはプロバイダ名と
// フォームURLの組、手動チャネルはプロバイダ名でグループ化する。
func summarize(results []model.BulkGenerationResult) model.BulkSummary {
	emailGroups := make(map[string]*model.BulkGroup)
	formGroups := make(map[string]*model.BulkGroup)
	manualGroups := make(map[string]*model.BulkGroup)

	for _, r := range results {
		switch r.DeliveryMethod {
		case model.DeliveryMethodEmail:
			key := r.Provider.DMCAEmail
			g, ok := emailGroups[key]
			if !ok {
				g = &model.BulkGroup{
					Key:            key,
					ProviderName:   r.Provider.Name,
					RecipientEmail: r.Provider.DMCAEmail,
				}
				emailGroups[key] = g
			}
			appendToGroup(g, r)
		case model.DeliveryMethodWebForm:
			key := r.Provider.Name + "|" + r.Provider.WebFormURL
			g, ok := formGroups[key]
			if !ok {
				g = &model.BulkGroup{
					Key:          key,
					ProviderName: r.Provider.Name,
					WebFormURL:   r.Provider.WebFormURL,
				}
				formGroups[key] = g
			}
			appendToGroup(g, r)
		default:
			key := r.Provider.Name
			g, ok := manualGroups[key]
			if !ok {
				g = &model.BulkGroup{
					Key:          key,
					ProviderName: r.Provider.Name,
				}
				manualGroups[key] = g
			}
			appendToGroup(g, r)
		}
	}

	return model.BulkSummary{
		EmailGroups:   sortedGroups(emailGroups),
		WebFormGroups: sortedGroups(formGroups),
		ManualGroups:  sortedGroups(manualGroups),
		TotalCount:    len(results),
	}
}

func appendToGroup(g *model.BulkGroup, r model.BulkGenerationResult) {
	g.InfringementIDs = append(g.InfringementIDs, r.InfringementID)
	g.Count++
	if !r.Provider.Verified {
		g.UnverifiedRecipient = true
	}
}

// sortedGroups はマップのグループをキー順に並べて返す。
// マップの反復順序に依存しない決定的な出力のため。
func sortedGroups(m map[string]*model.BulkGroup) []model.BulkGroup {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	groups := make([]model.BulkGroup, 0, len(m))
	for _, k := range keys {
		groups = append(groups, *m[k])
	}
	return groups
}
