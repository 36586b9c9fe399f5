package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/productguard/internal/enforcement"
	"github.com/hitoshi/productguard/internal/model"
	"github.com/hitoshi/productguard/internal/notice"
)

// InfringementReader は侵害レコードの参照インターフェース。
type InfringementReader interface {
	FindByID(ctx context.Context, id string) (*model.Infringement, error)
}

// ProductReader は商品の参照インターフェース。
type ProductReader interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
}

// ProfileReader はDMCAプロフィールの参照インターフェース。
type ProfileReader interface {
	FindByUserID(ctx context.Context, userID string) (*model.DMCAProfile, error)
}

// QueueEnqueuer は送信キューへの投入インターフェース。
type QueueEnqueuer interface {
	Enqueue(ctx context.Context, item *model.QueueItem) error
}

// NoticeMetrics は通知生成のメトリクス記録インターフェース。
type NoticeMetrics interface {
	RecordNoticeGenerated(profile string)
	RecordQualityFailure()
}

// NoticeHandler は通知生成・品質チェックのHTTPハンドラー。
// 生成パイプライン自体は純粋関数であり、ハンドラーは永続化層からの
// 入力の収集とレスポンスの整形のみを担う。
type NoticeHandler struct {
	infringements InfringementReader
	products      ProductReader
	profiles      ProfileReader
	queue         QueueEnqueuer
	collector     NoticeMetrics
}

// NewNoticeHandler はNoticeHandlerを生成する。
func NewNoticeHandler(infringements InfringementReader, products ProductReader, profiles ProfileReader, queue QueueEnqueuer, collector NoticeMetrics) *NoticeHandler {
	return &NoticeHandler{
		infringements: infringements,
		products:      products,
		profiles:      profiles,
		queue:         queue,
		collector:     collector,
	}
}

// contactPayload はリクエストで指定するDMCA連絡先。
// 省略時はユーザーのDMCAプロフィールが使用される。
type contactPayload struct {
	Name          string `json:"name"`
	Company       string `json:"company"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	IsOwner       bool   `json:"is_owner"`
	OwnerRelation string `json:"owner_relation"`
	SignatureName string `json:"signature_name"`
}

func (p *contactPayload) toContact() model.DMCAContact {
	return model.DMCAContact{
		Name:          p.Name,
		Company:       p.Company,
		Email:         p.Email,
		Phone:         p.Phone,
		Address:       p.Address,
		IsOwner:       p.IsOwner,
		OwnerRelation: p.OwnerRelation,
		SignatureName: p.SignatureName,
	}
}

// evidencePayload はリクエストで添付する証拠パケット。
// タイムスタンプ証明やアーカイブの取得自体はこのAPIの範囲外。
type evidencePayload struct {
	ContentHash string          `json:"content_hash"`
	ArchiveURL  string          `json:"archive_url"`
	CapturedAt  *time.Time      `json:"captured_at"`
	CaptureNote string          `json:"capture_note"`
	Timestamp   *timestampProof `json:"timestamp"`
}

type timestampProof struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	ProofURL      string `json:"proof_url"`
}

func (p *evidencePayload) toPacket() *model.EvidencePacket {
	packet := &model.EvidencePacket{
		ContentHash: p.ContentHash,
		ArchiveURL:  p.ArchiveURL,
		CapturedAt:  p.CapturedAt,
		CaptureNote: p.CaptureNote,
	}
	if p.Timestamp != nil {
		packet.Timestamp = &model.TimestampProof{
			Status:        p.Timestamp.Status,
			TransactionID: p.Timestamp.TransactionID,
			ProofURL:      p.Timestamp.ProofURL,
		}
	}
	return packet
}

// generateNoticeRequest は通知生成リクエストのボディ。
type generateNoticeRequest struct {
	InfringementID string           `json:"infringement_id"`
	Contact        *contactPayload  `json:"contact"`
	Evidence       *evidencePayload `json:"evidence"`
	// Enqueue がtrueの場合、品質チェック合格を条件に送信キューへ投入する。
	Enqueue  bool `json:"enqueue"`
	Priority int  `json:"priority"`
}

// bulkGenerateRequest は一括生成リクエストのボディ。
type bulkGenerateRequest struct {
	InfringementIDs []string        `json:"infringement_ids"`
	Contact         *contactPayload `json:"contact"`
}

// qualityCheckRequest は品質チェックリクエストのボディ。
type qualityCheckRequest struct {
	InfringementID string           `json:"infringement_id"`
	Contact        *contactPayload  `json:"contact"`
	Evidence       *evidencePayload `json:"evidence"`
}

// comparisonResponse は比較項目のAPIレスポンス。
type comparisonResponse struct {
	OriginalText   string `json:"original_text"`
	InfringingText string `json:"infringing_text"`
	Context        string `json:"context,omitempty"`
}

// providerResponse はプロバイダ情報のAPIレスポンス。
type providerResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DMCAEmail     string `json:"dmca_email,omitempty"`
	WebFormURL    string `json:"web_form_url,omitempty"`
	ContactMethod string `json:"contact_method"`
	Verified      bool   `json:"verified"`
}

// targetResponse はエンフォースメント対象のAPIレスポンス。
type targetResponse struct {
	Type           string           `json:"type"`
	Step           int              `json:"step"`
	Recommended    bool             `json:"recommended"`
	Reason         string           `json:"reason"`
	EscalationDays int              `json:"escalation_days"`
	Provider       providerResponse `json:"provider"`
}

// noticeResponse は組み立て済み通知のAPIレスポンス。
type noticeResponse struct {
	Subject          string               `json:"subject"`
	Body             string               `json:"body"`
	RecipientEmail   string               `json:"recipient_email"`
	RecipientName    string               `json:"recipient_name"`
	WebFormURL       string               `json:"web_form_url,omitempty"`
	LegalCitations   []string             `json:"legal_citations"`
	PerjuryStatement string               `json:"perjury_statement"`
	Profile          string               `json:"profile"`
	Comparisons      []comparisonResponse `json:"comparisons"`
	GeneratedAt      time.Time            `json:"generated_at"`
}

// generateNoticeResponse は通知生成のAPIレスポンス。
type generateNoticeResponse struct {
	Notice      noticeResponse       `json:"notice"`
	Quality     *model.QualityResult `json:"quality"`
	Targets     []targetResponse     `json:"targets"`
	QueueItemID string               `json:"queue_item_id,omitempty"`
}

// qualityCheckFailedResponse は品質ゲート不合格のレスポンス。
// 統一エラーフォーマットに個別の不備リストを添えて返す。
type qualityCheckFailedResponse struct {
	apiErrorResponse
	Quality *model.QualityResult `json:"quality"`
}

// noticePipeline は1件分の生成パイプラインの全成果物。
type noticePipeline struct {
	infringement *model.Infringement
	product      *model.Product
	contact      model.DMCAContact
	evidence     *model.EvidencePacket
	profile      model.InfringementProfile
	comparisons  []model.ComparisonItem
	targets      []model.EnforcementTarget
	primary      model.EnforcementTarget
	built        *model.BuiltNotice
	quality      *model.QualityResult
}

// runPipeline は侵害レコード1件に対して分類、比較、対象解決、組み立て、
// 品質チェックの全段を実行する。永続化層の参照はここに集約される。
func (h *NoticeHandler) runPipeline(ctx context.Context, userID, infringementID string, contactOverride *contactPayload, evidence *evidencePayload, now time.Time) (*noticePipeline, error) {
	inf, product, err := h.loadInfringement(ctx, userID, infringementID)
	if err != nil {
		return nil, err
	}

	contact, err := h.resolveContact(ctx, userID, product, contactOverride)
	if err != nil {
		return nil, err
	}

	var packet *model.EvidencePacket
	if evidence != nil {
		packet = evidence.toPacket()
	}

	profile := notice.ClassifyProfile(notice.ProfileInput{
		Platform:         inf.Platform,
		InfringementType: inf.InfringementType,
		Evidence:         &inf.Evidence,
		SourceURL:        inf.SourceURL,
	})

	comparisons := notice.BuildComparisonItems(notice.ComparisonInput{
		ProductName: product.Name,
		ProductURL:  product.URL,
		SourceURL:   inf.SourceURL,
		Evidence:    &inf.Evidence,
		Fingerprint: product.Fingerprint,
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
	primary, _ := enforcement.PrimaryTarget(targets)

	built := notice.BuildNotice(notice.BuildInput{
		Contact:      contact,
		Product:      product,
		Infringement: inf,
		Profile:      profile,
		Provider:     primary.Provider,
		Comparisons:  comparisons,
		Evidence:     packet,
		Now:          now,
	})

	quality := notice.CheckQuality(notice.QualityInputFromNotice(built, contact, product, inf, packet))

	return &noticePipeline{
		infringement: inf,
		product:      product,
		contact:      contact,
		evidence:     packet,
		profile:      profile,
		comparisons:  comparisons,
		targets:      targets,
		primary:      primary,
		built:        built,
		quality:      quality,
	}, nil
}

// loadInfringement は所有権チェック付きで侵害レコードと対象商品を取得する。
func (h *NoticeHandler) loadInfringement(ctx context.Context, userID, infringementID string) (*model.Infringement, *model.Product, error) {
	inf, err := h.infringements.FindByID(ctx, infringementID)
	if err != nil {
		return nil, nil, err
	}
	if inf == nil || inf.UserID != userID {
		return nil, nil, model.NewInfringementNotFoundError(infringementID)
	}

	product, err := h.products.FindByID(ctx, inf.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil || product.UserID != userID {
		return nil, nil, model.NewProductNotFoundError(inf.ProductID)
	}

	return inf, product, nil
}

// resolveContact は連絡先を解決する。リクエスト指定が最優先、
// 次にユーザープロフィール。商品ごとのメール上書きは最後に適用する。
func (h *NoticeHandler) resolveContact(ctx context.Context, userID string, product *model.Product, override *contactPayload) (model.DMCAContact, error) {
	var contact model.DMCAContact
	if override != nil {
		contact = override.toContact()
	} else {
		profile, err := h.profiles.FindByUserID(ctx, userID)
		if err != nil {
			return model.DMCAContact{}, err
		}
		if profile == nil {
			return model.DMCAContact{}, model.NewProfileNotFoundError()
		}
		contact = profile.Contact()
	}

	if product.DMCAContactEmail != "" {
		contact.Email = product.DMCAContactEmail
	}

	return contact, nil
}

// GenerateNotice は通知の単体生成を処理する。
// POST /api/notices
func (h *NoticeHandler) GenerateNotice(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req generateNoticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.InfringementID == "" {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewInfringementNotFoundError(""))
		return
	}

	p, err := h.runPipeline(r.Context(), userID, req.InfringementID, req.Contact, req.Evidence, time.Now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordNoticeGenerated(string(p.profile))
	if !p.quality.Passed {
		h.collector.RecordQualityFailure()
	}

	resp := generateNoticeResponse{
		Notice:  toNoticeResponse(p.built),
		Quality: p.quality,
		Targets: toTargetResponses(p.targets),
	}

	if !req.Enqueue {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// 送信キュー投入は品質ゲート合格が条件。不合格時は個別の不備リストを添える。
	if !p.quality.Passed {
		apiErr := model.NewQualityCheckFailedError(len(p.quality.Errors))
		writeJSON(w, http.StatusUnprocessableEntity, qualityCheckFailedResponse{
			apiErrorResponse: apiErrorResponse{
				Code:     apiErr.Code,
				Message:  apiErr.Message,
				Category: apiErr.Category,
				Action:   apiErr.Action,
			},
			Quality: p.quality,
		})
		return
	}

	if p.built.RecipientEmail == "" {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewNoEmailRecipientError(p.primary.Provider.Name))
		return
	}

	now := time.Now()
	item := &model.QueueItem{
		ID:             uuid.NewString(),
		UserID:         userID,
		InfringementID: p.infringement.ID,
		RecipientEmail: p.built.RecipientEmail,
		RecipientName:  p.built.RecipientName,
		ProviderName:   p.primary.Provider.Name,
		WebFormURL:     p.built.WebFormURL,
		Subject:        p.built.Subject,
		Body:           p.built.Body,
		Priority:       req.Priority,
		MaxAttempts:    3,
		Status:         model.QueueStatusPending,
		ScheduledFor:   now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.queue.Enqueue(r.Context(), item); err != nil {
		handleServiceError(w, err)
		return
	}

	resp.QueueItemID = item.ID
	writeJSON(w, http.StatusCreated, resp)
}

// bulkResultItemResponse は一括生成における1件分のAPIレスポンス。
type bulkResultItemResponse struct {
	InfringementID string           `json:"infringement_id"`
	DeliveryMethod string           `json:"delivery_method"`
	Target         targetResponse   `json:"target"`
	Notice         noticeResponse   `json:"notice"`
	AllTargets     []targetResponse `json:"all_targets"`
}

// bulkGroupResponse は配送チャネルグループのAPIレスポンス。
type bulkGroupResponse struct {
	Key                 string   `json:"key"`
	ProviderName        string   `json:"provider_name,omitempty"`
	RecipientEmail      string   `json:"recipient_email,omitempty"`
	WebFormURL          string   `json:"web_form_url,omitempty"`
	InfringementIDs     []string `json:"infringement_ids"`
	Count               int      `json:"count"`
	UnverifiedRecipient bool     `json:"unverified_recipient"`
}

// bulkGenerateResponse は一括生成のAPIレスポンス。
type bulkGenerateResponse struct {
	Results []bulkResultItemResponse `json:"results"`
	Summary bulkSummaryResponse      `json:"summary"`
}

type bulkSummaryResponse struct {
	EmailGroups   []bulkGroupResponse `json:"email_groups"`
	WebFormGroups []bulkGroupResponse `json:"web_form_groups"`
	ManualGroups  []bulkGroupResponse `json:"manual_groups"`
	TotalCount    int                 `json:"total_count"`
}

// BulkGenerate は通知の一括生成を処理する。
// POST /api/notices/bulk
func (h *NoticeHandler) BulkGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req bulkGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if len(req.InfringementIDs) == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "infringement_idsが空です。",
			Category: "validation",
			Action:   "生成対象の侵害IDを1件以上指定してください。",
		})
		return
	}

	items := make([]notice.BulkItem, 0, len(req.InfringementIDs))
	for _, id := range req.InfringementIDs {
		inf, product, err := h.loadInfringement(r.Context(), userID, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		contact, err := h.resolveContact(r.Context(), userID, product, req.Contact)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		items = append(items, notice.BulkItem{
			Infringement: inf,
			Product:      product,
			Contact:      contact,
		})
	}

	result := notice.GenerateBulk(items, time.Now())
	writeJSON(w, http.StatusOK, toBulkResponse(result))
}

// CheckQuality は通知の品質チェックのみを実行する。
// POST /api/notices/quality
func (h *NoticeHandler) CheckQuality(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req qualityCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.InfringementID == "" {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewInfringementNotFoundError(""))
		return
	}

	p, err := h.runPipeline(r.Context(), userID, req.InfringementID, req.Contact, req.Evidence, time.Now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p.quality)
}

func toNoticeResponse(n *model.BuiltNotice) noticeResponse {
	comparisons := make([]comparisonResponse, 0, len(n.Comparisons))
	for _, c := range n.Comparisons {
		comparisons = append(comparisons, comparisonResponse{
			OriginalText:   c.OriginalText,
			InfringingText: c.InfringingText,
			Context:        c.Context,
		})
	}
	return noticeResponse{
		Subject:          n.Subject,
		Body:             n.Body,
		RecipientEmail:   n.RecipientEmail,
		RecipientName:    n.RecipientName,
		WebFormURL:       n.WebFormURL,
		LegalCitations:   n.LegalCitations,
		PerjuryStatement: n.PerjuryStatement,
		Profile:          string(n.Profile),
		Comparisons:      comparisons,
		GeneratedAt:      n.GeneratedAt,
	}
}

func toTargetResponse(t model.EnforcementTarget) targetResponse {
	return targetResponse{
		Type:           string(t.Type),
		Step:           t.Step,
		Recommended:    t.Recommended,
		Reason:         t.Reason,
		EscalationDays: t.EscalationDays,
		Provider: providerResponse{
			ID:            t.Provider.ID,
			Name:          t.Provider.Name,
			DMCAEmail:     t.Provider.DMCAEmail,
			WebFormURL:    t.Provider.WebFormURL,
			ContactMethod: string(t.Provider.ContactMethod),
			Verified:      t.Provider.Verified,
		},
	}
}

func toTargetResponses(targets []model.EnforcementTarget) []targetResponse {
	out := make([]targetResponse, 0, len(targets))
	for _, t := range targets {
		out = append(out, toTargetResponse(t))
	}
	return out
}

func toBulkGroupResponses(groups []model.BulkGroup) []bulkGroupResponse {
	out := make([]bulkGroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, bulkGroupResponse{
			Key:                 g.Key,
			ProviderName:        g.ProviderName,
			RecipientEmail:      g.RecipientEmail,
			WebFormURL:          g.WebFormURL,
			InfringementIDs:     g.InfringementIDs,
			Count:               g.Count,
			UnverifiedRecipient: g.UnverifiedRecipient,
		})
	}
	return out
}

func toBulkResponse(result *model.BulkResult) bulkGenerateResponse {
	results := make([]bulkResultItemResponse, 0, len(result.Results))
	for _, r := range result.Results {
		results = append(results, bulkResultItemResponse{
			InfringementID: r.InfringementID,
			DeliveryMethod: string(r.DeliveryMethod),
			Target:         toTargetResponse(r.Target),
			Notice:         toNoticeResponse(r.Notice),
			AllTargets:     toTargetResponses(r.AllTargets),
		})
	}
	return bulkGenerateResponse{
		Results: results,
		Summary: bulkSummaryResponse{
			EmailGroups:   toBulkGroupResponses(result.Summary.EmailGroups),
			WebFormGroups: toBulkGroupResponses(result.Summary.WebFormGroups),
			ManualGroups:  toBulkGroupResponses(result.Summary.ManualGroups),
			TotalCount:    result.Summary.TotalCount,
		},
	}
}
