package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/productguard/internal/enforcement"
	"github.com/hitoshi/productguard/internal/evidence"
	"github.com/hitoshi/productguard/internal/model"
	"github.com/hitoshi/productguard/internal/security"
)

// InfringementStore は侵害レコードの参照・更新インターフェース。
type InfringementStore interface {
	FindByID(ctx context.Context, id string) (*model.Infringement, error)
	ListByUserID(ctx context.Context, userID string, status model.InfringementStatus, limit int) ([]*model.Infringement, error)
	Create(ctx context.Context, inf *model.Infringement) error
	UpdateStatus(ctx context.Context, id string, status model.InfringementStatus) error
	UpdateEvidence(ctx context.Context, id string, evidence model.Evidence) error
}

// CommunicationLogReader は通信ログの参照インターフェース。
type CommunicationLogReader interface {
	ListByInfringementID(ctx context.Context, infringementID string, limit int) ([]*model.CommunicationLog, error)
}

// PageCapturer は侵害ページのキャプチャインターフェース。
type PageCapturer interface {
	Capture(ctx context.Context, rawURL string) (*evidence.CaptureResult, error)
}

// EvidenceAnalyzer はキャプチャ済みページのAI分析インターフェース。
type EvidenceAnalyzer interface {
	Analyze(ctx context.Context, in evidence.AnalyzeInput) (*model.EvidenceAnalysis, error)
}

// URLValidator は侵害URL登録時の事前検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// CaptureMetrics は証拠キャプチャのメトリクス記録インターフェース。
type CaptureMetrics interface {
	RecordCaptureFailure()
}

// InfringementHandler は侵害レコード管理のHTTPハンドラー。
type InfringementHandler struct {
	infringements InfringementStore
	products      ProductReader
	commLogs      CommunicationLogReader
	capturer      PageCapturer
	analyzer      EvidenceAnalyzer
	urlValidator  URLValidator
	collector     CaptureMetrics
}

// NewInfringementHandler はInfringementHandlerを生成する。
func NewInfringementHandler(infringements InfringementStore, products ProductReader, commLogs CommunicationLogReader, capturer PageCapturer, analyzer EvidenceAnalyzer, urlValidator URLValidator, collector CaptureMetrics) *InfringementHandler {
	return &InfringementHandler{
		infringements: infringements,
		products:      products,
		commLogs:      commLogs,
		capturer:      capturer,
		analyzer:      analyzer,
		urlValidator:  urlValidator,
		collector:     collector,
	}
}

// createInfringementRequest は侵害レコード登録リクエストのボディ。
type createInfringementRequest struct {
	ProductID        string `json:"product_id"`
	SourceURL        string `json:"source_url"`
	Platform         string `json:"platform"`
	InfringementType string `json:"infringement_type"`
	SeverityScore    int    `json:"severity_score"`
}

// infringementResponse は侵害レコードのAPIレスポンス。
type infringementResponse struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	SourceURL        string          `json:"source_url"`
	Platform         string          `json:"platform,omitempty"`
	InfringementType string          `json:"infringement_type,omitempty"`
	SeverityScore    int             `json:"severity_score"`
	Status           string          `json:"status"`
	Evidence         *model.Evidence `json:"evidence,omitempty"`
	FirstSeenAt      time.Time       `json:"first_seen_at"`
	LastSeenAt       time.Time       `json:"last_seen_at"`
	SeenCount        int             `json:"seen_count"`
	CreatedAt        time.Time       `json:"created_at"`
}

// statusTransitions は操作ごとの許可された遷移元ステータス。
// テイクダウンパイプラインによる自動遷移（active → takedown_sent）は
// プロセッサ側のガード付き更新が担い、ここには含まれない。
var statusTransitions = map[model.InfringementStatus][]model.InfringementStatus{
	model.InfringementStatusActive:        {model.InfringementStatusPendingVerification},
	model.InfringementStatusFalsePositive: {model.InfringementStatusPendingVerification, model.InfringementStatusActive},
	model.InfringementStatusDisputed:      {model.InfringementStatusTakedownSent},
	model.InfringementStatusRemoved:       {model.InfringementStatusActive, model.InfringementStatusTakedownSent, model.InfringementStatusDisputed},
	model.InfringementStatusArchived:      {model.InfringementStatusRemoved, model.InfringementStatusFalsePositive, model.InfringementStatusDisputed},
}

// CreateInfringement は侵害レコードの手動登録を処理する。
// スキャンエンジン外で発見された侵害を運用者が直接登録するための口。
// POST /api/infringements
func (h *InfringementHandler) CreateInfringement(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req createInfringementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.urlValidator.ValidateURL(req.SourceURL); err != nil {
		if errors.Is(err, security.ErrBlockedDestination) {
			writeAPIErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(err.Error()))
		return
	}

	product, err := h.products.FindByID(r.Context(), req.ProductID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if product == nil || product.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(req.ProductID))
		return
	}

	severity := req.SeverityScore
	if severity < 0 {
		severity = 0
	}
	if severity > 100 {
		severity = 100
	}

	now := time.Now()
	inf := &model.Infringement{
		ID:               uuid.NewString(),
		UserID:           userID,
		ProductID:        product.ID,
		SourceURL:        req.SourceURL,
		Platform:         req.Platform,
		InfringementType: req.InfringementType,
		SeverityScore:    severity,
		Status:           model.InfringementStatusPendingVerification,
		FirstSeenAt:      now,
		LastSeenAt:       now,
		SeenCount:        1,
	}
	if err := h.infringements.Create(r.Context(), inf); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInfringementResponse(inf, false))
}

// ListInfringements はユーザーの侵害レコード一覧を返す。
// statusクエリパラメータでの絞り込みに対応する。
// GET /api/infringements
func (h *InfringementHandler) ListInfringements(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	status := model.InfringementStatus(r.URL.Query().Get("status"))
	limit := parseLimit(r, 50)

	infs, err := h.infringements.ListByUserID(r.Context(), userID, status, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]infringementResponse, 0, len(infs))
	for _, inf := range infs {
		out = append(out, toInfringementResponse(inf, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"infringements": out})
}

// GetInfringement は侵害レコードの詳細を証拠付きで返す。
// GET /api/infringements/{id}
func (h *InfringementHandler) GetInfringement(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	inf, ok := h.findOwned(w, r, userID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toInfringementResponse(inf, true))
}

// UpdateStatus は運用者による侵害ステータスの遷移を処理する。
// 許可されない遷移元からの操作はINVALID_STATUSで拒否する。
// POST /api/infringements/{id}/verify など
func (h *InfringementHandler) UpdateStatus(target model.InfringementStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(w, r)
		if !ok {
			return
		}

		inf, ok := h.findOwned(w, r, userID)
		if !ok {
			return
		}

		if !transitionAllowed(inf.Status, target) {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError(inf.Status))
			return
		}

		if err := h.infringements.UpdateStatus(r.Context(), inf.ID, target); err != nil {
			handleServiceError(w, err)
			return
		}

		inf.Status = target
		writeJSON(w, http.StatusOK, toInfringementResponse(inf, false))
	}
}

// captureResponse は証拠キャプチャのAPIレスポンス。
type captureResponse struct {
	Title         string                  `json:"title,omitempty"`
	TextLength    int                     `json:"text_length"`
	ContentHash   string                  `json:"content_hash"`
	StatusCode    int                     `json:"status_code"`
	CapturedAt    time.Time               `json:"captured_at"`
	Analysis      *model.EvidenceAnalysis `json:"analysis,omitempty"`
	AnalysisState string                  `json:"analysis_state"`
}

// CaptureEvidence は侵害ページをキャプチャしてAI分析を実行し、
// 結果を侵害レコードの証拠ブロブへ書き戻す。
// 分析能力の劣化は証拠ゼロとして扱い、キャプチャ自体は成功させる。
// POST /api/infringements/{id}/capture
func (h *InfringementHandler) CaptureEvidence(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	inf, ok := h.findOwned(w, r, userID)
	if !ok {
		return
	}

	product, err := h.products.FindByID(r.Context(), inf.ProductID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if product == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(inf.ProductID))
		return
	}

	capture, err := h.capturer.Capture(r.Context(), inf.SourceURL)
	if err != nil {
		h.collector.RecordCaptureFailure()
		if errors.Is(err, security.ErrBlockedDestination) {
			writeAPIErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
			return
		}
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewCaptureFailedError(err.Error()))
		return
	}

	updated := inf.Evidence
	updated.CapturedTitle = capture.Title
	updated.CapturedText = capture.Text

	analysisState := "skipped"
	analysis, err := h.analyzer.Analyze(r.Context(), evidence.AnalyzeInput{
		Product:   product,
		PageText:  capture.Text,
		PageTitle: capture.Title,
		SourceURL: inf.SourceURL,
	})
	if err != nil {
		// 分析能力の劣化。証拠なしで続行する。
		analysisState = "degraded"
	} else if analysis != nil {
		analysisState = "analyzed"
		updated.AnalyzedMatches = analysis.Matches
	}

	if err := h.infringements.UpdateEvidence(r.Context(), inf.ID, updated); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, captureResponse{
		Title:         capture.Title,
		TextLength:    len(capture.Text),
		ContentHash:   capture.ContentHash,
		StatusCode:    capture.StatusCode,
		CapturedAt:    capture.CapturedAt,
		Analysis:      analysis,
		AnalysisState: analysisState,
	})
}

// ListTargets は侵害レコードのエンフォースメント対象リストを返す。
// 通知を生成せずにエスカレーション経路だけを確認するための読み取り口。
// GET /api/infringements/{id}/targets
func (h *InfringementHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	inf, ok := h.findOwned(w, r, userID)
	if !ok {
		return
	}

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
	writeJSON(w, http.StatusOK, map[string]any{"targets": toTargetResponses(targets)})
}

// communicationResponse は通信ログのAPIレスポンス。
type communicationResponse struct {
	ID         string    `json:"id"`
	TakedownID string    `json:"takedown_id,omitempty"`
	Direction  string    `json:"direction"`
	Channel    string    `json:"channel"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject"`
	MessageID  string    `json:"message_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListCommunications は侵害レコードに関する通信履歴を返す。
// GET /api/infringements/{id}/communications
func (h *InfringementHandler) ListCommunications(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	inf, ok := h.findOwned(w, r, userID)
	if !ok {
		return
	}

	limit := parseLimit(r, 100)
	logs, err := h.commLogs.ListByInfringementID(r.Context(), inf.ID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]communicationResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, communicationResponse{
			ID:         l.ID,
			TakedownID: l.TakedownID,
			Direction:  string(l.Direction),
			Channel:    string(l.Channel),
			Recipient:  l.Recipient,
			Subject:    l.Subject,
			MessageID:  l.MessageID,
			CreatedAt:  l.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"communications": out})
}

// findOwned はURLパラメータの侵害レコードを所有権チェック付きで取得する。
// 見つからない場合は404を書き込みfalseを返す。
func (h *InfringementHandler) findOwned(w http.ResponseWriter, r *http.Request, userID string) (*model.Infringement, bool) {
	id := chi.URLParam(r, "id")
	inf, err := h.infringements.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if inf == nil || inf.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewInfringementNotFoundError(id))
		return nil, false
	}
	return inf, true
}

// transitionAllowed は運用者操作によるステータス遷移の可否を返す。
func transitionAllowed(current, target model.InfringementStatus) bool {
	for _, from := range statusTransitions[target] {
		if current == from {
			return true
		}
	}
	return false
}

func toInfringementResponse(inf *model.Infringement, includeEvidence bool) infringementResponse {
	resp := infringementResponse{
		ID:               inf.ID,
		ProductID:        inf.ProductID,
		SourceURL:        inf.SourceURL,
		Platform:         inf.Platform,
		InfringementType: inf.InfringementType,
		SeverityScore:    inf.SeverityScore,
		Status:           string(inf.Status),
		FirstSeenAt:      inf.FirstSeenAt,
		LastSeenAt:       inf.LastSeenAt,
		SeenCount:        inf.SeenCount,
		CreatedAt:        inf.CreatedAt,
	}
	if includeEvidence {
		ev := inf.Evidence
		resp.Evidence = &ev
	}
	return resp
}
