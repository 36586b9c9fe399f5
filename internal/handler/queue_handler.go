package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/productguard/internal/model"
	"github.com/hitoshi/productguard/internal/worker/sendqueue"
)

// QueueStore は送信キューの参照・投入インターフェース。
type QueueStore interface {
	FindByID(ctx context.Context, id string) (*model.QueueItem, error)
	Enqueue(ctx context.Context, item *model.QueueItem) error
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.QueueItem, error)
}

// BatchProcessor は送信キューのバッチ処理インターフェース。
type BatchProcessor interface {
	RunOnce(ctx context.Context) (*sendqueue.BatchResult, error)
}

// QueueHandler は送信キュー管理のHTTPハンドラー。
type QueueHandler struct {
	queue         QueueStore
	infringements InfringementReader
	processor     BatchProcessor
}

// NewQueueHandler はQueueHandlerを生成する。
func NewQueueHandler(queue QueueStore, infringements InfringementReader, processor BatchProcessor) *QueueHandler {
	return &QueueHandler{
		queue:         queue,
		infringements: infringements,
		processor:     processor,
	}
}

// enqueueRequest はキュー投入リクエストのボディ。
// 組み立て済みの通知と解決済みプロバイダの情報を受け取る。
type enqueueRequest struct {
	InfringementID string     `json:"infringement_id"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientName  string     `json:"recipient_name"`
	ProviderName   string     `json:"provider_name"`
	WebFormURL     string     `json:"web_form_url"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	Priority       int        `json:"priority"`
	ScheduledFor   *time.Time `json:"scheduled_for"`
}

// queueItemResponse はキュー項目のAPIレスポンス。
type queueItemResponse struct {
	ID             string     `json:"id"`
	InfringementID string     `json:"infringement_id"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientName  string     `json:"recipient_name,omitempty"`
	ProviderName   string     `json:"provider_name,omitempty"`
	Subject        string     `json:"subject"`
	Priority       int        `json:"priority"`
	AttemptCount   int        `json:"attempt_count"`
	MaxAttempts    int        `json:"max_attempts"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ScheduledFor   time.Time  `json:"scheduled_for"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Enqueue は送信キューへの投入を処理する。
// POST /api/queue
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	inf, err := h.infringements.FindByID(r.Context(), req.InfringementID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if inf == nil || inf.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewInfringementNotFoundError(req.InfringementID))
		return
	}

	if req.RecipientEmail == "" {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewNoEmailRecipientError(req.ProviderName))
		return
	}
	if req.Subject == "" || req.Body == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "subjectとbodyは必須です。",
			Category: "validation",
			Action:   "組み立て済み通知の件名と本文を指定してください。",
		})
		return
	}

	now := time.Now()
	scheduledFor := now
	if req.ScheduledFor != nil {
		scheduledFor = *req.ScheduledFor
	}

	item := &model.QueueItem{
		ID:             uuid.NewString(),
		UserID:         userID,
		InfringementID: inf.ID,
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		ProviderName:   req.ProviderName,
		WebFormURL:     req.WebFormURL,
		Subject:        req.Subject,
		Body:           req.Body,
		Priority:       req.Priority,
		MaxAttempts:    3,
		Status:         model.QueueStatusPending,
		ScheduledFor:   scheduledFor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.queue.Enqueue(r.Context(), item); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toQueueItemResponse(item))
}

// ListQueue はユーザーのキュー項目一覧を返す。
// GET /api/queue
func (h *QueueHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r, 50)
	items, err := h.queue.ListByUserID(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]queueItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toQueueItemResponse(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// GetQueueItem はキュー項目の詳細を返す。
// GET /api/queue/{id}
func (h *QueueHandler) GetQueueItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	item, err := h.queue.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if item == nil || item.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewQueueItemNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, toQueueItemResponse(item))
}

// batchOutcomeResponse はバッチ処理における1項目分の結果。
type batchOutcomeResponse struct {
	QueueItemID string `json:"queue_item_id"`
	Result      string `json:"result"`
	Error       string `json:"error,omitempty"`
}

// processBatchResponse はバッチ処理トリガーのAPIレスポンス。
type processBatchResponse struct {
	Processed int                    `json:"processed"`
	Sent      int                    `json:"sent"`
	Failed    int                    `json:"failed"`
	Retried   int                    `json:"retried"`
	Items     []batchOutcomeResponse `json:"items"`
}

// ProcessBatch は送信キューの次バッチ処理を即時実行する。
// 定期実行と同じ処理を共有するため冪等であり、並行実行しても
// 同一項目が二重送信されることはない。
// POST /api/queue/process
func (h *QueueHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	if _, ok := userIDFromRequest(w, r); !ok {
		return
	}

	result, err := h.processor.RunOnce(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]batchOutcomeResponse, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, batchOutcomeResponse{
			QueueItemID: item.QueueItemID,
			Result:      string(item.Result),
			Error:       item.Error,
		})
	}

	writeJSON(w, http.StatusOK, processBatchResponse{
		Processed: result.Processed,
		Sent:      result.Sent,
		Failed:    result.Failed,
		Retried:   result.Retried,
		Items:     items,
	})
}

// parseLimit はクエリパラメータlimitを解析する。不正値はデフォルトに落とす。
func parseLimit(r *http.Request, defaultLimit int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return defaultLimit
	}
	return limit
}

func toQueueItemResponse(item *model.QueueItem) queueItemResponse {
	return queueItemResponse{
		ID:             item.ID,
		InfringementID: item.InfringementID,
		RecipientEmail: item.RecipientEmail,
		RecipientName:  item.RecipientName,
		ProviderName:   item.ProviderName,
		Subject:        item.Subject,
		Priority:       item.Priority,
		AttemptCount:   item.AttemptCount,
		MaxAttempts:    item.MaxAttempts,
		Status:         string(item.Status),
		ErrorMessage:   item.ErrorMessage,
		ScheduledFor:   item.ScheduledFor,
		CompletedAt:    item.CompletedAt,
		CreatedAt:      item.CreatedAt,
	}
}
