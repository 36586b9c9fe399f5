package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/productguard/internal/model"
)

// TakedownStore はテイクダウンレコードの参照・更新インターフェース。
type TakedownStore interface {
	FindByID(ctx context.Context, id string) (*model.Takedown, error)
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Takedown, error)
	UpdateStatus(ctx context.Context, id string, status model.TakedownStatus) error
}

// InfringementStatusUpdater は侵害ステータスの更新インターフェース。
// テイクダウンの解決を侵害レコードへ反映するために使用する。
type InfringementStatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status model.InfringementStatus) error
}

// TakedownHandler はテイクダウン追跡のHTTPハンドラー。
type TakedownHandler struct {
	takedowns     TakedownStore
	infringements InfringementStatusUpdater
}

// NewTakedownHandler はTakedownHandlerを生成する。
func NewTakedownHandler(takedowns TakedownStore, infringements InfringementStatusUpdater) *TakedownHandler {
	return &TakedownHandler{
		takedowns:     takedowns,
		infringements: infringements,
	}
}

// takedownResponse はテイクダウンレコードのAPIレスポンス。
type takedownResponse struct {
	ID             string     `json:"id"`
	InfringementID string     `json:"infringement_id"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Recipient      string     `json:"recipient"`
	InfringingURL  string     `json:"infringing_url"`
	NoticeSubject  string     `json:"notice_subject"`
	SentAt         time.Time  `json:"sent_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// updateTakedownStatusRequest はテイクダウンステータス更新リクエストのボディ。
type updateTakedownStatusRequest struct {
	Status string `json:"status"`
}

// takedownStatusTransitions はプラットフォーム応答による許可された遷移。
// sentから各応答へ、acknowledgedから終端応答へ進める。巻き戻しはしない。
var takedownStatusTransitions = map[model.TakedownStatus][]model.TakedownStatus{
	model.TakedownStatusAcknowledged: {model.TakedownStatusSent},
	model.TakedownStatusRemoved:      {model.TakedownStatusSent, model.TakedownStatusAcknowledged},
	model.TakedownStatusRefused:      {model.TakedownStatusSent, model.TakedownStatusAcknowledged},
}

// ListTakedowns はユーザーのテイクダウン一覧を送付日時の降順で返す。
// GET /api/takedowns
func (h *TakedownHandler) ListTakedowns(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r, 50)
	takedowns, err := h.takedowns.ListByUserID(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]takedownResponse, 0, len(takedowns))
	for _, td := range takedowns {
		out = append(out, toTakedownResponse(td))
	}
	writeJSON(w, http.StatusOK, map[string]any{"takedowns": out})
}

// GetTakedown はテイクダウンの詳細を通知本文付きで返す。
// GET /api/takedowns/{id}
func (h *TakedownHandler) GetTakedown(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	td, ok := h.findOwned(w, r, userID)
	if !ok {
		return
	}

	resp := struct {
		takedownResponse
		NoticeBody string `json:"notice_body"`
	}{
		takedownResponse: toTakedownResponse(td),
		NoticeBody:       td.NoticeBody,
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus はプラットフォームの応答をテイクダウンへ記録する。
// removedへの遷移時は侵害レコードのステータスも連動して進める。
// PATCH /api/takedowns/{id}/status
func (h *TakedownHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	td, ok := h.findOwned(w, r, userID)
	if !ok {
		return
	}

	var req updateTakedownStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	target := model.TakedownStatus(req.Status)
	if !takedownTransitionAllowed(td.Status, target) {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidStatus,
			Message:  "現在のステータス（" + string(td.Status) + "）から " + req.Status + " へは遷移できません。",
			Category: "validation",
			Action:   "テイクダウンの現在のステータスを確認してください。",
		})
		return
	}

	if err := h.takedowns.UpdateStatus(r.Context(), td.ID, target); err != nil {
		handleServiceError(w, err)
		return
	}

	if target == model.TakedownStatusRemoved {
		if err := h.infringements.UpdateStatus(r.Context(), td.InfringementID, model.InfringementStatusRemoved); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	td.Status = target
	writeJSON(w, http.StatusOK, toTakedownResponse(td))
}

// findOwned はURLパラメータのテイクダウンを所有権チェック付きで取得する。
func (h *TakedownHandler) findOwned(w http.ResponseWriter, r *http.Request, userID string) (*model.Takedown, bool) {
	id := chi.URLParam(r, "id")
	td, err := h.takedowns.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if td == nil || td.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTakedownNotFoundError(id))
		return nil, false
	}
	return td, true
}

// takedownTransitionAllowed はテイクダウンステータス遷移の可否を返す。
func takedownTransitionAllowed(current, target model.TakedownStatus) bool {
	for _, from := range takedownStatusTransitions[target] {
		if current == from {
			return true
		}
	}
	return false
}

func toTakedownResponse(td *model.Takedown) takedownResponse {
	return takedownResponse{
		ID:             td.ID,
		InfringementID: td.InfringementID,
		Type:           string(td.Type),
		Status:         string(td.Status),
		Recipient:      td.Recipient,
		InfringingURL:  td.InfringingURL,
		NoticeSubject:  td.NoticeSubject,
		SentAt:         td.SentAt,
		ResolvedAt:     td.ResolvedAt,
	}
}
