package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/productguard/internal/model"
	"github.com/hitoshi/productguard/internal/worker/sendqueue"
)

func newQueueTestRouter(h *QueueHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/queue", h.Enqueue)
	r.Get("/api/queue", h.ListQueue)
	r.Post("/api/queue/process", h.ProcessBatch)
	r.Get("/api/queue/{id}", h.GetQueueItem)
	return r
}

func TestEnqueue_CreatesPendingItem(t *testing.T) {
	queue := newMockQueueStore()
	infs := newMockInfringementStore(fixtureInfringement())
	h := NewQueueHandler(queue, infs, &mockProcessor{})
	router := newQueueTestRouter(h)

	req := authedRequest(t, http.MethodPost, "/api/queue", map[string]any{
		"infringement_id": "inf-1",
		"recipient_email": "dmca@telegram.org",
		"recipient_name":  "Telegram",
		"provider_name":   "Telegram",
		"subject":         "DMCA Takedown Notice",
		"body":            "notice body",
		"priority":        5,
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(queue.enqueued))
	}
	item := queue.enqueued[0]
	if item.Status != model.QueueStatusPending {
		t.Errorf("Status = %q, want pending", item.Status)
	}
	if item.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", item.MaxAttempts)
	}
	if item.UserID != testUserID {
		t.Errorf("UserID = %q", item.UserID)
	}
	if item.ScheduledFor.IsZero() {
		t.Error("ScheduledForが設定されるべき")
	}
	// INSERTが列デフォルトを上書きするため、ゼロ値のまま永続化されないこと
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Errorf("作成・更新日時が設定されるべき: created=%v updated=%v", item.CreatedAt, item.UpdatedAt)
	}
}

func TestEnqueue_NoRecipientEmail(t *testing.T) {
	queue := newMockQueueStore()
	infs := newMockInfringementStore(fixtureInfringement())
	h := NewQueueHandler(queue, infs, &mockProcessor{})
	router := newQueueTestRouter(h)

	req := authedRequest(t, http.MethodPost, "/api/queue", map[string]any{
		"infringement_id": "inf-1",
		"provider_name":   "SomeForum",
		"subject":         "DMCA Takedown Notice",
		"body":            "notice body",
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	var resp apiErrorResponse
	decodeBody(t, w, &resp)
	if resp.Code != "NO_EMAIL_RECIPIENT" {
		t.Errorf("code = %q", resp.Code)
	}
	if len(queue.enqueued) != 0 {
		t.Error("宛先のない項目はキュー投入されないべき")
	}
}

func TestEnqueue_UnknownInfringement(t *testing.T) {
	h := NewQueueHandler(newMockQueueStore(), newMockInfringementStore(), &mockProcessor{})
	router := newQueueTestRouter(h)

	req := authedRequest(t, http.MethodPost, "/api/queue", map[string]any{
		"infringement_id": "missing",
		"recipient_email": "dmca@example.com",
		"subject":         "s",
		"body":            "b",
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestProcessBatch_ReturnsCountsAndOutcomes(t *testing.T) {
	processor := &mockProcessor{
		result: &sendqueue.BatchResult{
			Processed: 3,
			Sent:      1,
			Failed:    1,
			Retried:   1,
			Items: []sendqueue.ItemOutcome{
				{QueueItemID: "q-1", Result: sendqueue.ItemResultSent},
				{QueueItemID: "q-2", Result: sendqueue.ItemResultFailed, Error: "接続タイムアウト"},
				{QueueItemID: "q-3", Result: sendqueue.ItemResultRetried, Error: "一時的なエラー"},
			},
		},
	}
	h := NewQueueHandler(newMockQueueStore(), newMockInfringementStore(), processor)
	router := newQueueTestRouter(h)

	req := authedRequest(t, http.MethodPost, "/api/queue/process", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if processor.calls != 1 {
		t.Errorf("RunOnce呼び出し回数 = %d, want 1", processor.calls)
	}

	var resp processBatchResponse
	decodeBody(t, w, &resp)
	if resp.Processed != 3 || resp.Sent != 1 || resp.Failed != 1 || resp.Retried != 1 {
		t.Errorf("集計が不正: %+v", resp)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(resp.Items))
	}
	if resp.Items[1].QueueItemID != "q-2" || resp.Items[1].Result != "failed" || resp.Items[1].Error != "接続タイムアウト" {
		t.Errorf("項目別結果が不正: %+v", resp.Items[1])
	}
}

func TestProcessBatch_ProcessorError(t *testing.T) {
	processor := &mockProcessor{err: errors.New("接続が切断されました")}
	h := NewQueueHandler(newMockQueueStore(), newMockInfringementStore(), processor)
	router := newQueueTestRouter(h)

	req := authedRequest(t, http.MethodPost, "/api/queue/process", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestGetQueueItem_OwnershipEnforced(t *testing.T) {
	item := &model.QueueItem{
		ID:             "q-1",
		UserID:         "someone-else",
		InfringementID: "inf-1",
		RecipientEmail: "dmca@example.com",
		Status:         model.QueueStatusPending,
		ScheduledFor:   time.Now(),
	}
	h := NewQueueHandler(newMockQueueStore(item), newMockInfringementStore(), &mockProcessor{})
	router := newQueueTestRouter(h)

	req := authedRequest(t, http.MethodGet, "/api/queue/q-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("他ユーザーのキュー項目は404で隠蔽されるべき: status = %d", w.Code)
	}
	var resp apiErrorResponse
	decodeBody(t, w, &resp)
	if resp.Code != "QUEUE_ITEM_NOT_FOUND" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestListQueue_ReturnsOwnItems(t *testing.T) {
	mine := &model.QueueItem{ID: "q-1", UserID: testUserID, Status: model.QueueStatusPending, ScheduledFor: time.Now()}
	other := &model.QueueItem{ID: "q-2", UserID: "someone-else", Status: model.QueueStatusPending, ScheduledFor: time.Now()}
	h := NewQueueHandler(newMockQueueStore(mine, other), newMockInfringementStore(), &mockProcessor{})
	router := newQueueTestRouter(h)

	req := authedRequest(t, http.MethodGet, "/api/queue", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Items []queueItemResponse `json:"items"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Items) != 1 || resp.Items[0].ID != "q-1" {
		t.Errorf("自分の項目のみが返るべき: %+v", resp.Items)
	}
}
