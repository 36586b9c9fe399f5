package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/productguard/internal/evidence"
	"github.com/hitoshi/productguard/internal/middleware"
	"github.com/hitoshi/productguard/internal/model"
	"github.com/hitoshi/productguard/internal/worker/sendqueue"
)

// --- モックストア ---

type statusCall struct {
	id     string
	status model.InfringementStatus
}

type mockInfringementStore struct {
	byID        map[string]*model.Infringement
	listed      []*model.Infringement
	created     []*model.Infringement
	statusCalls []statusCall
	evidenceSet map[string]model.Evidence
	findErr     error
}

func newMockInfringementStore(infs ...*model.Infringement) *mockInfringementStore {
	byID := make(map[string]*model.Infringement)
	for _, inf := range infs {
		byID[inf.ID] = inf
	}
	return &mockInfringementStore{
		byID:        byID,
		listed:      infs,
		evidenceSet: make(map[string]model.Evidence),
	}
}

func (m *mockInfringementStore) FindByID(ctx context.Context, id string) (*model.Infringement, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byID[id], nil
}

func (m *mockInfringementStore) ListByUserID(ctx context.Context, userID string, status model.InfringementStatus, limit int) ([]*model.Infringement, error) {
	var out []*model.Infringement
	for _, inf := range m.listed {
		if inf.UserID != userID {
			continue
		}
		if status != "" && inf.Status != status {
			continue
		}
		out = append(out, inf)
	}
	return out, nil
}

func (m *mockInfringementStore) Create(ctx context.Context, inf *model.Infringement) error {
	m.created = append(m.created, inf)
	m.byID[inf.ID] = inf
	return nil
}

func (m *mockInfringementStore) UpdateStatus(ctx context.Context, id string, status model.InfringementStatus) error {
	m.statusCalls = append(m.statusCalls, statusCall{id: id, status: status})
	if inf, ok := m.byID[id]; ok {
		inf.Status = status
	}
	return nil
}

func (m *mockInfringementStore) UpdateEvidence(ctx context.Context, id string, ev model.Evidence) error {
	m.evidenceSet[id] = ev
	return nil
}

type mockProductStore struct {
	byID    map[string]*model.Product
	created []*model.Product
	updated []*model.Product
}

func newMockProductStore(products ...*model.Product) *mockProductStore {
	byID := make(map[string]*model.Product)
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductStore{byID: byID}
}

func (m *mockProductStore) FindByID(ctx context.Context, id string) (*model.Product, error) {
	return m.byID[id], nil
}

func (m *mockProductStore) ListByUserID(ctx context.Context, userID string) ([]*model.Product, error) {
	var out []*model.Product
	for _, p := range m.byID {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductStore) Create(ctx context.Context, product *model.Product) error {
	m.created = append(m.created, product)
	m.byID[product.ID] = product
	return nil
}

func (m *mockProductStore) Update(ctx context.Context, product *model.Product) error {
	m.updated = append(m.updated, product)
	m.byID[product.ID] = product
	return nil
}

type mockProfileStore struct {
	profile  *model.DMCAProfile
	upserted []*model.DMCAProfile
}

func (m *mockProfileStore) FindByUserID(ctx context.Context, userID string) (*model.DMCAProfile, error) {
	if m.profile != nil && m.profile.UserID == userID {
		return m.profile, nil
	}
	return nil, nil
}

func (m *mockProfileStore) Upsert(ctx context.Context, profile *model.DMCAProfile) error {
	m.upserted = append(m.upserted, profile)
	m.profile = profile
	return nil
}

type mockQueueStore struct {
	byID     map[string]*model.QueueItem
	enqueued []*model.QueueItem
}

func newMockQueueStore(items ...*model.QueueItem) *mockQueueStore {
	byID := make(map[string]*model.QueueItem)
	for _, item := range items {
		byID[item.ID] = item
	}
	return &mockQueueStore{byID: byID}
}

func (m *mockQueueStore) FindByID(ctx context.Context, id string) (*model.QueueItem, error) {
	return m.byID[id], nil
}

func (m *mockQueueStore) Enqueue(ctx context.Context, item *model.QueueItem) error {
	m.enqueued = append(m.enqueued, item)
	m.byID[item.ID] = item
	return nil
}

func (m *mockQueueStore) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.QueueItem, error) {
	var out []*model.QueueItem
	for _, item := range m.byID {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

type takedownStatusCall struct {
	id     string
	status model.TakedownStatus
}

type mockTakedownStore struct {
	byID        map[string]*model.Takedown
	statusCalls []takedownStatusCall
}

func newMockTakedownStore(takedowns ...*model.Takedown) *mockTakedownStore {
	byID := make(map[string]*model.Takedown)
	for _, td := range takedowns {
		byID[td.ID] = td
	}
	return &mockTakedownStore{byID: byID}
}

func (m *mockTakedownStore) FindByID(ctx context.Context, id string) (*model.Takedown, error) {
	return m.byID[id], nil
}

func (m *mockTakedownStore) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Takedown, error) {
	var out []*model.Takedown
	for _, td := range m.byID {
		if td.UserID == userID {
			out = append(out, td)
		}
	}
	return out, nil
}

func (m *mockTakedownStore) UpdateStatus(ctx context.Context, id string, status model.TakedownStatus) error {
	m.statusCalls = append(m.statusCalls, takedownStatusCall{id: id, status: status})
	if td, ok := m.byID[id]; ok {
		td.Status = status
	}
	return nil
}

type mockCommLogReader struct {
	logs []*model.CommunicationLog
}

func (m *mockCommLogReader) ListByInfringementID(ctx context.Context, infringementID string, limit int) ([]*model.CommunicationLog, error) {
	var out []*model.CommunicationLog
	for _, l := range m.logs {
		if l.InfringementID == infringementID {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockProcessor struct {
	result *sendqueue.BatchResult
	err    error
	calls  int
}

func (m *mockProcessor) RunOnce(ctx context.Context) (*sendqueue.BatchResult, error) {
	m.calls++
	return m.result, m.err
}

type mockCapturer struct {
	result *evidence.CaptureResult
	err    error
}

func (m *mockCapturer) Capture(ctx context.Context, rawURL string) (*evidence.CaptureResult, error) {
	return m.result, m.err
}

type mockAnalyzer struct {
	analysis *model.EvidenceAnalysis
	err      error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, in evidence.AnalyzeInput) (*model.EvidenceAnalysis, error) {
	return m.analysis, m.err
}

type mockURLValidator struct {
	err error
}

func (m *mockURLValidator) ValidateURL(rawURL string) error {
	return m.err
}

// nopPipelineMetrics は何も記録しないPipelineMetrics。
type nopPipelineMetrics struct{}

func (nopPipelineMetrics) RecordNoticeGenerated(profile string) {}
func (nopPipelineMetrics) RecordQualityFailure()                {}
func (nopPipelineMetrics) RecordCaptureFailure()                {}

// --- フィクスチャ ---

const testUserID = "user-1"

func fixtureProduct() *model.Product {
	return &model.Product{
		ID:          "prod-1",
		UserID:      testUserID,
		Name:        "FX Master Course",
		Type:        model.ProductTypeCourse,
		URL:         "https://example.com/fx-master",
		Description: "A complete trading course covering momentum strategies in depth.",
		Fingerprint: model.Fingerprint{
			UniquePhrases: []string{"the triple momentum method"},
		},
		CreatedAt: time.Now(),
	}
}

func fixtureInfringement() *model.Infringement {
	return &model.Infringement{
		ID:        "inf-1",
		UserID:    testUserID,
		ProductID: "prod-1",
		SourceURL: "https://t.me/piratechannel",
		Platform:  "telegram",
		Status:    model.InfringementStatusActive,
		Evidence: model.Evidence{
			CapturedText: "download the triple momentum method here for free",
		},
		FirstSeenAt: time.Now(),
		LastSeenAt:  time.Now(),
		SeenCount:   1,
		CreatedAt:   time.Now(),
	}
}

func fixtureProfile() *model.DMCAProfile {
	return &model.DMCAProfile{
		ID:      "profile-1",
		UserID:  testUserID,
		Name:    "Taro Yamada",
		Email:   "taro@example.com",
		Phone:   "+81-90-0000-0000",
		Address: "1-2-3 Chiyoda, Tokyo, Japan",
		IsOwner: true,
	}
}

// --- リクエストヘルパー ---

// authedRequest は認証済みユーザーIDをコンテキストに注入したリクエストを生成する。
func authedRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("リクエストボディのエンコードに失敗: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), testUserID))
}

// decodeBody はレスポンスボディをJSONとしてデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("レスポンスボディのデコードに失敗: %v", err)
	}
}
