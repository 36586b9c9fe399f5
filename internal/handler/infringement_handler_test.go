package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/productguard/internal/evidence"
	"github.com/hitoshi/productguard/internal/model"
	"github.com/hitoshi/productguard/internal/security"
)

type infringementTestDeps struct {
	infs      *mockInfringementStore
	products  *mockProductStore
	commLogs  *mockCommLogReader
	capturer  *mockCapturer
	analyzer  *mockAnalyzer
	validator *mockURLValidator
}

func newInfringementTestRouter(d *infringementTestDeps) http.Handler {
	h := NewInfringementHandler(d.infs, d.products, d.commLogs, d.capturer, d.analyzer, d.validator, nopPipelineMetrics{})
	r := chi.NewRouter()
	r.Post("/api/infringements", h.CreateInfringement)
	r.Get("/api/infringements", h.ListInfringements)
	r.Route("/api/infringements/{id}", func(r chi.Router) {
		r.Get("/", h.GetInfringement)
		r.Get("/targets", h.ListTargets)
		r.Get("/communications", h.ListCommunications)
		r.Post("/capture", h.CaptureEvidence)
		r.Post("/verify", h.UpdateStatus(model.InfringementStatusActive))
		r.Post("/false-positive", h.UpdateStatus(model.InfringementStatusFalsePositive))
		r.Post("/dispute", h.UpdateStatus(model.InfringementStatusDisputed))
		r.Post("/removed", h.UpdateStatus(model.InfringementStatusRemoved))
	})
	return r
}

func defaultInfringementDeps(infs ...*model.Infringement) *infringementTestDeps {
	return &infringementTestDeps{
		infs:      newMockInfringementStore(infs...),
		products:  newMockProductStore(fixtureProduct()),
		commLogs:  &mockCommLogReader{},
		capturer:  &mockCapturer{},
		analyzer:  &mockAnalyzer{},
		validator: &mockURLValidator{},
	}
}

func TestCreateInfringement_StartsPendingVerification(t *testing.T) {
	d := defaultInfringementDeps()
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements", map[string]any{
		"product_id":        "prod-1",
		"source_url":        "https://t.me/piratechannel",
		"platform":          "telegram",
		"infringement_type": "leaked_download",
		"severity_score":    80,
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if len(d.infs.created) != 1 {
		t.Fatalf("created = %d, want 1", len(d.infs.created))
	}
	inf := d.infs.created[0]
	if inf.Status != model.InfringementStatusPendingVerification {
		t.Errorf("Status = %q, want pending_verification", inf.Status)
	}
	if inf.UserID != testUserID || inf.ProductID != "prod-1" {
		t.Errorf("所有者と商品の紐付けが不正: %+v", inf)
	}
	if inf.SeenCount != 1 {
		t.Errorf("SeenCount = %d, want 1", inf.SeenCount)
	}
}

func TestCreateInfringement_InvalidURL(t *testing.T) {
	d := defaultInfringementDeps()
	d.validator.err = fmt.Errorf("disallowed scheme: ftp")
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements", map[string]any{
		"product_id": "prod-1",
		"source_url": "ftp://example.com/file",
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var resp apiErrorResponse
	decodeBody(t, w, &resp)
	if resp.Code != "INVALID_URL" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestCreateInfringement_BlockedDestination(t *testing.T) {
	d := defaultInfringementDeps()
	d.validator.err = fmt.Errorf("%w: blocked IP address: 169.254.169.254", security.ErrBlockedDestination)
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements", map[string]any{
		"product_id": "prod-1",
		"source_url": "http://169.254.169.254/latest/meta-data",
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	var resp apiErrorResponse
	decodeBody(t, w, &resp)
	if resp.Code != "SSRF_BLOCKED" {
		t.Errorf("code = %q", resp.Code)
	}
	if len(d.infs.created) != 0 {
		t.Error("ブロックされたURLの侵害は作成されないべき")
	}
}

func TestVerify_PendingToActive(t *testing.T) {
	inf := fixtureInfringement()
	inf.Status = model.InfringementStatusPendingVerification
	d := defaultInfringementDeps(inf)
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements/inf-1/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(d.infs.statusCalls) != 1 || d.infs.statusCalls[0].status != model.InfringementStatusActive {
		t.Errorf("activeへの更新が記録されるべき: %+v", d.infs.statusCalls)
	}
}

func TestVerify_RejectsNonPendingStatus(t *testing.T) {
	inf := fixtureInfringement()
	inf.Status = model.InfringementStatusTakedownSent
	d := defaultInfringementDeps(inf)
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements/inf-1/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var resp apiErrorResponse
	decodeBody(t, w, &resp)
	if resp.Code != "INVALID_STATUS" {
		t.Errorf("code = %q", resp.Code)
	}
	if len(d.infs.statusCalls) != 0 {
		t.Error("不正な遷移は記録されないべき")
	}
}

func TestDispute_OnlyFromTakedownSent(t *testing.T) {
	inf := fixtureInfringement()
	inf.Status = model.InfringementStatusTakedownSent
	d := defaultInfringementDeps(inf)
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements/inf-1/dispute", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if d.infs.byID["inf-1"].Status != model.InfringementStatusDisputed {
		t.Errorf("Status = %q, want disputed", d.infs.byID["inf-1"].Status)
	}
}

func TestFalsePositive_FromActive(t *testing.T) {
	d := defaultInfringementDeps(fixtureInfringement())
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements/inf-1/false-positive", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if d.infs.byID["inf-1"].Status != model.InfringementStatusFalsePositive {
		t.Errorf("Status = %q, want false_positive", d.infs.byID["inf-1"].Status)
	}
}

func TestListInfringements_FiltersByStatus(t *testing.T) {
	active := fixtureInfringement()
	removed := fixtureInfringement()
	removed.ID = "inf-2"
	removed.Status = model.InfringementStatusRemoved
	d := defaultInfringementDeps(active, removed)
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodGet, "/api/infringements?status=active", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Infringements []infringementResponse `json:"infringements"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Infringements) != 1 || resp.Infringements[0].ID != "inf-1" {
		t.Errorf("activeのみが返るべき: %+v", resp.Infringements)
	}
}

func TestGetInfringement_IncludesEvidence(t *testing.T) {
	d := defaultInfringementDeps(fixtureInfringement())
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodGet, "/api/infringements/inf-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp infringementResponse
	decodeBody(t, w, &resp)
	if resp.Evidence == nil || resp.Evidence.CapturedText == "" {
		t.Error("詳細レスポンスには証拠が含まれるべき")
	}
}

func TestListTargets_ResolvesPlatform(t *testing.T) {
	d := defaultInfringementDeps(fixtureInfringement())
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodGet, "/api/infringements/inf-1/targets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Targets []targetResponse `json:"targets"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Targets) == 0 {
		t.Fatal("対象リストは非空であるべき")
	}
	if resp.Targets[0].Provider.ID != "telegram" || !resp.Targets[0].Recommended {
		t.Errorf("Telegramが推奨対象であるべき: %+v", resp.Targets[0])
	}
}

func TestCaptureEvidence_StoresTextAndAnalysis(t *testing.T) {
	d := defaultInfringementDeps(fixtureInfringement())
	d.capturer.result = &evidence.CaptureResult{
		Title:       "Free FX Master Course Download",
		Text:        "get the triple momentum method here",
		ContentHash: "sha256:abc",
		StatusCode:  200,
		CapturedAt:  time.Now().UTC(),
	}
	d.analyzer.analysis = &model.EvidenceAnalysis{
		Matches: []model.EvidenceMatch{
			{
				Type:           model.MatchTypeExactReproduction,
				OriginalText:   "the triple momentum method",
				InfringingText: "the triple momentum method",
				Significance:   model.SignificanceCritical,
				Confidence:     0.95,
			},
		},
		StrengthScore:      90,
		RecommendedForDMCA: true,
	}
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements/inf-1/capture", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp captureResponse
	decodeBody(t, w, &resp)
	if resp.AnalysisState != "analyzed" {
		t.Errorf("analysis_state = %q, want analyzed", resp.AnalysisState)
	}
	if resp.Analysis == nil || len(resp.Analysis.Matches) != 1 {
		t.Error("分析結果が返るべき")
	}

	stored, ok := d.infs.evidenceSet["inf-1"]
	if !ok {
		t.Fatal("証拠が書き戻されるべき")
	}
	if stored.CapturedTitle != "Free FX Master Course Download" {
		t.Errorf("CapturedTitle = %q", stored.CapturedTitle)
	}
	if len(stored.AnalyzedMatches) != 1 {
		t.Errorf("AnalyzedMatches = %d, want 1", len(stored.AnalyzedMatches))
	}
}

func TestCaptureEvidence_AnalyzerSkipIsNotAnError(t *testing.T) {
	d := defaultInfringementDeps(fixtureInfringement())
	d.capturer.result = &evidence.CaptureResult{Text: "short", CapturedAt: time.Now()}
	// ページテキスト不足時のアナライザはnil, nilを返す
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements/inf-1/capture", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp captureResponse
	decodeBody(t, w, &resp)
	if resp.AnalysisState != "skipped" {
		t.Errorf("analysis_state = %q, want skipped", resp.AnalysisState)
	}
}

func TestCaptureEvidence_AnalyzerDegradationKeepsCapture(t *testing.T) {
	d := defaultInfringementDeps(fixtureInfringement())
	d.capturer.result = &evidence.CaptureResult{Text: "captured page text", CapturedAt: time.Now()}
	d.analyzer.err = errors.New("接続が切断されました")
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements/inf-1/capture", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("分析劣化はキャプチャの失敗にならないべき: status = %d", w.Code)
	}
	var resp captureResponse
	decodeBody(t, w, &resp)
	if resp.AnalysisState != "degraded" {
		t.Errorf("analysis_state = %q, want degraded", resp.AnalysisState)
	}
	if _, ok := d.infs.evidenceSet["inf-1"]; !ok {
		t.Error("分析なしでもキャプチャ結果は書き戻されるべき")
	}
}

func TestCaptureEvidence_BlockedDestination(t *testing.T) {
	d := defaultInfringementDeps(fixtureInfringement())
	d.capturer.err = fmt.Errorf("キャプチャ対象URLの検証に失敗しました: %w", security.ErrBlockedDestination)
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements/inf-1/capture", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestCaptureEvidence_FetchFailure(t *testing.T) {
	d := defaultInfringementDeps(fixtureInfringement())
	d.capturer.err = errors.New("侵害ページのフェッチに失敗しました")
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodPost, "/api/infringements/inf-1/capture", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	var resp apiErrorResponse
	decodeBody(t, w, &resp)
	if resp.Code != "CAPTURE_FAILED" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestListCommunications_ReturnsHistory(t *testing.T) {
	d := defaultInfringementDeps(fixtureInfringement())
	d.commLogs.logs = []*model.CommunicationLog{
		{
			ID:             "cl-1",
			UserID:         testUserID,
			InfringementID: "inf-1",
			TakedownID:     "td-1",
			Direction:      model.CommDirectionOutbound,
			Channel:        model.DeliveryMethodEmail,
			Recipient:      "dmca@telegram.org",
			Subject:        "DMCA Takedown Notice",
			MessageID:      "msg-1",
			CreatedAt:      time.Now(),
		},
	}
	router := newInfringementTestRouter(d)

	req := authedRequest(t, http.MethodGet, "/api/infringements/inf-1/communications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Communications []communicationResponse `json:"communications"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Communications) != 1 {
		t.Fatalf("communications = %d, want 1", len(resp.Communications))
	}
	cl := resp.Communications[0]
	if cl.Direction != "outbound" || cl.Channel != "email" || cl.TakedownID != "td-1" {
		t.Errorf("通信ログの内容が不正: %+v", cl)
	}
}
