package evidence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/productguard/internal/security"
)

const (
	// defaultCaptureTimeout はキャプチャリクエストのタイムアウト。
	defaultCaptureTimeout = 30 * time.Second
	// maxCaptureBodySize はキャプチャするHTMLボディの上限。
	maxCaptureBodySize = 5 << 20
	// maxCapturedTextLength は保存するテキストの上限文字数。
	maxCapturedTextLength = 50000
)

// CaptureResult は侵害ページのキャプチャ結果を表す。
type CaptureResult struct {
	Title       string
	Text        string
	ContentHash string // キャプチャ本文のSHA-256（証拠パケット用）
	CapturedAt  time.Time
	StatusCode  int
}

// Capturer は侵害ページのSSRF防止付きキャプチャを提供する。
// ユーザー入力のURLをそのままフェッチするため、プライベートIPや
// メタデータIPへのアクセスはsafeurlのDialer検証でブロックされる。
type Capturer struct {
	guard      security.SSRFGuardService
	httpClient *http.Client
	sanitizer  security.ContentSanitizerService
	logger     *slog.Logger
}

// NewCapturer はCapturerの新しいインスタンスを生成する。
// 抽出テキストはサニタイザで全マークアップを除去してから保存される。
func NewCapturer(guard security.SSRFGuardService, sanitizer security.ContentSanitizerService, logger *slog.Logger) *Capturer {
	return &Capturer{
		guard:      guard,
		httpClient: guard.NewSafeClient(defaultCaptureTimeout, maxCaptureBodySize),
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// Capture は侵害ページをフェッチしてタイトルと可視テキストを抽出する。
// URLの静的検証 → SSRF防止クライアントでのフェッチ → HTML解析の順に処理する。
// 抽出テキストはStrictPolicyでタグを全除去したプレーンテキストになる。
func (c *Capturer) Capture(ctx context.Context, rawURL string) (*CaptureResult, error) {
	if err := c.guard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("キャプチャ対象URLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "ProductGuard/1.0 Evidence Capture")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("侵害ページのフェッチに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("侵害ページのフェッチに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptureBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	title, text := extractTitleAndText(body)
	text = c.sanitizer.Sanitize(text)
	text = collapseWhitespace(text)
	if len(text) > maxCapturedTextLength {
		text = text[:maxCapturedTextLength]
	}

	hash := sha256.Sum256(body)

	return &CaptureResult{
		Title:       title,
		Text:        text,
		ContentHash: "sha256:" + hex.EncodeToString(hash[:]),
		CapturedAt:  time.Now().UTC(),
		StatusCode:  resp.StatusCode,
	}, nil
}

// extractTitleAndText はHTMLボディからtitleタグの内容と可視テキストを抽出する。
// script/style/noscript配下のテキストは除外される。
func extractTitleAndText(body []byte) (string, string) {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))

	var title string
	var text strings.Builder
	inTitle := false
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(title), text.String()

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "title":
				inTitle = true
			case "script", "style", "noscript":
				skipDepth++
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "title":
				inTitle = false
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			t := string(tokenizer.Text())
			if inTitle {
				title += t
				continue
			}
			if strings.TrimSpace(t) != "" {
				text.WriteString(t)
				text.WriteString(" ")
			}
		}
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// collapseWhitespace は連続する空白を1つのスペースにまとめる。
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
