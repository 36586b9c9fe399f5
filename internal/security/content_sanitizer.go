// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はキャプチャした侵害ページのHTMLをサニタイズし、
// 保存・分析・API応答に安全なプレーンテキストへ変換する。
// 侵害ページは敵対的なコンテンツであり、scriptやイベント属性を含む前提で扱う。
// bluemondayのStrictPolicyにより全てのタグと属性が除去される。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はキャプチャコンテンツのサニタイズ機能のインターフェースを定義する。
// 侵害ページテキストの保存前および通知本文への引用前に使用される。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツから全てのタグと属性を除去したテキストを返す。
	// script, iframe, style, on*イベント属性を含む全マークアップが除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyを使用する。キャプチャしたページテキストは証拠として
// 引用・比較されるだけであり、マークアップを保持する理由がない。
// 許可リストを空にすることでタグの取りこぼしを構造的に排除する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLコンテンツから全てのタグと属性を除去したテキストを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
