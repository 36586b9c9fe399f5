// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, notice, queue, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInfringementNotFound = "INFRINGEMENT_NOT_FOUND"
	ErrCodeProductNotFound      = "PRODUCT_NOT_FOUND"
	ErrCodeProfileNotFound      = "DMCA_PROFILE_NOT_FOUND"
	ErrCodeQualityCheckFailed   = "QUALITY_CHECK_FAILED"
	ErrCodeNoEmailRecipient     = "NO_EMAIL_RECIPIENT"
	ErrCodeInvalidURL           = "INVALID_URL"
	ErrCodeSSRFBlocked          = "SSRF_BLOCKED"
	ErrCodeInvalidStatus        = "INVALID_STATUS"
	ErrCodeQueueItemNotFound    = "QUEUE_ITEM_NOT_FOUND"
	ErrCodeTakedownNotFound     = "TAKEDOWN_NOT_FOUND"
	ErrCodeCaptureFailed        = "CAPTURE_FAILED"
)

// NewInfringementNotFoundError は侵害レコード未検出エラーを生成する。
func NewInfringementNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInfringementNotFound,
		Message:  fmt.Sprintf("指定された侵害レコードが見つかりません: %s", id),
		Category: "notice",
		Action:   "侵害IDを確認してください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", id),
		Category: "notice",
		Action:   "商品IDを確認してください。",
	}
}

// NewProfileNotFoundError はDMCAプロフィール未設定エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "DMCA連絡先プロフィールが設定されていません。",
		Category: "notice",
		Action:   "設定画面でDMCA連絡先（氏名・メールアドレス・住所）を登録するか、リクエストで連絡先を指定してください。",
	}
}

// NewQualityCheckFailedError は品質チェック不合格エラーを生成する。
// 個別の不備はQualityResultのエラーリストで提示されるため、
// ここでは送付がブロックされたことのみを伝える。
func NewQualityCheckFailedError(errorCount int) *APIError {
	return &APIError{
		Code:     ErrCodeQualityCheckFailed,
		Message:  fmt.Sprintf("通知が法的要件を満たしていません（不備%d件）。", errorCount),
		Category: "notice",
		Action:   "品質チェック結果の各エラーに記載された修正手順に従って不足項目を補ってください。",
	}
}

// NewNoEmailRecipientError はメール送付先なしエラーを生成する。
func NewNoEmailRecipientError(providerName string) *APIError {
	return &APIError{
		Code:     ErrCodeNoEmailRecipient,
		Message:  fmt.Sprintf("プロバイダ %s にはDMCA受付メールアドレスがありません。", providerName),
		Category: "queue",
		Action:   "Webフォームまたは手動チャネルで送付してください。メール送信キューには投入できません。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewInvalidStatusError は不正なステータス遷移エラーを生成する。
func NewInvalidStatusError(current InfringementStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("現在のステータス（%s）ではこの操作は実行できません。", current),
		Category: "validation",
		Action:   "侵害レコードの現在のステータスを確認してください。",
	}
}

// NewQueueItemNotFoundError はキュー項目未検出エラーを生成する。
func NewQueueItemNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeQueueItemNotFound,
		Message:  fmt.Sprintf("指定されたキュー項目が見つかりません: %s", id),
		Category: "queue",
		Action:   "キュー項目IDを確認してください。",
	}
}

// NewCaptureFailedError はページキャプチャ失敗エラーを生成する。
func NewCaptureFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCaptureFailed,
		Message:  fmt.Sprintf("侵害ページのキャプチャに失敗しました: %s", reason),
		Category: "system",
		Action:   "対象サイトが稼働しているか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewTakedownNotFoundError はテイクダウン未検出エラーを生成する。
func NewTakedownNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTakedownNotFound,
		Message:  fmt.Sprintf("指定されたテイクダウンが見つかりません: %s", id),
		Category: "notice",
		Action:   "テイクダウンIDを確認してください。",
	}
}
