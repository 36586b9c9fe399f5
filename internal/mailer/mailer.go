// Package mailer はDMCA通知のメール配送能力を提供する。
// 送信キュープロセッサが唯一の呼び出し元であり、再送の重複排除は
// キュー側の試行回数ゲートに委ねる。
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SendRequest はメール送信1件分の入力。
type SendRequest struct {
	To       string
	ToName   string
	ReplyTo  string
	Subject  string
	BodyText string
}

// SendResult は送信成功時の結果。
type SendResult struct {
	MessageID string
}

// NoticeSender はメール配送能力のインターフェースを定義する。
// 実装は安全に再試行可能でなければならない。
type NoticeSender interface {
	// Send はテキストメールを1件送信する。
	// 成功時はMessage-IDを返す。失敗はエラーとして返し、
	// 再試行の判断は呼び出し元に委ねる。
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// SMTPSender はnet/smtpによるNoticeSenderの実装。
type SMTPSender struct {
	addr     string // host:port
	host     string
	username string
	password string
	from     string
	fromName string
	logger   *slog.Logger
}

// NewSMTPSender はSMTPSenderの新しいインスタンスを生成する。
// usernameが空の場合は認証なしで送信する（ローカルリレー向け）。
func NewSMTPSender(addr, username, password, from, fromName string, logger *slog.Logger) *SMTPSender {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	return &SMTPSender{
		addr:     addr,
		host:     host,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		logger:   logger,
	}
}

var _ NoticeSender = (*SMTPSender)(nil)

// Send はテキストメールを1件送信する。
// Message-IDは送信側で生成し、通信ログとの突合に使用する。
func (s *SMTPSender) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if req.To == "" {
		return nil, fmt.Errorf("宛先メールアドレスが空です")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.host)
	msg := buildMessage(s.from, s.fromName, req, messageID)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := smtp.SendMail(s.addr, auth, s.from, []string{req.To}, msg); err != nil {
		s.logger.Error("メール送信に失敗しました",
			slog.String("to", req.To),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("メール送信に失敗しました: %w", err)
	}

	s.logger.Info("メールを送信しました",
		slog.String("to", req.To),
		slog.String("message_id", messageID),
	)
	return &SendResult{MessageID: messageID}, nil
}

// buildMessage はRFC 5322形式のメッセージを構築する。
// ヘッダインジェクション防止のため件名と宛先の改行は除去される。
func buildMessage(from, fromName string, req SendRequest, messageID string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", sanitizeHeader(fromName), from)
	if req.ToName != "" {
		fmt.Fprintf(&b, "To: %s <%s>\r\n", sanitizeHeader(req.ToName), sanitizeHeader(req.To))
	} else {
		fmt.Fprintf(&b, "To: %s\r\n", sanitizeHeader(req.To))
	}
	if req.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", sanitizeHeader(req.ReplyTo))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(req.Subject))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(req.BodyText)
	return []byte(b.String())
}

// sanitizeHeader はヘッダ値から改行を除去する。
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	v = strings.ReplaceAll(v, "\n", "")
	return v
}
