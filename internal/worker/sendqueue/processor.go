// Package sendqueue はDMCA通知送信キューのバックグラウンド処理を提供する。
// 定期的にpending項目を要求し、メール配送・テイクダウン記録・再試行制御を行う。
package sendqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/productguard/internal/mailer"
	"github.com/hitoshi/productguard/internal/metrics"
	"github.com/hitoshi/productguard/internal/model"
	"github.com/hitoshi/productguard/internal/repository"
)

const (
	// defaultBatchSize は1サイクルで要求するキュー項目数のデフォルト。
	defaultBatchSize = 5
	// defaultRetryDelay は配送失敗後の再スケジュール遅延のデフォルト（5分）。
	defaultRetryDelay = 5 * time.Minute
	// defaultSendPacing は連続送信の間隔のデフォルト（200ミリ秒）。
	// 受信側のレート制限やスパム判定を避けるための送信ペーシング。
	defaultSendPacing = 200 * time.Millisecond
)

// ItemResult はキュー項目1件の処理結果の分類。
type ItemResult string

const (
	// ItemResultSent は配送成功。
	ItemResultSent ItemResult = "sent"
	// ItemResultFailed は終端状態failedへの遷移。
	ItemResultFailed ItemResult = "failed"
	// ItemResultRetried は再スケジュール。
	ItemResultRetried ItemResult = "retried"
)

// ItemOutcome はキュー項目1件の処理結果。
// 1項目の失敗がバッチ全体を止めない代わりに、結果として呼び出し元へ可視化する。
type ItemOutcome struct {
	QueueItemID string
	Result      ItemResult
	Error       string
}

// BatchResult は1送信サイクルの集計結果。
type BatchResult struct {
	Processed int
	Sent      int
	Failed    int
	Retried   int
	Items     []ItemOutcome
}

// Processor は送信キューのプロセッサ。
// キュー項目のステータス遷移・試行回数・再スケジュールを変更するのは
// このプロセッサのみである。
type Processor struct {
	queueRepo        repository.QueueRepository
	infringementRepo repository.InfringementRepository
	takedownRepo     repository.TakedownRepository
	commLogRepo      repository.CommunicationLogRepository
	sender           mailer.NoticeSender
	collector        metrics.MetricsCollector
	logger           *slog.Logger
	batchSize        int
	retryDelay       time.Duration
	limiter          *rate.Limiter
}

// NewProcessor はProcessorの新しいインスタンスを生成する。
// batchSize/retryDelay/sendPacingが0以下の場合はデフォルト値を使用する。
func NewProcessor(
	queueRepo repository.QueueRepository,
	infringementRepo repository.InfringementRepository,
	takedownRepo repository.TakedownRepository,
	commLogRepo repository.CommunicationLogRepository,
	sender mailer.NoticeSender,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	batchSize int,
	retryDelay time.Duration,
	sendPacing time.Duration,
) *Processor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	if sendPacing <= 0 {
		sendPacing = defaultSendPacing
	}
	return &Processor{
		queueRepo:        queueRepo,
		infringementRepo: infringementRepo,
		takedownRepo:     takedownRepo,
		commLogRepo:      commLogRepo,
		sender:           sender,
		collector:        collector,
		logger:           logger,
		batchSize:        batchSize,
		retryDelay:       retryDelay,
		limiter:          rate.NewLimiter(rate.Every(sendPacing), 1),
	}
}

// Start は指定間隔のティッカーでプロセッサを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Processor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("送信キュープロセッサを開始しました",
		slog.Duration("interval", interval),
		slog.Int("batch_size", p.batchSize),
	)

	// 起動直後に1回実行
	if _, err := p.RunOnce(ctx); err != nil {
		p.logger.Error("送信サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("送信キュープロセッサを停止しました")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error("送信サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は送信対象のキュー項目を1バッチ要求し、順次処理する。
// 1項目の失敗はその項目の再試行制御で吸収し、結果として集計へ可視化する。
// 固定スケジュールからの呼び出しとAPIからの手動トリガーの両方で冪等に動作する。
func (p *Processor) RunOnce(ctx context.Context) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{}

	items, err := p.queueRepo.ClaimBatch(ctx, p.batchSize)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return result, nil
	}

	p.logger.Info("送信サイクルを開始します",
		slog.Int("item_count", len(items)),
	)

	for _, item := range items {
		// 送信ペーシング。要求済み（processing）の項目は他のプロセッサから
		// 見えないため、ここで待機しても二重送信の危険はない。
		if err := p.limiter.Wait(ctx); err != nil {
			return result, err
		}

		outcome := p.processItem(ctx, item)
		result.Items = append(result.Items, outcome)
		result.Processed++
		switch outcome.Result {
		case ItemResultSent:
			result.Sent++
		case ItemResultFailed:
			result.Failed++
		case ItemResultRetried:
			result.Retried++
		}
	}

	duration := time.Since(start)
	p.logger.Info("送信サイクルが完了しました",
		slog.Int("processed", result.Processed),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
		slog.Int("retried", result.Retried),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return result, nil
}

// processItem はキュー項目1件を処理する。
// 処理中のpanicは配送失敗として扱い、通常の再試行制御に乗せる。
func (p *Processor) processItem(ctx context.Context, item *model.QueueItem) (outcome ItemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("キュー項目の処理中にpanicが発生しました",
				slog.String("queue_item_id", item.ID),
				slog.Any("panic", r),
			)
			outcome = p.handleFailure(ctx, item, fmt.Sprintf("内部エラー: %v", r))
		}
	}()

	// 宛先メールアドレスのない項目（web_form/manual経路）は自動配送不能。
	// 再試行しても解決しないため即座に終端状態failedへ遷移させる。
	if item.RecipientEmail == "" {
		const reason = "宛先メールアドレスがありません"
		if err := p.queueRepo.MarkFailed(ctx, item.ID, item.AttemptCount+1, reason); err != nil {
			p.logger.Error("キュー項目の失敗更新に失敗しました",
				slog.String("queue_item_id", item.ID),
				slog.String("error", err.Error()),
			)
		}
		p.collector.RecordQueueFailed("no_recipient")
		p.logger.Warn("宛先のないキュー項目を失敗として終端しました",
			slog.String("queue_item_id", item.ID),
			slog.String("provider_name", item.ProviderName),
		)
		return ItemOutcome{QueueItemID: item.ID, Result: ItemResultFailed, Error: reason}
	}

	sendStart := time.Now()
	sendResult, err := p.sender.Send(ctx, mailer.SendRequest{
		To:       item.RecipientEmail,
		ToName:   item.RecipientName,
		Subject:  item.Subject,
		BodyText: item.Body,
	})
	p.collector.RecordSendLatency(time.Since(sendStart))

	if err != nil {
		return p.handleFailure(ctx, item, err.Error())
	}

	return p.handleSuccess(ctx, item, sendResult.MessageID)
}

// handleSuccess は配送成功時の後続処理を行う。
// テイクダウンレコードの作成、侵害ステータスの前進、キュー項目の終端、
// 通信ログの記録の順に実行する。メールは既に送信済みのため、後続処理の
// 失敗で項目を再試行へ戻すことはしない（二重送信の方が害が大きい）。
func (p *Processor) handleSuccess(ctx context.Context, item *model.QueueItem, messageID string) ItemOutcome {
	now := time.Now()

	// テイクダウンレコードには侵害元URLを転記する
	var infringingURL string
	inf, err := p.infringementRepo.FindByID(ctx, item.InfringementID)
	if err != nil {
		p.logger.Warn("侵害レコードの取得に失敗しました",
			slog.String("infringement_id", item.InfringementID),
			slog.String("error", err.Error()),
		)
	} else if inf != nil {
		infringingURL = inf.SourceURL
	}

	takedown := &model.Takedown{
		ID:             uuid.New().String(),
		InfringementID: item.InfringementID,
		UserID:         item.UserID,
		Type:           model.TargetTypePlatform,
		Status:         model.TakedownStatusSent,
		Recipient:      item.RecipientEmail,
		InfringingURL:  infringingURL,
		NoticeSubject:  item.Subject,
		NoticeBody:     item.Body,
		SentAt:         now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.takedownRepo.Create(ctx, takedown); err != nil {
		p.logger.Error("テイクダウンの作成に失敗しました",
			slog.String("queue_item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}

	// activeの場合のみtakedown_sentへ前進させる。手動でdisputed等へ
	// 変更済みの侵害レコードを巻き戻さないためのガード付き更新。
	if err := p.infringementRepo.UpdateStatusIfActive(ctx, item.InfringementID, model.InfringementStatusTakedownSent); err != nil {
		p.logger.Warn("侵害ステータスの更新に失敗しました",
			slog.String("infringement_id", item.InfringementID),
			slog.String("error", err.Error()),
		)
	}

	if err := p.queueRepo.MarkSent(ctx, item.ID); err != nil {
		p.logger.Error("キュー項目の送信済み更新に失敗しました",
			slog.String("queue_item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}

	commLog := &model.CommunicationLog{
		ID:             uuid.New().String(),
		UserID:         item.UserID,
		InfringementID: item.InfringementID,
		TakedownID:     takedown.ID,
		Direction:      model.CommDirectionOutbound,
		Channel:        model.DeliveryMethodEmail,
		Recipient:      item.RecipientEmail,
		Subject:        item.Subject,
		Body:           item.Body,
		MessageID:      messageID,
		CreatedAt:      now,
	}
	if err := p.commLogRepo.Create(ctx, commLog); err != nil {
		p.logger.Error("通信ログの作成に失敗しました",
			slog.String("queue_item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}

	p.collector.RecordQueueSent()
	p.logger.Info("DMCA通知を送信しました",
		slog.String("queue_item_id", item.ID),
		slog.String("takedown_id", takedown.ID),
		slog.String("recipient", item.RecipientEmail),
		slog.String("message_id", messageID),
	)

	return ItemOutcome{QueueItemID: item.ID, Result: ItemResultSent}
}

// handleFailure は配送失敗時の再試行制御を行う。
// 試行回数が上限に達した場合は終端状態failedへ、
// それ以外はretryDelay後のpendingへ再スケジュールする。
func (p *Processor) handleFailure(ctx context.Context, item *model.QueueItem, reason string) ItemOutcome {
	attempts := item.AttemptCount + 1

	if attempts >= item.MaxAttempts {
		if err := p.queueRepo.MarkFailed(ctx, item.ID, attempts, reason); err != nil {
			p.logger.Error("キュー項目の失敗更新に失敗しました",
				slog.String("queue_item_id", item.ID),
				slog.String("error", err.Error()),
			)
		}
		p.collector.RecordQueueFailed("delivery_error")
		p.logger.Error("キュー項目が試行回数上限に達しました",
			slog.String("queue_item_id", item.ID),
			slog.Int("attempt_count", attempts),
			slog.String("error", reason),
		)
		return ItemOutcome{QueueItemID: item.ID, Result: ItemResultFailed, Error: reason}
	}

	scheduledFor := time.Now().Add(p.retryDelay)
	if err := p.queueRepo.RescheduleForRetry(ctx, item.ID, attempts, reason, scheduledFor); err != nil {
		p.logger.Error("キュー項目の再スケジュールに失敗しました",
			slog.String("queue_item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}
	p.collector.RecordQueueRetried()
	p.logger.Warn("キュー項目を再スケジュールしました",
		slog.String("queue_item_id", item.ID),
		slog.Int("attempt_count", attempts),
		slog.Time("scheduled_for", scheduledFor),
		slog.String("error", reason),
	)
	return ItemOutcome{QueueItemID: item.ID, Result: ItemResultRetried, Error: reason}
}
