// Package events はWebhookイベントキューのバックグラウンド処理を提供する。
// 受信時にキューへ積まれたイベントを取り出し、課金状態へ反映する。
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/repository"
)

// EventHandler はイベント1件の処理インターフェース。
type EventHandler interface {
	// ProcessEvent はWebhookイベントを課金状態へ反映する。
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// FailureRecorder はイベント処理失敗のメトリクス記録インターフェース。
type FailureRecorder interface {
	RecordWebhookFailure(eventType string)
}

// Processor はWebhookイベントキューの処理ワーカー。
// ティッカーで処理期限が到来したイベントを取得し（FOR UPDATE SKIP LOCKED）、
// semaphoreパターンで最大並列数を制御しながら処理する。
// 失敗したイベントは固定遅延でリトライし、上限到達で失敗状態にする。
type Processor struct {
	eventRepo      repository.WebhookEventRepository
	handler        EventHandler
	logger         *slog.Logger
	metrics        FailureRecorder
	maxConcurrency int
	batchSize      int
	maxAttempts    int
	retryDelay     time.Duration
}

// NewProcessor はProcessorの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5、
// maxAttemptsが0以下の場合はデフォルト値5を使用する。
func NewProcessor(
	eventRepo repository.WebhookEventRepository,
	handler EventHandler,
	logger *slog.Logger,
	metrics FailureRecorder,
	maxConcurrency int,
	maxAttempts int,
	retryDelay time.Duration,
) *Processor {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if retryDelay <= 0 {
		retryDelay = time.Minute
	}
	return &Processor{
		eventRepo:      eventRepo,
		handler:        handler,
		logger:         logger,
		metrics:        metrics,
		maxConcurrency: maxConcurrency,
		batchSize:      100,
		maxAttempts:    maxAttempts,
		retryDelay:     retryDelay,
	}
}

// Start は指定間隔のティッカーでワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Processor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("イベント処理ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", p.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := p.RunOnce(ctx); err != nil {
		p.logger.Error("イベント処理サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("イベント処理ワーカーを停止しました")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error("イベント処理サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は処理期限が到来したイベントを1回取得し、並列で処理する。
func (p *Processor) RunOnce(ctx context.Context) error {
	start := time.Now()

	events, err := p.eventRepo.ListDue(ctx, p.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	p.logger.Info("イベント処理サイクルを開始します",
		slog.Int("event_count", len(events)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup

	for _, event := range events {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(e *model.WebhookEvent) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			p.processOne(ctx, e)
		}(event)
	}

	wg.Wait()

	duration := time.Since(start)
	p.logger.Info("イベント処理サイクルが完了しました",
		slog.Int("event_count", len(events)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// processOne はイベント1件を処理し、結果に応じて状態を更新する。
func (p *Processor) processOne(ctx context.Context, event *model.WebhookEvent) {
	if err := p.handler.ProcessEvent(ctx, event); err != nil {
		p.markFailure(ctx, event, err)
		return
	}

	if err := p.eventRepo.MarkProcessed(ctx, event.ID, time.Now()); err != nil {
		p.logger.Error("イベントの処理完了記録に失敗しました",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}

// markFailure は処理失敗を記録する。
// 試行回数が上限未満なら固定遅延後のリトライを予約し、
// 上限に達した場合は失敗状態にしてメトリクスへ記録する。
func (p *Processor) markFailure(ctx context.Context, event *model.WebhookEvent, procErr error) {
	attempts := event.Attempts + 1

	if attempts < p.maxAttempts {
		nextAttemptAt := time.Now().Add(p.retryDelay)
		if err := p.eventRepo.MarkRetry(ctx, event.ID, attempts, procErr.Error(), nextAttemptAt); err != nil {
			p.logger.Error("イベントのリトライ予約に失敗しました",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		p.logger.Warn("イベント処理に失敗しました（リトライ予約）",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.EventType),
			slog.Int("attempts", attempts),
			slog.String("error", procErr.Error()),
		)
		return
	}

	if err := p.eventRepo.MarkFailed(ctx, event.ID, attempts, procErr.Error()); err != nil {
		p.logger.Error("イベントの失敗記録に失敗しました",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.metrics.RecordWebhookFailure(event.EventType)
	p.logger.Error("イベント処理がリトライ上限に達しました",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.EventType),
		slog.Int("attempts", attempts),
		slog.String("error", procErr.Error()),
	)
}
