// Package billing はサブスクリプション課金のユースケースを提供する。
// Razorpay連携を伴う複数ステップの更新をサガとして実行し、
// 途中失敗時には補償処理で巻き戻す。
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smartslate/polaris/internal/model"
)

// SagaStep はサガを構成する1ステップ。
// Compensateがnilのステップは巻き戻し不要（通知などの非クリティカル処理）を意味する。
type SagaStep struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// ErrSagaInFlight は同一キーのサガが既に実行中の場合に返される。
// APIErrorとして409 Conflictにマッピングされる。
var ErrSagaInFlight error = model.NewOperationInFlightError()

// SagaMetrics はサガ実行のメトリクス記録インターフェース。
type SagaMetrics interface {
	RecordSagaRollback(sagaName string)
}

// SagaRunner は複数ステップの課金処理を順次実行し、失敗時に補償処理を逆順で実行する。
// 同一キー（ユーザーID）の同時実行をインメモリで排他する。
type SagaRunner struct {
	logger        *slog.Logger
	metrics       SagaMetrics
	retryAttempts int
	retryDelay    time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSagaRunner はSagaRunnerを生成する。
// retryAttemptsは各ステップの最大試行回数、retryDelayは試行間の固定待機時間。
func NewSagaRunner(logger *slog.Logger, metrics SagaMetrics, retryAttempts int, retryDelay time.Duration) *SagaRunner {
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &SagaRunner{
		logger:        logger,
		metrics:       metrics,
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
		inFlight:      make(map[string]struct{}),
	}
}

// Execute はステップを順次実行する。
// いずれかのステップが最終的に失敗した場合、完了済みステップの補償処理を
// 逆順でベストエフォート実行し、元のエラーを返す。
// 同一キーのサガが実行中の場合はErrSagaInFlightを返す。
func (r *SagaRunner) Execute(ctx context.Context, sagaName, key string, steps []SagaStep) error {
	if !r.acquire(key) {
		return ErrSagaInFlight
	}
	defer r.release(key)

	var completed []SagaStep

	for _, step := range steps {
		if err := r.runWithRetry(ctx, sagaName, step); err != nil {
			r.logger.Error("saga step failed",
				slog.String("saga", sagaName),
				slog.String("step", step.Name),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			r.rollback(ctx, sagaName, key, completed)
			return err
		}
		completed = append(completed, step)
	}

	return nil
}

// acquire はキーの実行権を取得する。既に実行中の場合はfalseを返す。
func (r *SagaRunner) acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.inFlight[key]; exists {
		return false
	}
	r.inFlight[key] = struct{}{}
	return true
}

// release はキーの実行権を解放する。
func (r *SagaRunner) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, key)
}

// runWithRetry はステップを固定間隔でリトライしながら実行する。
// 業務エラー（APIError）はリトライしても解決しないため即座に返す。
// ただしゲートウェイ通信失敗（GATEWAY_UNAVAILABLE）は一時障害の
// 可能性があるためリトライ対象とする。
func (r *SagaRunner) runWithRetry(ctx context.Context, sagaName string, step SagaStep) error {
	var lastErr error

	for attempt := 1; attempt <= r.retryAttempts; attempt++ {
		err := step.Run(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code != model.ErrCodeGatewayUnavailable {
			return err
		}

		if attempt < r.retryAttempts {
			r.logger.Warn("saga step retrying",
				slog.String("saga", sagaName),
				slog.String("step", step.Name),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			select {
			case <-time.After(r.retryDelay):
			case <-ctx.Done():
				return fmt.Errorf("サガの実行が中断されました: %w", ctx.Err())
			}
		}
	}

	return lastErr
}

// rollback は完了済みステップの補償処理を逆順でベストエフォート実行する。
// 補償の失敗はログに記録するのみで処理は継続する。
func (r *SagaRunner) rollback(ctx context.Context, sagaName, key string, completed []SagaStep) {
	if len(completed) == 0 {
		return
	}

	if r.metrics != nil {
		r.metrics.RecordSagaRollback(sagaName)
	}

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			r.logger.Error("saga compensation failed",
				slog.String("saga", sagaName),
				slog.String("step", step.Name),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.logger.Info("saga step compensated",
			slog.String("saga", sagaName),
			slog.String("step", step.Name),
			slog.String("key", key),
		)
	}
}
