package policy

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ListenRuleUpdates — «живучая» подписка на сигналы об изменении правил.
// Обрабатывает переподключения: при каждом успешном коннекте выполняется
// полный Refresh (синхронизация с БД), при каждом сообщении — тоже, потому что
// консоль шлёт только факт изменения, а не дельту.
func ListenRuleUpdates(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	eval *MemoEvaluator,
) {
	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		// Синхронизация при каждом успешном коннекте — могли пропустить сигналы
		if err := eval.Refresh(ctx); err != nil {
			logger.Error("rule sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				logger.Info("rule update signal", zap.String("payload", msg.Payload))
				if err := eval.Refresh(ctx); err != nil {
					logger.Error("rule refresh failed", zap.Error(err))
				}
			}
		}

		pubsub.Close()
		time.Sleep(1 * time.Second)
	}
}
