package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uma-arai/venue-reservation/internal/model"
)

// ErrTimeout はRunWithTimeoutが制限時間を超えた場合に返されます
var ErrTimeout = errors.New("timed out")

// 指定されたタイムアウト時間内でバッチ処理を実行する
// タイムアウトを超えた場合は、コンテキストをキャンセルしてエラーを返す
// fn内のpanicはスタックトレース付きのエラーとして返す
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- errorFromPanic(r)
			}
		}()
		errChan <- fn(ctx)
	}()

	// 処理の完了またはタイムアウトを待機
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return fmt.Errorf("batch process %w after %v", ErrTimeout, timeout)
	}
}

type actorKey struct{}

// WithActor はリクエストを行った主体をコンテキストに格納します
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext はコンテキストから主体を取り出します
// 格納されていない場合は ok が false になります
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(model.Actor)
	return actor, ok
}
