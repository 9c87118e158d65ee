package utils

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// ConfigureTracing はX-Rayデーモンへの送信を設定します。失敗した場合はデフォルト設定に戻します
func ConfigureTracing(enabled bool) error {
	if !enabled {
		return nil
	}

	if err := xray.Configure(xray.Config{
		DaemonAddr:     "127.0.0.1:2000", // X-Rayデーモンのアドレス
		ServiceVersion: "1.0.0",
	}); err != nil {
		log.Printf("Failed to configure X-Ray: %v", err)
		if configErr := xray.Configure(xray.Config{}); configErr != nil {
			return fmt.Errorf("failed to configure default X-Ray settings: %w", configErr)
		}
	}
	os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	return nil
}

// RunBatch はセグメントを開始し、SIGINT/SIGTERMを受けるかtimeoutを超えるまでfnを実行します
// シグナルで中断した場合はcontext.Canceledを返します
func RunBatch(ctx context.Context, name string, tracing bool, timeout time.Duration, fn func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if tracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, name)
		defer seg.Close(nil)

		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			log.Printf("Failed to add timeout metadata: %v", err)
		}
	}

	err := RunWithTimeout(ctx, timeout, fn)
	if ctx.Err() == context.Canceled {
		log.Printf("Batch %s interrupted by signal", name)
		return context.Canceled
	}
	return err
}
