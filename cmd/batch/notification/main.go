package main

import (
	"context"
	"flag"
	"log"
	"os"
	"runtime/debug"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/uma-arai/venue-reservation/internal/common/config"
	"github.com/uma-arai/venue-reservation/internal/common/utils"
	"github.com/uma-arai/venue-reservation/internal/service/batch"
)

const (
	projectName = "venue-reservation-notification-retry"
)

// 書き込みに失敗した通知をRedisの再送キューから取り出して書き込むバッチ
// Step Functionsのタスクとして定期的に起動し、最後の引数でタスクトークンを受け取る
func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// ENV=LOCALの場合はタスクトークンを取得しない
	local := os.Getenv("ENV") == "LOCAL"
	taskToken := "DUMMY_TASK_TOKEN"
	if !local {
		if flag.NArg() == 0 || flag.Arg(flag.NArg()-1) == "" {
			log.Fatalf("Task token is required")
		}
		taskToken = flag.Arg(flag.NArg() - 1)
	}

	cfg, err := config.LoadConfig(taskToken)
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}
	if err := utils.ConfigureTracing(cfg.EnableTracing); err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()

	var sfnClient batch.SFNClient
	if !local {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v\nStack trace:\n%s", err, debug.Stack())
		}
		sfnClient = sfn.NewFromConfig(awsCfg)
	}

	service, err := batch.NewNotificationBatchService(ctx, cfg, sfnClient)
	if err != nil {
		log.Printf("Failed to create notification batch service: %v", err)
		batch.ReportTaskFailure(ctx, sfnClient, taskToken, err)
		os.Exit(1)
	}

	err = utils.RunBatch(ctx, projectName, cfg.EnableTracing, *timeout, service.Run)
	service.Close()
	if err != nil {
		log.Printf("Batch process failed: %v", err)
		batch.ReportTaskFailure(ctx, sfnClient, taskToken, err)
		os.Exit(1)
	}
	log.Println("Batch process completed successfully")
}
