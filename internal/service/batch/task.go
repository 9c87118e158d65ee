package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
)

// SFNClient はStep Functionsへのタスク結果の通知に使うAPIです
type SFNClient interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error)
}

// sendTaskSuccess は、Step Functionsのタスク成功を通知し、outputを返却します
// ENV=LOCAL またはクライアントがない場合は何もしません
func sendTaskSuccess(ctx context.Context, client SFNClient, taskToken string, output any) error {
	if os.Getenv("ENV") == "LOCAL" || client == nil {
		log.Printf("Local environment detected. Skipping Step Functions task success notification")
		return nil
	}
	if taskToken == "" {
		return fmt.Errorf("SFN_TASK_TOKEN is not set in config")
	}

	body, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal task output: %w", err)
	}

	input := &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(taskToken),
		Output:    aws.String(string(body)),
	}
	if _, err := client.SendTaskSuccess(ctx, input); err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}
	return nil
}

// ReportTaskFailure はStep Functionsにタスクの失敗を通知します
// 呼び出し元のコンテキストが切れていても通知できるよう、独自のタイムアウトで送信します
func ReportTaskFailure(ctx context.Context, client SFNClient, taskToken string, cause error) {
	if client == nil || cause == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	input := &sfn.SendTaskFailureInput{
		TaskToken: aws.String(taskToken),
		Error:     aws.String("Batch process failed"),
		Cause:     aws.String(cause.Error()),
	}
	if _, err := client.SendTaskFailure(ctx, input); err != nil {
		log.Printf("Failed to send task failure: %v", err)
	}
}
