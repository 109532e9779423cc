package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aznory/listinglens/internal/assembler"
	"github.com/aznory/listinglens/internal/clients"
)

const ANALYSIS_RUNS_TABLE_NAME = "AnalysisRuns"

// Run records are retained for 90 days via DynamoDB TTL.
const runRetention = 90 * 24 * time.Hour

var dbClient *dynamodb.Client

func InitDynamoDB() {
	dbClient = clients.GetDynamoDBClient()
}

func runsTableName() string {
	if name := os.Getenv("ANALYSIS_RUNS_TABLE"); name != "" {
		return name
	}
	return ANALYSIS_RUNS_TABLE_NAME
}

// StoreAnalysisRun persists one completed run. Dry runs are skipped by the
// caller, never here.
func StoreAnalysisRun(ctx context.Context, result assembler.CombinedResult) error {
	if dbClient == nil {
		dbClient = clients.GetDynamoDBClient()
	}

	item, err := attributevalue.MarshalMap(result)
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to marshal analysis run: %w", err)
	}
	item["asin"] = &types.AttributeValueMemberS{Value: result.ASIN}
	item["created_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", result.CreatedAt.Unix())}
	item["expires_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", result.CreatedAt.Add(runRetention).Unix())}

	retryCount := 0
	backoff := 500 * time.Millisecond
	for {
		_, err = dbClient.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(runsTableName()),
			Item:      item,
		})
		if err == nil {
			break
		}
		if retryCount >= 3 {
			return fmt.Errorf("[DynamoDB] Failed to store analysis run: %w", err)
		}
		retryCount++
		slog.Warn("[DynamoDB] Retrying analysis run write...",
			slog.Int("retry_attempt", retryCount),
			slog.String("run_id", result.RunID),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	slog.Info("[DynamoDB] Successfully stored analysis run",
		slog.String("run_id", result.RunID),
		slog.String("asin", result.ASIN))
	return nil
}

// GetRunsForASIN returns the stored runs for one product, newest first.
func GetRunsForASIN(ctx context.Context, asin string, limit int) ([]assembler.CombinedResult, error) {
	if dbClient == nil {
		dbClient = clients.GetDynamoDBClient()
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(runsTableName()),
		KeyConditionExpression: aws.String("asin = :asin"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":asin": &types.AttributeValueMemberS{Value: asin},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var runs []assembler.CombinedResult
	paginator := dynamodb.NewQueryPaginator(dbClient, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] Query for analysis runs failed: %w", err)
		}
		var page []assembler.CombinedResult
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal analysis run page", slog.String("error", err.Error()))
			return nil, err
		}
		runs = append(runs, page...)
		if limit > 0 && len(runs) >= limit {
			runs = runs[:limit]
			break
		}
	}
	slog.Info("[DynamoDB] Successfully retrieved analysis runs",
		slog.String("asin", asin), slog.Int("count", len(runs)))
	return runs, nil
}
