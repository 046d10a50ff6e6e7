// Copyright 2026 Helix Data
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package knowledgebase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// controlAPI is the subset of the Bedrock agent control-plane SDK the client
// uses. Narrow so tests can fake it.
type controlAPI interface {
	StartIngestionJob(ctx context.Context, params *bedrockagent.StartIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error)
	GetIngestionJob(ctx context.Context, params *bedrockagent.GetIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetIngestionJobOutput, error)
}

// IngestionStats summarizes a finished ingestion job.
type IngestionStats struct {
	Scanned int64
	Indexed int64
	Failed  int64
}

// StartIngestion kicks off an ingestion job for the configured data source and
// returns its job id without waiting for completion.
func (c *Client) StartIngestion(ctx context.Context, description string) (string, error) {
	input := &bedrockagent.StartIngestionJobInput{
		KnowledgeBaseId: aws.String(c.cfg.KnowledgeBaseID),
		DataSourceId:    aws.String(c.cfg.DataSourceID),
		ClientToken:     aws.String(uuid.NewString()),
	}
	if description != "" {
		input.Description = aws.String(description)
	}

	out, err := c.control.StartIngestionJob(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to start ingestion job: %w", err)
	}

	jobID := aws.ToString(out.IngestionJob.IngestionJobId)
	c.logger.Info("ingestion job started",
		zap.String("knowledge_base_id", c.cfg.KnowledgeBaseID),
		zap.String("data_source_id", c.cfg.DataSourceID),
		zap.String("job_id", jobID),
	)
	return jobID, nil
}

// WaitForIngestion polls the ingestion job until it completes or fails.
func (c *Client) WaitForIngestion(ctx context.Context, jobID string) (*IngestionStats, error) {
	for {
		out, err := c.control.GetIngestionJob(ctx, &bedrockagent.GetIngestionJobInput{
			KnowledgeBaseId: aws.String(c.cfg.KnowledgeBaseID),
			DataSourceId:    aws.String(c.cfg.DataSourceID),
			IngestionJobId:  aws.String(jobID),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get ingestion job %s: %w", jobID, err)
		}

		job := out.IngestionJob
		switch job.Status {
		case agenttypes.IngestionJobStatusComplete:
			stats := ingestionStats(job)
			c.logger.Info("ingestion job complete",
				zap.String("job_id", jobID),
				zap.Int64("scanned", stats.Scanned),
				zap.Int64("indexed", stats.Indexed),
				zap.Int64("failed", stats.Failed),
			)
			return stats, nil

		case agenttypes.IngestionJobStatusFailed:
			return nil, fmt.Errorf("ingestion job %s failed: %s",
				jobID, strings.Join(job.FailureReasons, "; "))
		}

		c.logger.Debug("ingestion job running",
			zap.String("job_id", jobID),
			zap.String("status", string(job.Status)),
		)

		select {
		case <-time.After(c.cfg.PollInterval):
		case <-ctx.Done():
			return nil, fmt.Errorf("ingestion job %s wait cancelled: %w", jobID, ctx.Err())
		}
	}
}

func ingestionStats(job *agenttypes.IngestionJob) *IngestionStats {
	stats := &IngestionStats{}
	if job.Statistics != nil {
		stats.Scanned = aws.ToInt64(job.Statistics.NumberOfDocumentsScanned)
		stats.Indexed = aws.ToInt64(job.Statistics.NumberOfNewDocumentsIndexed)
		stats.Failed = aws.ToInt64(job.Statistics.NumberOfDocumentsFailed)
	}
	return stats
}
