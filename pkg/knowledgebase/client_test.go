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
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeControl scripts ingestion job statuses.
type fakeControl struct {
	startInput *bedrockagent.StartIngestionJobInput
	statuses   []agenttypes.IngestionJobStatus
	getCalls   int
	reasons    []string
}

func (f *fakeControl) StartIngestionJob(ctx context.Context, params *bedrockagent.StartIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error) {
	f.startInput = params
	return &bedrockagent.StartIngestionJobOutput{
		IngestionJob: &agenttypes.IngestionJob{IngestionJobId: aws.String("job-1")},
	}, nil
}

func (f *fakeControl) GetIngestionJob(ctx context.Context, params *bedrockagent.GetIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetIngestionJobOutput, error) {
	status := f.statuses[min(f.getCalls, len(f.statuses)-1)]
	f.getCalls++
	return &bedrockagent.GetIngestionJobOutput{
		IngestionJob: &agenttypes.IngestionJob{
			IngestionJobId: params.IngestionJobId,
			Status:         status,
			FailureReasons: f.reasons,
			Statistics: &agenttypes.IngestionJobStatistics{
				NumberOfDocumentsScanned:    aws.Int64(12),
				NumberOfNewDocumentsIndexed: aws.Int64(10),
				NumberOfDocumentsFailed:     aws.Int64(2),
			},
		},
	}, nil
}

// fakeRuntime records retrieval inputs and returns canned results.
type fakeRuntime struct {
	retrieveInput *bedrockagentruntime.RetrieveInput
	ragInput      *bedrockagentruntime.RetrieveAndGenerateInput
	results       []runtimetypes.KnowledgeBaseRetrievalResult
	answer        string
	citations     []runtimetypes.Citation
}

func (f *fakeRuntime) Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error) {
	f.retrieveInput = params
	return &bedrockagentruntime.RetrieveOutput{RetrievalResults: f.results}, nil
}

func (f *fakeRuntime) RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
	f.ragInput = params
	return &bedrockagentruntime.RetrieveAndGenerateOutput{
		Output:    &runtimetypes.RetrieveAndGenerateOutput{Text: aws.String(f.answer)},
		SessionId: params.SessionId,
		Citations: f.citations,
	}, nil
}

func testKBClient(t *testing.T, control controlAPI, runtime runtimeAPI, cfg Config) *Client {
	cfg.KnowledgeBaseID = "kb-1"
	cfg.DataSourceID = "ds-1"
	cfg.PollInterval = time.Millisecond
	cfg.Logger = zaptest.NewLogger(t)
	return newClient(control, runtime, cfg)
}

func TestStartIngestion(t *testing.T) {
	control := &fakeControl{}
	client := testKBClient(t, control, nil, Config{})

	jobID, err := client.StartIngestion(context.Background(), "nightly sync")
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	require.NotNil(t, control.startInput)
	assert.Equal(t, "kb-1", aws.ToString(control.startInput.KnowledgeBaseId))
	assert.Equal(t, "ds-1", aws.ToString(control.startInput.DataSourceId))
	assert.NotEmpty(t, aws.ToString(control.startInput.ClientToken))
	assert.Equal(t, "nightly sync", aws.ToString(control.startInput.Description))
}

func TestWaitForIngestion_Complete(t *testing.T) {
	control := &fakeControl{
		statuses: []agenttypes.IngestionJobStatus{
			agenttypes.IngestionJobStatusStarting,
			agenttypes.IngestionJobStatusInProgress,
			agenttypes.IngestionJobStatusComplete,
		},
	}
	client := testKBClient(t, control, nil, Config{})

	stats, err := client.WaitForIngestion(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 3, control.getCalls)
	assert.Equal(t, int64(12), stats.Scanned)
	assert.Equal(t, int64(10), stats.Indexed)
	assert.Equal(t, int64(2), stats.Failed)
}

func TestWaitForIngestion_Failed(t *testing.T) {
	control := &fakeControl{
		statuses: []agenttypes.IngestionJobStatus{agenttypes.IngestionJobStatusFailed},
		reasons:  []string{"access denied to source bucket"},
	}
	client := testKBClient(t, control, nil, Config{})

	_, err := client.WaitForIngestion(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestRetrieve(t *testing.T) {
	runtime := &fakeRuntime{
		results: []runtimetypes.KnowledgeBaseRetrievalResult{
			{
				Content: &runtimetypes.RetrievalResultContent{Text: aws.String("revenue grew 12%")},
				Score:   aws.Float64(0.91),
				Location: &runtimetypes.RetrievalResultLocation{
					S3Location: &runtimetypes.RetrievalResultS3Location{
						Uri: aws.String("s3://docs/q3-report.pdf"),
					},
				},
				Metadata: map[string]document.Interface{
					"year": document.NewLazyDocument("2025"),
				},
			},
		},
	}
	client := testKBClient(t, nil, runtime, Config{})

	passages, err := client.Retrieve(context.Background(), "how did revenue change?", RetrieveOptions{
		TopK:   3,
		Filter: Equals("department", "finance"),
	})
	require.NoError(t, err)

	require.Len(t, passages, 1)
	assert.Equal(t, "revenue grew 12%", passages[0].Text)
	assert.Equal(t, 0.91, passages[0].Score)
	assert.Equal(t, "s3://docs/q3-report.pdf", passages[0].Location)
	assert.Equal(t, "2025", passages[0].Metadata["year"])

	// request carried top-k and the metadata filter
	vector := runtime.retrieveInput.RetrievalConfiguration.VectorSearchConfiguration
	assert.Equal(t, int32(3), aws.ToInt32(vector.NumberOfResults))
	require.IsType(t, &runtimetypes.RetrievalFilterMemberEquals{}, vector.Filter)
}

func TestRetrieveAndGenerate(t *testing.T) {
	runtime := &fakeRuntime{
		answer: "Revenue grew 12% in Q3.",
		citations: []runtimetypes.Citation{
			{
				RetrievedReferences: []runtimetypes.RetrievedReference{
					{
						Content: &runtimetypes.RetrievalResultContent{Text: aws.String("revenue grew 12%")},
						Location: &runtimetypes.RetrievalResultLocation{
							S3Location: &runtimetypes.RetrievalResultS3Location{
								Uri: aws.String("s3://docs/q3-report.pdf"),
							},
						},
					},
				},
			},
		},
	}
	client := testKBClient(t, nil, runtime, Config{
		ModelARN:         "arn:aws:bedrock:us-west-2::foundation-model/test",
		GuardrailID:      "gr-1",
		GuardrailVersion: "1",
	})

	gen, err := client.RetrieveAndGenerate(context.Background(), "how did revenue change?", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew 12% in Q3.", gen.Answer)
	assert.NotEmpty(t, gen.SessionID)
	require.Len(t, gen.Sources, 1)
	assert.Equal(t, "s3://docs/q3-report.pdf", gen.Sources[0].Location)

	// generation carries the guardrail configuration
	kbConfig := runtime.ragInput.RetrieveAndGenerateConfiguration.KnowledgeBaseConfiguration
	require.NotNil(t, kbConfig.GenerationConfiguration)
	assert.Equal(t, "gr-1", aws.ToString(kbConfig.GenerationConfiguration.GuardrailConfiguration.GuardrailId))
}

func TestRetrieveAndGenerate_SessionContinuity(t *testing.T) {
	runtime := &fakeRuntime{answer: "answer"}
	client := testKBClient(t, nil, runtime, Config{ModelARN: "arn:model"})

	gen, err := client.RetrieveAndGenerate(context.Background(), "follow-up", "session-7", nil)
	require.NoError(t, err)
	assert.Equal(t, "session-7", gen.SessionID)
}

func TestRetrieveAndGenerate_RequiresModel(t *testing.T) {
	client := testKBClient(t, nil, &fakeRuntime{}, Config{})

	_, err := client.RetrieveAndGenerate(context.Background(), "q", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model ARN")
}

func TestFilterBuilders(t *testing.T) {
	eq := Equals("year", 2025)
	member, ok := eq.(*runtimetypes.RetrievalFilterMemberEquals)
	require.True(t, ok)
	assert.Equal(t, "year", aws.ToString(member.Value.Key))

	all := All(Equals("a", 1), GreaterThan("b", 2))
	andAll, ok := all.(*runtimetypes.RetrievalFilterMemberAndAll)
	require.True(t, ok)
	assert.Len(t, andAll.Value, 2)

	anyOf := Any(Equals("a", 1), Equals("a", 2))
	orAll, ok := anyOf.(*runtimetypes.RetrievalFilterMemberOrAll)
	require.True(t, ok)
	assert.Len(t, orAll.Value, 2)
}
