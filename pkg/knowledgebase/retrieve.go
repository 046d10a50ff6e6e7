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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/smithy-go/document"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// runtimeAPI is the subset of the Bedrock agent runtime SDK the client uses.
type runtimeAPI interface {
	Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
	RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

// Passage is one retrieved chunk.
type Passage struct {
	// Text is the chunk content
	Text string

	// Score is the retrieval relevance score
	Score float64

	// Location is the source document URI, empty if unknown
	Location string

	// Metadata holds the chunk's source metadata attributes
	Metadata map[string]interface{}
}

// Generation is a retrieval-augmented answer.
type Generation struct {
	// Answer is the generated text
	Answer string

	// SessionID continues the conversation on subsequent calls
	SessionID string

	// Sources are the passages the answer cites
	Sources []Passage
}

// RetrieveOptions tunes a Retrieve call.
type RetrieveOptions struct {
	// TopK is the number of passages to return. Default: 5.
	TopK int

	// Filter restricts retrieval by source metadata. Optional; build with
	// Equals/GreaterThan/All.
	Filter runtimetypes.RetrievalFilter
}

// Retrieve runs a vector search against the knowledge base.
func (c *Client) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]Passage, error) {
	if opts.TopK == 0 {
		opts.TopK = 5
	}

	out, err := c.runtime.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(c.cfg.KnowledgeBaseID),
		RetrievalQuery:  &runtimetypes.KnowledgeBaseQuery{Text: aws.String(query)},
		RetrievalConfiguration: &runtimetypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &runtimetypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(opts.TopK)),
				Filter:          opts.Filter,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve failed: %w", err)
	}

	passages := make([]Passage, 0, len(out.RetrievalResults))
	for _, r := range out.RetrievalResults {
		passages = append(passages, passageFromResult(r.Content, r.Location, r.Score, r.Metadata))
	}

	c.logger.Debug("retrieved passages",
		zap.String("knowledge_base_id", c.cfg.KnowledgeBaseID),
		zap.Int("count", len(passages)),
	)
	return passages, nil
}

// RetrieveAndGenerate retrieves passages and asks the configured model to
// answer from them. Pass the previous call's SessionID to continue a
// conversation; leave it empty to start a new one. A guardrail is applied to
// the generation when the client is configured with one.
func (c *Client) RetrieveAndGenerate(ctx context.Context, query, sessionID string, filter runtimetypes.RetrievalFilter) (*Generation, error) {
	if c.cfg.ModelARN == "" {
		return nil, fmt.Errorf("model ARN is required for retrieve-and-generate")
	}

	kbConfig := &runtimetypes.KnowledgeBaseRetrieveAndGenerateConfiguration{
		KnowledgeBaseId: aws.String(c.cfg.KnowledgeBaseID),
		ModelArn:        aws.String(c.cfg.ModelARN),
	}
	if filter != nil {
		kbConfig.RetrievalConfiguration = &runtimetypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &runtimetypes.KnowledgeBaseVectorSearchConfiguration{
				Filter: filter,
			},
		}
	}
	if c.cfg.GuardrailID != "" {
		kbConfig.GenerationConfiguration = &runtimetypes.GenerationConfiguration{
			GuardrailConfiguration: &runtimetypes.GuardrailConfiguration{
				GuardrailId:      aws.String(c.cfg.GuardrailID),
				GuardrailVersion: aws.String(c.cfg.GuardrailVersion),
			},
		}
	}

	input := &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &runtimetypes.RetrieveAndGenerateInput{Text: aws.String(query)},
		RetrieveAndGenerateConfiguration: &runtimetypes.RetrieveAndGenerateConfiguration{
			Type:                       runtimetypes.RetrieveAndGenerateTypeKnowledgeBase,
			KnowledgeBaseConfiguration: kbConfig,
		},
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	input.SessionId = aws.String(sessionID)

	out, err := c.runtime.RetrieveAndGenerate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("retrieve-and-generate failed: %w", err)
	}

	gen := &Generation{
		Answer:    aws.ToString(out.Output.Text),
		SessionID: aws.ToString(out.SessionId),
	}
	for _, citation := range out.Citations {
		for _, ref := range citation.RetrievedReferences {
			gen.Sources = append(gen.Sources, passageFromResult(ref.Content, ref.Location, nil, ref.Metadata))
		}
	}
	return gen, nil
}

func passageFromResult(content *runtimetypes.RetrievalResultContent, location *runtimetypes.RetrievalResultLocation, score *float64, metadata map[string]document.Interface) Passage {
	p := Passage{Metadata: decodeMetadata(metadata)}
	if content != nil {
		p.Text = aws.ToString(content.Text)
	}
	if score != nil {
		p.Score = *score
	}
	if location != nil && location.S3Location != nil {
		p.Location = aws.ToString(location.S3Location.Uri)
	}
	return p
}

// decodeMetadata unwraps smithy document values into plain Go values.
// Values that fail to decode are dropped rather than failing the retrieval.
func decodeMetadata(metadata map[string]document.Interface) map[string]interface{} {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for key, doc := range metadata {
		var value interface{}
		if err := doc.UnmarshalSmithyDocument(&value); err == nil {
			out[key] = value
		}
	}
	return out
}
