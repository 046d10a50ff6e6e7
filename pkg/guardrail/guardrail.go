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
// Package guardrail assesses text against a Bedrock guardrail.
package guardrail

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.uber.org/zap"
)

// Source tells the guardrail whether the text is user input or model output;
// policies can differ between the two.
type Source string

const (
	SourceInput  Source = "INPUT"
	SourceOutput Source = "OUTPUT"
)

// applyAPI is the subset of the Bedrock runtime SDK the client uses.
type applyAPI interface {
	ApplyGuardrail(ctx context.Context, params *bedrockruntime.ApplyGuardrailInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error)
}

// Config holds configuration for the guardrail client.
type Config struct {
	// GuardrailID identifies the guardrail. Required.
	GuardrailID string

	// GuardrailVersion is the guardrail version, e.g. "1" or "DRAFT". Required.
	GuardrailVersion string

	// Logger for assessment events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Client applies one configured guardrail to text.
type Client struct {
	api    applyAPI
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a guardrail client from an AWS config.
func NewClient(awsCfg aws.Config, cfg Config) *Client {
	return newClient(bedrockruntime.NewFromConfig(awsCfg), cfg)
}

func newClient(api applyAPI, cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{api: api, cfg: cfg, logger: cfg.Logger}
}

// Assessment is the guardrail's verdict on a piece of text.
type Assessment struct {
	// Intervened reports whether any policy blocked or masked the text
	Intervened bool

	// Output is the guardrail's rewritten text (masked or the configured
	// blocked message) when it intervened, empty otherwise
	Output string
}

// Check assesses text against the guardrail.
func (c *Client) Check(ctx context.Context, text string, source Source) (*Assessment, error) {
	contentSource := types.GuardrailContentSourceInput
	if source == SourceOutput {
		contentSource = types.GuardrailContentSourceOutput
	}

	out, err := c.api.ApplyGuardrail(ctx, &bedrockruntime.ApplyGuardrailInput{
		GuardrailIdentifier: aws.String(c.cfg.GuardrailID),
		GuardrailVersion:    aws.String(c.cfg.GuardrailVersion),
		Source:              contentSource,
		Content: []types.GuardrailContentBlock{
			&types.GuardrailContentBlockMemberText{
				Value: types.GuardrailTextBlock{Text: aws.String(text)},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("guardrail assessment failed: %w", err)
	}

	assessment := &Assessment{
		Intervened: out.Action == types.GuardrailActionGuardrailIntervened,
	}
	if assessment.Intervened {
		var parts []string
		for _, output := range out.Outputs {
			if t := aws.ToString(output.Text); t != "" {
				parts = append(parts, t)
			}
		}
		assessment.Output = strings.Join(parts, "\n")
	}

	c.logger.Debug("guardrail assessment",
		zap.String("guardrail_id", c.cfg.GuardrailID),
		zap.String("source", string(source)),
		zap.Bool("intervened", assessment.Intervened),
	)
	return assessment, nil
}
