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
// Package knowledgebase drives Bedrock knowledge bases: ingestion jobs,
// retrieval, and retrieval-augmented generation.
package knowledgebase

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"go.uber.org/zap"
)

// Config holds configuration for the knowledge base client.
type Config struct {
	// KnowledgeBaseID identifies the knowledge base. Required.
	KnowledgeBaseID string

	// DataSourceID identifies the data source for ingestion jobs.
	// Required for Ingest/WaitForIngestion.
	DataSourceID string

	// ModelARN is the generation model for RetrieveAndGenerate.
	ModelARN string

	// GuardrailID and GuardrailVersion, when set, apply a guardrail to
	// generated answers.
	GuardrailID      string
	GuardrailVersion string

	// PollInterval between ingestion job status checks. Default: 5s.
	PollInterval time.Duration

	// Logger for lifecycle events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Client wraps the Bedrock agent control-plane and runtime APIs for one
// knowledge base.
type Client struct {
	control controlAPI
	runtime runtimeAPI
	cfg     Config
	logger  *zap.Logger
}

// NewClient creates a knowledge base client from an AWS config.
func NewClient(awsCfg aws.Config, cfg Config) *Client {
	return newClient(
		bedrockagent.NewFromConfig(awsCfg),
		bedrockagentruntime.NewFromConfig(awsCfg),
		cfg,
	)
}

func newClient(control controlAPI, runtime runtimeAPI, cfg Config) *Client {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{control: control, runtime: runtime, cfg: cfg, logger: cfg.Logger}
}
