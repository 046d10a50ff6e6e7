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
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/helix-data/quill/internal/log"
	"github.com/helix-data/quill/pkg/agent"
	"github.com/helix-data/quill/pkg/athena"
	"github.com/helix-data/quill/pkg/invoker"
	"github.com/helix-data/quill/pkg/llm/bedrock"
)

var (
	askDatabase   string
	askWorkgroup  string
	askOutput     string
	askModel      string
	askMaxRetries int
	askBaseDelay  time.Duration
	askShowQuery  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a natural-language question against an Athena database",
	Long: `Ask runs the SQL agent: the model inspects the database schema, writes and
executes SQL on Athena, and answers from the result. The whole agent call is
retried with backoff when the service throttles or fails transiently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askDatabase, "database", "d", "", "Athena database to query")
	askCmd.Flags().StringVar(&askWorkgroup, "workgroup", "", "Athena workgroup")
	askCmd.Flags().StringVar(&askOutput, "output-location", "", "S3 URI for Athena query results")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Bedrock model ID")
	askCmd.Flags().IntVar(&askMaxRetries, "max-retries", 0, "retries after the initial agent attempt")
	askCmd.Flags().DurationVar(&askBaseDelay, "base-delay", 0, "base retry delay")
	askCmd.Flags().BoolVar(&askShowQuery, "show-query", true, "print the SQL the agent ran")

	_ = viper.BindPFlag("database", askCmd.Flags().Lookup("database"))
	_ = viper.BindPFlag("workgroup", askCmd.Flags().Lookup("workgroup"))
	_ = viper.BindPFlag("output_location", askCmd.Flags().Lookup("output-location"))
	_ = viper.BindPFlag("model", askCmd.Flags().Lookup("model"))
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	database := viper.GetString("database")
	if database == "" {
		return fmt.Errorf("no Athena database configured (use --database or set database in config)")
	}

	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	provider, err := bedrock.NewClient(bedrock.Config{
		Region:  viper.GetString("region"),
		Profile: viper.GetString("profile"),
		ModelID: viper.GetString("model"),
		Logger:  log.Logger(),
	})
	if err != nil {
		return fmt.Errorf("failed to create Bedrock client: %w", err)
	}

	db := athena.NewClient(awsCfg, athena.Config{
		Database:       database,
		Workgroup:      viper.GetString("workgroup"),
		OutputLocation: viper.GetString("output_location"),
		Logger:         log.Logger(),
	})

	sqlAgent := agent.NewSQLAgent(provider, agent.DatabaseTools(db), agent.Config{
		Logger: log.Logger(),
	})

	inv := invoker.New(sqlAgent, invoker.Config{
		MaxRetries: askMaxRetries,
		BaseDelay:  askBaseDelay,
		Logger:     log.Logger(),
	})

	result := inv.Invoke(ctx, question)

	if askShowQuery && result.Query != "" {
		fmt.Printf("Query:\n%s\n\n", result.Query)
	}
	fmt.Println(result.Message)
	return nil
}
