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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/helix-data/quill/internal/log"
	"github.com/helix-data/quill/pkg/guardrail"
)

var guardrailAsOutput bool

var guardrailCmd = &cobra.Command{
	Use:   "guardrail",
	Short: "Work with Bedrock guardrails",
}

var guardrailCheckCmd = &cobra.Command{
	Use:   "check <text>",
	Short: "Assess text against the configured guardrail",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGuardrailCheck,
}

func init() {
	guardrailCheckCmd.Flags().BoolVar(&guardrailAsOutput, "output", false, "assess as model output instead of user input")
	guardrailCmd.AddCommand(guardrailCheckCmd)
}

func runGuardrailCheck(cmd *cobra.Command, args []string) error {
	guardrailID := viper.GetString("guardrail.id")
	if guardrailID == "" {
		return fmt.Errorf("no guardrail configured (set guardrail.id in config or QUILL_GUARDRAIL_ID)")
	}
	version := viper.GetString("guardrail.version")
	if version == "" {
		version = "DRAFT"
	}

	awsCfg, err := loadAWSConfig(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := guardrail.NewClient(awsCfg, guardrail.Config{
		GuardrailID:      guardrailID,
		GuardrailVersion: version,
		Logger:           log.Logger(),
	})

	source := guardrail.SourceInput
	if guardrailAsOutput {
		source = guardrail.SourceOutput
	}

	assessment, err := client.Check(cmd.Context(), strings.Join(args, " "), source)
	if err != nil {
		return err
	}

	if !assessment.Intervened {
		fmt.Println("PASSED: guardrail did not intervene")
		return nil
	}
	fmt.Println("INTERVENED:")
	fmt.Println(assessment.Output)
	return nil
}
