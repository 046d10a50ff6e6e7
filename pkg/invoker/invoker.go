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
// Package invoker wraps a single logical agent call with bounded retries.
//
// Throttling faults back off more aggressively than other faults, but every
// fault kind is retried up to the configured limit; classification changes the
// delay and the terminal message, not retry eligibility. No fault ever escapes
// to the caller: once retries are exhausted the invoker returns a
// human-readable failure message instead.
package invoker

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helix-data/quill/pkg/agent"
)

// Agent is the external callable being wrapped. It may perform any number of
// internal tool calls before returning its final response.
type Agent interface {
	Run(ctx context.Context, task string) (*agent.Response, error)
}

// Default configuration values.
const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 5 * time.Second
	DefaultMaxDelay   = 60 * time.Second
)

// throttledMessage is the terminal message for throttling failures.
const throttledMessage = "The service is currently experiencing high demand. " +
	"Please wait a few minutes and try again, or reduce the frequency of your requests."

// Config holds configuration for the invoker.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt. Default: 5.
	MaxRetries int

	// BaseDelay seeds both backoff curves. Default: 5s.
	BaseDelay time.Duration

	// MaxDelay caps every computed delay. Default: 60s.
	MaxDelay time.Duration

	// Logger for attempt-level events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Result is the invocation outcome. Exactly one shape is ever produced: on
// success Message carries the agent's answer and Query its SQL artifact (which
// may be empty even then, if the agent answered without running a query); on
// exhaustion Message carries the failure explanation and Query is empty.
// There is no separate status field.
type Result struct {
	// Query is the SQL statement the agent generated, empty if none
	Query string

	// Message is the agent's answer, or the terminal failure explanation
	Message string
}

// Invoker retries a single agent call with classified backoff. Each logical
// task needs its own Invoke call; the invoker itself holds no per-call state
// and is safe for concurrent use.
type Invoker struct {
	agent  Agent
	cfg    Config
	logger *zap.Logger

	// wait is swapped out by tests; it returns false if ctx ended first.
	wait func(ctx context.Context, d time.Duration) bool
}

// New creates an invoker around the given agent.
func New(a Agent, cfg Config) *Invoker {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Invoker{
		agent:  a,
		cfg:    cfg,
		logger: cfg.Logger,
		wait:   sleep,
	}
}

// Invoke runs one logical task through the agent, retrying failed attempts
// until one succeeds or the retry budget is spent. It never returns an error;
// every exit path yields a Result.
func (inv *Invoker) Invoke(ctx context.Context, task string) *Result {
	var lastErr error
	attempts := 0
	cancelled := false

	for attempt := 0; attempt <= inv.cfg.MaxRetries; attempt++ {
		attempts++
		resp, err := inv.agent.Run(ctx, task)
		if err == nil {
			if attempt > 0 {
				inv.logger.Info("agent call succeeded after retry",
					zap.Int("attempt", attempt+1),
				)
			}
			return &Result{Query: resp.Query, Message: resp.Answer}
		}

		lastErr = err

		// Final attempt failed: exit without sleeping.
		if attempt == inv.cfg.MaxRetries {
			break
		}

		throttled := isThrottling(err)
		delay := inv.backoff(attempt+1, throttled)

		inv.logger.Warn("agent call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", inv.cfg.MaxRetries),
			zap.Bool("throttled", throttled),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if !inv.wait(ctx, delay) {
			cancelled = true
			break
		}
	}

	inv.logger.Error("agent retries exhausted",
		zap.Int("max_retries", inv.cfg.MaxRetries),
		zap.Error(lastErr),
	)

	if isThrottling(lastErr) {
		return &Result{Message: throttledMessage}
	}

	// On a cancelled wait the message reports the attempts actually made, not
	// the full retry budget.
	count := inv.cfg.MaxRetries
	if cancelled {
		count = attempts
	}
	return &Result{Message: fmt.Sprintf(
		"Unable to get a response from the agent after %d attempts. Error: %v",
		count, lastErr,
	)}
}

// backoff computes the delay after the attempt-th failed attempt (1-based).
// Throttling faults grow 4x per attempt with up to 2s of jitter; everything
// else grows 2x with up to 1s. Both curves are capped at MaxDelay.
func (inv *Invoker) backoff(attempt int, throttled bool) time.Duration {
	growth, jitter := 2.0, 1.0
	if throttled {
		growth, jitter = 4.0, 2.0
	}

	seconds := inv.cfg.BaseDelay.Seconds()*math.Pow(growth, float64(attempt-1)) +
		rand.Float64()*jitter
	delay := time.Duration(seconds * float64(time.Second))
	if delay > inv.cfg.MaxDelay {
		delay = inv.cfg.MaxDelay
	}
	return delay
}

// isThrottling reports whether the fault description carries one of the two
// rate-limit markers the Bedrock and Athena SDKs emit.
func isThrottling(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "ThrottlingException") ||
		strings.Contains(msg, "TooManyRequestsException")
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
