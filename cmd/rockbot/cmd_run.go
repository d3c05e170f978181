// Copyright 2026 Teradata
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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/internal/log"
	"github.com/teradata-labs/rockbot/internal/telemetry"
	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/config"
	"github.com/teradata-labs/rockbot/pkg/host"
	"github.com/teradata-labs/rockbot/pkg/llm/openai"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an agent host from the environment and data volume",
	Long: `Run connects to the message broker, loads the agent profile and
configuration from the data volume, and serves user messages, tool
invocations, MCP bridging, and agent-to-agent tasks until interrupted.`,
	RunE: runAgent,
}

func init() {
	runCmd.Flags().Bool("bridge-only", false, "host only the MCP bridge, no orchestrator")
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log.SetLogger(log.New(cfg.Logging.Level, cfg.Logging.Format))
	defer func() { _ = log.Sync() }()
	logger := log.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryEndpoint := ""
	if cfg.Telemetry.Enabled {
		telemetryEndpoint = cfg.Telemetry.Endpoint
	}
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "rockbot-" + cfg.Agent.Name,
		Endpoint:    telemetryEndpoint,
		Insecure:    true,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(flushCtx)
	}()

	broker, err := bus.DialAMQP(bus.AMQPConfig{
		URL:                cfg.Broker.URL(),
		Exchange:           cfg.Broker.Exchange,
		DeadLetterExchange: cfg.Broker.DeadLetterExchange,
		QueuePrefix:        cfg.Broker.QueuePrefix,
		Prefetch:           cfg.Broker.Prefetch,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}

	volume := config.NewDataVolume(cfg.DataDir)
	builder := host.NewBuilder(broker).
		WithIdentity(cfg.Agent.Name).
		WithLogger(logger).
		WithDataVolume(volume).
		WithUserProxy(cfg.Agent.UserProxy).
		WithWorkingTTL(cfg.Memory.WorkingTTL()).
		WithToolTimeout(time.Duration(cfg.Tools.InvokeTimeoutSeconds) * time.Second).
		WithLimits(cfg.Memory.MaxHistoryTurns, cfg.Memory.HistoryTokenBudget, 0, 0).
		AddMcpBridge()

	bridgeOnly, _ := cmd.Flags().GetBool("bridge-only")
	if !bridgeOnly {
		if cfg.LLM.Model == "" {
			return fmt.Errorf("llm model is required (ROCKBOT_LLM_MODEL), or pass --bridge-only")
		}
		chat := openai.NewClient(openai.Config{
			APIKey:   cfg.LLM.APIKey,
			Model:    cfg.LLM.Model,
			Endpoint: cfg.LLM.Endpoint,
			Timeout:  time.Duration(cfg.LLM.RequestTimeoutSeconds) * time.Second,
		})
		builder = builder.
			WithChatClient(chat).
			WithProfile().
			WithMemory().
			WithConversationLog().
			WithFeedback().
			WithSkills().
			WithRules().
			AddToolHandler().
			AddMcpToolProxy().
			AddA2A().
			AddSubagents()
		if cfg.Scheduler.Enabled {
			builder = builder.AddHeartbeat(cfg.Scheduler.HeartbeatCron)
		}
	}

	h, err := builder.Build()
	if err != nil {
		return fmt.Errorf("building host: %w", err)
	}
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("starting host: %w", err)
	}

	log.Info("Agent running",
		zap.String("agent", cfg.Agent.Name),
		zap.String("dataDir", cfg.DataDir),
		zap.Bool("bridgeOnly", bridgeOnly))

	<-ctx.Done()
	log.Info("Shutting down")
	h.Stop()
	return nil
}
