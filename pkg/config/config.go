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
// Package config loads environment-driven agent configuration.
// Every key can be set through a ROCKBOT_ environment variable,
// e.g. broker.host -> ROCKBOT_BROKER_HOST.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for a rockbot agent host.
// Priority: env vars > defaults.
type Config struct {
	// DataDir is the agent data directory (computed from ROCKBOT_DATA_DIR
	// or ~/.rockbot). Set during load, not read from config keys.
	DataDir string `mapstructure:"-"`

	Agent     AgentConfig     `mapstructure:"agent"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AgentConfig identifies the agent on the bus.
type AgentConfig struct {
	// Name is the agent identity used in envelope sources, queue names,
	// and reply payloads.
	Name string `mapstructure:"name"`

	// UserProxy is the topic base for user-facing traffic
	// (<userProxy>.userResponse and friends).
	UserProxy string `mapstructure:"user_proxy"`
}

// BrokerConfig configures the AMQP connection.
type BrokerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`

	// Exchange is the durable topic exchange all traffic flows through.
	Exchange string `mapstructure:"exchange"`

	// DeadLetterExchange receives messages that exhaust handling.
	DeadLetterExchange string `mapstructure:"dead_letter_exchange"`

	// QueuePrefix namespaces durable queues per deployment.
	QueuePrefix string `mapstructure:"queue_prefix"`

	Prefetch int `mapstructure:"prefetch"`
}

// URL renders the amqp connection string.
func (b BrokerConfig) URL() string {
	vhost := strings.TrimPrefix(b.VHost, "/")
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", b.Username, b.Password, b.Host, b.Port, vhost)
}

// LLMConfig configures the chat model endpoints.
type LLMConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`

	// SummaryModel is the cheaper tier used for summarization and
	// scheduled work. Falls back to Model when empty.
	SummaryModel string `mapstructure:"summary_model"`

	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// MemoryConfig tunes the in-process stores.
type MemoryConfig struct {
	WorkingTTLMinutes  int `mapstructure:"working_ttl_minutes"`
	MaxHistoryTurns    int `mapstructure:"max_history_turns"`
	HistoryTokenBudget int `mapstructure:"history_token_budget"`
}

// WorkingTTL returns the working-memory default TTL.
func (m MemoryConfig) WorkingTTL() time.Duration {
	return time.Duration(m.WorkingTTLMinutes) * time.Minute
}

// ToolsConfig carries builtin tool credentials and limits.
type ToolsConfig struct {
	// APIKeys maps a tool name to its credential,
	// e.g. ROCKBOT_TOOLS_API_KEYS_WEB_SEARCH.
	APIKeys map[string]string `mapstructure:"api_keys"`

	InvokeTimeoutSeconds int `mapstructure:"invoke_timeout_seconds"`
}

// SchedulerConfig controls recurring prompts.
type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	HeartbeatCron string `mapstructure:"heartbeat_cron"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP HTTP collector, host:port.
	Endpoint string `mapstructure:"endpoint"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the environment and applies defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ROCKBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys through
	// Unmarshal, so bind every defaulted key explicitly.
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.DataDir = GetDataDir()

	if cfg.Agent.Name == "" {
		return nil, fmt.Errorf("agent name is required (ROCKBOT_AGENT_NAME)")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.name", "")
	v.SetDefault("agent.user_proxy", "user")

	v.SetDefault("broker.host", "localhost")
	v.SetDefault("broker.port", 5672)
	v.SetDefault("broker.username", "guest")
	v.SetDefault("broker.password", "guest")
	v.SetDefault("broker.vhost", "/")
	v.SetDefault("broker.exchange", "rockbot")
	v.SetDefault("broker.dead_letter_exchange", "rockbot.dlx")
	v.SetDefault("broker.queue_prefix", "rockbot")
	v.SetDefault("broker.prefetch", 8)

	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.summary_model", "")
	v.SetDefault("llm.request_timeout_seconds", 120)

	v.SetDefault("memory.working_ttl_minutes", 30)
	v.SetDefault("memory.max_history_turns", 20)
	v.SetDefault("memory.history_token_budget", 24000)

	v.SetDefault("tools.invoke_timeout_seconds", 60)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.heartbeat_cron", "*/30 * * * *")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
