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
package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
)

// OnHistoryRequest serves a session's recorded turns back to the
// requesting proxy.
func (o *Orchestrator) OnHistoryRequest(ctx context.Context, env *bus.Envelope, msg messages.ConversationHistoryRequest) bus.MessageResult {
	if o.conversation == nil || env.ReplyTo == "" {
		return bus.Ack
	}
	turns, err := o.conversation.GetTurns(ctx, msg.SessionID)
	if err != nil {
		o.logger.Error("Failed to load history", zap.String("session", msg.SessionID), zap.Error(err))
		return bus.Retry
	}
	if msg.MaxTurns > 0 && len(turns) > msg.MaxTurns {
		turns = turns[len(turns)-msg.MaxTurns:]
	}

	out := make([]messages.HistoryTurn, 0, len(turns))
	for _, turn := range turns {
		out = append(out, messages.HistoryTurn{
			Role:      turn.Role,
			Content:   turn.Content,
			Timestamp: turn.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	reply, err := bus.ToEnvelope(ctx, messages.TypeConversationHistoryResponse, messages.ConversationHistoryResponse{
		SessionID: msg.SessionID,
		Turns:     out,
	}, o.name, bus.WithCorrelationID(env.CorrelationID))
	if err != nil {
		o.logger.Error("Failed to encode history response", zap.Error(err))
		return bus.DeadLetter
	}
	if err := o.publisher.Publish(ctx, env.ReplyTo, reply); err != nil {
		o.logger.Error("Failed to publish history response", zap.Error(err))
		return bus.Retry
	}
	return bus.Ack
}
