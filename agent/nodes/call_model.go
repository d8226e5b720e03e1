package nodes

import (
	"context"
	"errors"
	"fmt"
	"io"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	logx "github.com/mminh007/machine-translation/pkg/logger"
)

// CallModel answers the thread log with the run's model and records the
// reply under node.
func CallModel(ctx context.Context, in *TurnState, models ModelSource, node, systemPrompt string) (*TurnState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: turn thread is nil", contractx.ErrValidation)
	}

	history, err := messagex.ToEinoAll(in.Thread.Messages)
	if err != nil {
		return nil, err
	}
	input := make([]*schema.Message, 0, len(history)+1)
	if systemPrompt != "" {
		input = append(input, schema.SystemMessage(systemPrompt))
	}
	input = append(input, history...)

	chatModel, err := models.ChatModel(ctx, in.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
	}

	reply, err := StreamReply(ctx, in, chatModel, node, input)
	if err != nil {
		return nil, err
	}

	in.Reply = reply
	in.record(node, reply)
	return in, nil
}

// StreamReply streams a completion, forwarding each non-empty chunk to the
// run feed, and returns the concatenated assistant message.
func StreamReply(
	ctx context.Context,
	in *TurnState,
	chatModel einomodel.BaseChatModel,
	node string,
	input []*schema.Message,
) (*schema.Message, error) {
	sr, err := chatModel.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
	}
	defer sr.Close()

	metadata := map[string]any{"node": node, "run_id": in.RunID}
	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content == "" {
			continue
		}
		if err := in.Emit.Emit(contractx.ChunkEvent(chunk, metadata)); err != nil {
			return nil, err
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: model returned no output", contractx.ErrModelInvoke)
	}
	reply, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: concat chunks: %w", contractx.ErrModelInvoke, err)
	}
	if reply.Role == "" {
		reply.Role = schema.Assistant
	}

	logx.FromContext(ctx).Debug().
		Str("node", node).
		Int("chunks", len(chunks)).
		Msg("model reply streamed")
	return reply, nil
}
