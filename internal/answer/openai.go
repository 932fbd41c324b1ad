package answer

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/openai/openai-go"

	"github.com/finsight/finrag/internal/retry"
)

// DefaultChatModel is the chat model used for answer synthesis.
const DefaultChatModel = "gpt-4o-mini"

// OpenAICompleter implements Completer against the OpenAI chat API, retrying
// transient failures with the shared retry policy.
type OpenAICompleter struct {
	client *openai.Client
	model  string
	policy retry.Policy
}

// NewOpenAICompleter creates a completer for the given chat model.
// An empty model falls back to DefaultChatModel; a zero policy to the
// standard retry settings.
func NewOpenAICompleter(client *openai.Client, model string, policy retry.Policy) *OpenAICompleter {
	if model == "" {
		model = DefaultChatModel
	}
	if policy == (retry.Policy{}) {
		policy = retry.Default()
	}
	return &OpenAICompleter{client: client, model: model, policy: policy}
}

// Complete sends the prompt as a single user message and returns the model's
// reply.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var text string

	operation := func() error {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: openai.ChatModel(c.model),
		})
		if err != nil {
			if isTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return retry.Permanent(fmt.Errorf("chat completion returned no choices"))
		}
		text = resp.Choices[0].Message.Content
		return nil
	}

	if err := c.policy.Do(ctx, operation); err != nil {
		return "", err
	}
	return text, nil
}

// isTransient reports whether a chat API error is worth retrying:
// rate limiting (429), server-side failures (5xx), and network timeouts.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
