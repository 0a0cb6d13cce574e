package summarize

import (
	"context"
	"strings"

	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/model"
)

const titleInstructions = `Generate a short title (at most six words) for a
conversation that starts with the user message below. Reply with the title
only, no quotes.`

// GenerateTitle produces a thread title from the first user message with a
// single dedicated model invocation.
func GenerateTitle(ctx context.Context, m model.Model, firstMessage string) (string, error) {
	req := model.Request{
		Instructions: titleInstructions,
		Messages:     []core.Message{core.NewUserMessage(firstMessage)},
		Internal:     true,
	}
	msg, err := model.Final(ctx, m, req)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(msg.Content), `"`), nil
}
