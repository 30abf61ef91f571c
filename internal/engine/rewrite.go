package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/llm"
)

const rewritePrompt = `Rewrite the following chat reply so it sounds warm and playful.
Keep every fact, every name, every date, every URL and every line break exactly as given.
Reply with the rewritten text only.

%s`

// Rewriter restyles outgoing replies through the language model. It fails
// open: any error, an empty result, or a missing backend returns the
// original text untouched, so a reply is never lost to tone.
type Rewriter struct {
	completer llm.Completer
}

// NewRewriter wraps completer; nil disables rewriting.
func NewRewriter(completer llm.Completer) *Rewriter {
	return &Rewriter{completer: completer}
}

// Rewrite returns the restyled reply, or text itself when rewriting is
// unavailable or fails.
func (r *Rewriter) Rewrite(ctx context.Context, text string) string {
	if r == nil || r.completer == nil || strings.TrimSpace(text) == "" {
		return text
	}

	out, err := r.completer.Complete(ctx, fmt.Sprintf(rewritePrompt, text), llm.CompletionOpts{
		MaxTokens:   config.RewriteMaxTokens,
		Temperature: config.RewriteTemperature,
		System:      config.RoleToneRewriter,
	})
	if err != nil {
		slog.Warn(config.MsgRewriteSkip,
			config.LogKeyComponent, config.CompEngine,
			config.LogKeyError, err,
		)
		return text
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return text
	}
	return out
}
