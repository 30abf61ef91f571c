package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/engine"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/llm"
)

type capturingCompleter struct {
	prompt string
	opts   llm.CompletionOpts
	reply  string
	err    error
}

func (c *capturingCompleter) Complete(_ context.Context, prompt string, opts llm.CompletionOpts) (string, error) {
	c.prompt, c.opts = prompt, opts
	return c.reply, c.err
}

func (c *capturingCompleter) Name() string { return "capture" }

func TestRewrite_UsesModelOutput(t *testing.T) {
	c := &capturingCompleter{reply: "Noted with confetti! 🎊 Tanni - 9 Feb"}
	r := engine.NewRewriter(c)

	out := r.Rewrite(context.Background(), "Saved! 🎂 Tanni - 9 Feb")

	assert.Equal(t, "Noted with confetti! 🎊 Tanni - 9 Feb", out)
	assert.Contains(t, c.prompt, "Saved! 🎂 Tanni - 9 Feb")
	assert.Equal(t, config.RewriteMaxTokens, c.opts.MaxTokens)
	assert.InDelta(t, config.RewriteTemperature, c.opts.Temperature, 0.0001)
	assert.Equal(t, config.RoleToneRewriter, c.opts.System)
}

// Any failure hands back the original text; a reply is never lost to tone.
func TestRewrite_FailsOpen(t *testing.T) {
	original := "Saved! 🎂 Tanni - 9 Feb"

	errored := engine.NewRewriter(&capturingCompleter{err: assert.AnError})
	assert.Equal(t, original, errored.Rewrite(context.Background(), original))

	blank := engine.NewRewriter(&capturingCompleter{reply: "   \n"})
	assert.Equal(t, original, blank.Rewrite(context.Background(), original))
}

func TestRewrite_NilSafe(t *testing.T) {
	var r *engine.Rewriter
	assert.Equal(t, "hi", r.Rewrite(context.Background(), "hi"))

	disabled := engine.NewRewriter(nil)
	assert.Equal(t, "hi", disabled.Rewrite(context.Background(), "hi"))
}
