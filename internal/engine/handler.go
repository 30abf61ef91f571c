package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/store"
)

// Sender delivers one outbound text message to an owner.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
}

// Handler runs the full turn for one inbound message: onboarding gate,
// resolution, dispatch, storage side effects, tone rewrite, delivery.
// Failures after the transport has acknowledged receipt are logged, never
// returned; storage failures end the turn without a reply, everything else
// degrades to a plainer reply.
type Handler struct {
	store    store.Store
	resolver *Resolver
	dispatch *Dispatcher
	rewriter *Rewriter
	sender   Sender
	timezone string
}

// NewHandler wires a Handler. rewriter may be nil to disable tone
// rewriting; timezone is assigned to newly onboarded users.
func NewHandler(st store.Store, resolver *Resolver, dispatch *Dispatcher, rewriter *Rewriter, sender Sender, timezone string) *Handler {
	return &Handler{
		store:    st,
		resolver: resolver,
		dispatch: dispatch,
		rewriter: rewriter,
		sender:   sender,
		timezone: timezone,
	}
}

// HandleText processes one inbound chat message.
func (h *Handler) HandleText(ctx context.Context, ownerID, profileName, text string) {
	owner := OwnerHash(ownerID)
	slog.Info(config.MsgMessageIn,
		config.LogKeyOwner, owner,
		config.LogKeyComponent, config.CompEngine,
	)

	act, welcomed, err := h.onboardingGate(ctx, ownerID, profileName)
	if err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyError, err,
			config.LogKeyOwner, owner,
			config.LogKeyComponent, config.CompEngine,
		)
		return
	}
	if !welcomed {
		act = h.resolver.Resolve(ctx, text)
	}

	h.run(ctx, ownerID, owner, act)
}

// HandleImport processes birthdays extracted from shared contact cards. A
// first-time sender still gets the welcome turn; the entries are not
// imported until the user is onboarded and shares again.
func (h *Handler) HandleImport(ctx context.Context, ownerID, profileName string, entries []nlu.Birthday) {
	owner := OwnerHash(ownerID)
	slog.Info(config.MsgMessageIn,
		config.LogKeyOwner, owner,
		config.LogKeyComponent, config.CompEngine,
	)

	act, welcomed, err := h.onboardingGate(ctx, ownerID, profileName)
	if err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyError, err,
			config.LogKeyOwner, owner,
			config.LogKeyComponent, config.CompEngine,
		)
		return
	}
	if !welcomed {
		act = Action{Kind: ActionImport, Tier: TierImport, Entries: entries, Effects: touchOnly()}
	}

	h.run(ctx, ownerID, owner, act)
}

// onboardingGate onboards a first-time sender. welcomed reports that the
// returned welcome action replaces any resolution of the message content
// for this turn.
func (h *Handler) onboardingGate(ctx context.Context, ownerID, profileName string) (Action, bool, error) {
	exists, err := h.store.UserExists(ctx, ownerID)
	if err != nil {
		return Action{}, false, err
	}
	if exists {
		return Action{}, false, nil
	}
	if err := h.store.OnboardUser(ctx, ownerID, h.timezone); err != nil {
		return Action{}, false, err
	}
	slog.Info(config.MsgOnboarded,
		config.LogKeyOwner, OwnerHash(ownerID),
		config.LogKeyComponent, config.CompEngine,
	)
	return welcomeAction(profileName), true, nil
}

func (h *Handler) run(ctx context.Context, ownerID, owner string, act Action) {
	slog.Info(config.MsgIntentResolved,
		config.LogKeyIntent, string(act.Kind),
		config.LogKeyTier, act.Tier,
		config.LogKeyOwner, owner,
		config.LogKeyComponent, config.CompEngine,
	)

	reply, err := h.dispatch.Dispatch(ctx, ownerID, act)
	if err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyError, err,
			config.LogKeyIntent, string(act.Kind),
			config.LogKeyOwner, owner,
			config.LogKeyComponent, config.CompEngine,
		)
		return
	}

	h.runEffects(ctx, ownerID, owner, act.Effects)

	reply = h.rewriter.Rewrite(ctx, reply)

	if err := h.sender.SendText(ctx, ownerID, reply); err != nil {
		slog.Error(config.MsgSendFail,
			config.LogKeyError, err,
			config.LogKeyOwner, owner,
			config.LogKeyComponent, config.CompEngine,
		)
		return
	}
	slog.Info(config.MsgReplySent,
		config.LogKeyIntent, string(act.Kind),
		config.LogKeyOwner, owner,
		config.LogKeyComponent, config.CompEngine,
	)
}

// runEffects applies storage side effects after a successful dispatch.
// Effect failures are logged and swallowed; they must not cost the user
// their reply.
func (h *Handler) runEffects(ctx context.Context, ownerID, owner string, effects []Effect) {
	for _, e := range effects {
		switch e {
		case EffectTouchInteraction:
			if err := h.store.TouchLastInteraction(ctx, ownerID); err != nil {
				slog.Warn(config.MsgTouchFail,
					config.LogKeyError, err,
					config.LogKeyOwner, owner,
					config.LogKeyComponent, config.CompEngine,
				)
			}
		case EffectMarkWelcomeSeen:
			if err := h.store.MarkWelcomeSeen(ctx, ownerID); err != nil {
				slog.Warn(config.MsgMarkFail,
					config.LogKeyError, err,
					config.LogKeyOwner, owner,
					config.LogKeyComponent, config.CompEngine,
				)
			}
		}
	}
}

// OwnerHash returns a short stable digest of the owner id for log lines,
// which never carry raw phone numbers.
func OwnerHash(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:])[:config.OwnerHashLength]
}
