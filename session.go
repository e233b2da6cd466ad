package chatgate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Fixed user-visible replies. Raw diagnostic detail goes only to the logger,
// never into these.
const (
	replyWelcome = "Hi! I'm an AI assistant. Ask me anything.\n" +
		"You can pick a model provider with /model and see all commands with /help."
	replyHelpFormat = "Available commands:\n" +
		"/start - start a conversation\n" +
		"/model - choose the model provider\n" +
		"/clear - clear the conversation history\n" +
		"/help - show this help\n\n" +
		"You can send up to %d free requests per day. Pay for a subscription for unlimited use."
	replyCleared         = "Conversation history cleared."
	replyUnknownCommand  = "Unknown command. Use /help for the list of commands."
	replyEmptyMessage    = "I can only handle text messages."
	replyQuotaFormat     = "You have used all %d free requests for today. To continue without limits, pay here:\n%s"
	replyQuotaNoPayment  = "You have used all your free requests for today. Please try again tomorrow."
	replyPaymentFailure  = "Could not create a payment request. Please try again later."
	replyGenerateFailure = "Something went wrong while processing your request. Please resend your message."
	replyStorageFailure  = "Something went wrong on our side. Please try again later."
)

// Controller orchestrates one inbound message end to end: load or create the
// usage record, apply the quota policy, assemble the prompt, invoke the model
// gateway, and persist the outcome. Side effects are strictly ordered; a
// failed generation increments nothing and appends nothing.
type Controller struct {
	store    UsageStore
	models   *ModelGateway
	payments *EntitlementGateway
	meter    Meter
	logger   *slog.Logger
	locks    *userLocks
	now      func() time.Time

	freeLimit     int
	window        time.Duration
	historyWindow int
	preamble      string
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMeter sets the event observer.
func WithMeter(m Meter) ControllerOption {
	return func(c *Controller) { c.meter = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithFreeLimit sets the number of free requests per window.
func WithFreeLimit(n int) ControllerOption {
	return func(c *Controller) { c.freeLimit = n }
}

// WithWindow sets the quota window length.
func WithWindow(d time.Duration) ControllerOption {
	return func(c *Controller) { c.window = d }
}

// WithHistoryWindow sets the maximum number of transcript messages sent to a
// model.
func WithHistoryWindow(n int) ControllerOption {
	return func(c *Controller) { c.historyWindow = n }
}

// WithPreamble sets the pinned system instruction.
func WithPreamble(s string) ControllerOption {
	return func(c *Controller) { c.preamble = s }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController creates a session controller. payments may be nil; quota
// denials then carry no payment offer.
func NewController(store UsageStore, models *ModelGateway, payments *EntitlementGateway, opts ...ControllerOption) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("chatgate: usage store is required")
	}
	if models == nil {
		return nil, fmt.Errorf("chatgate: model gateway is required")
	}

	c := &Controller{
		store:         store,
		models:        models,
		payments:      payments,
		meter:         &noopMeter{},
		logger:        slog.Default(),
		locks:         newUserLocks(),
		now:           time.Now,
		freeLimit:     DefaultFreeLimit,
		window:        DefaultWindow,
		historyWindow: DefaultHistoryWindow,
		preamble:      DefaultPreamble,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Handle processes one inbound message and returns the single reply.
// Commands are routed to fixed handlers; everything else goes through the
// quota check and the model gateway.
func (c *Controller) Handle(ctx context.Context, in Inbound) Outbound {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Outbound{Text: replyEmptyMessage}
	}

	if strings.HasPrefix(text, "/") {
		return c.handleCommand(ctx, in.UserID, text)
	}

	return c.chat(ctx, in.UserID, text)
}

// ConfirmPayment flips the entitlement flag for a user. It is the webhook
// entry point for an external payment confirmation event.
func (c *Controller) ConfirmPayment(ctx context.Context, userID string) error {
	unlock := c.locks.acquire(userID)
	defer unlock()

	rec, err := c.store.GetOrCreate(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	rec.Paid = true
	if err := c.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	c.logger.Info("entitlement confirmed", "user", userID)
	return nil
}

func (c *Controller) chat(ctx context.Context, userID, text string) Outbound {
	unlock := c.locks.acquire(userID)
	defer unlock()

	rec, err := c.store.GetOrCreate(ctx, userID)
	if err != nil {
		c.logger.Error("load usage record failed", "user", userID, "error", err)
		return Outbound{Text: replyStorageFailure}
	}

	decision := Evaluate(rec, c.now(), c.freeLimit, c.window)
	if !decision.Allow {
		c.meter.OnDeny(DenyEvent{UserID: userID, Reason: decision.Reason, RequestCount: rec.RequestCount})
		return Outbound{Text: c.entitlementOffer(ctx, userID)}
	}

	working := rec.Transcript.WithUser(c.preamble, text)
	prompt := working.Window(c.historyWindow)

	c.meter.OnMessage(MessageEvent{
		UserID:        userID,
		Provider:      rec.SelectedProvider,
		RequestCount:  rec.RequestCount,
		TranscriptLen: len(working),
	})

	start := c.now()
	reply, err := c.models.Generate(ctx, prompt.Messages(), rec.SelectedProvider)
	duration := time.Since(start)
	if err != nil {
		c.logger.Error("generation failed", "user", userID, "error", err)
		c.meter.OnResult(ResultEvent{UserID: userID, Provider: rec.SelectedProvider, Duration: duration, Error: err})
		return Outbound{Text: replyGenerateFailure}
	}

	rec.Transcript = working.WithAssistant(reply)
	rec.RequestCount++
	if err := c.store.Save(ctx, rec); err != nil {
		c.logger.Error("save usage record failed", "user", userID, "error", err)
		return Outbound{Text: replyStorageFailure}
	}

	c.meter.OnResult(ResultEvent{
		UserID:   userID,
		Provider: rec.SelectedProvider,
		Success:  true,
		Duration: duration,
		ReplyLen: len(reply),
	})
	return Outbound{Text: reply}
}

// entitlementOffer builds the quota-exceeded reply, including a payment
// reference when one can be created. Reference creation is never retried.
func (c *Controller) entitlementOffer(ctx context.Context, userID string) string {
	if c.payments == nil {
		return replyQuotaNoPayment
	}

	ref, err := c.payments.CreateReference(ctx, "")
	if err != nil {
		return replyPaymentFailure
	}

	c.logger.Info("payment reference offered", "user", userID)
	return fmt.Sprintf(replyQuotaFormat, c.freeLimit, ref)
}

func (c *Controller) handleCommand(ctx context.Context, userID, text string) Outbound {
	fields := strings.Fields(text)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/start":
		unlock := c.locks.acquire(userID)
		defer unlock()
		if _, err := c.store.GetOrCreate(ctx, userID); err != nil {
			c.logger.Error("create usage record failed", "user", userID, "error", err)
			return Outbound{Text: replyStorageFailure}
		}
		return Outbound{Text: replyWelcome}

	case "/help":
		return Outbound{Text: fmt.Sprintf(replyHelpFormat, c.freeLimit)}

	case "/clear":
		unlock := c.locks.acquire(userID)
		defer unlock()
		rec, err := c.store.GetOrCreate(ctx, userID)
		if err != nil {
			c.logger.Error("load usage record failed", "user", userID, "error", err)
			return Outbound{Text: replyStorageFailure}
		}
		rec.Transcript = rec.Transcript.Cleared(c.preamble)
		if err := c.store.Save(ctx, rec); err != nil {
			c.logger.Error("save usage record failed", "user", userID, "error", err)
			return Outbound{Text: replyStorageFailure}
		}
		return Outbound{Text: replyCleared}

	case "/model":
		return c.handleModelCommand(ctx, userID, args)

	default:
		return Outbound{Text: replyUnknownCommand}
	}
}

func (c *Controller) handleModelCommand(ctx context.Context, userID string, args []string) Outbound {
	available := strings.Join(c.models.Names(), ", ")

	if len(args) == 0 {
		unlock := c.locks.acquire(userID)
		defer unlock()
		rec, err := c.store.GetOrCreate(ctx, userID)
		if err != nil {
			c.logger.Error("load usage record failed", "user", userID, "error", err)
			return Outbound{Text: replyStorageFailure}
		}
		current := rec.SelectedProvider
		if current == "" {
			current = c.models.Default()
		}
		return Outbound{Text: fmt.Sprintf(
			"Current model provider: %s\nAvailable: %s\nUse /model <name> to switch.", current, available)}
	}

	choice := args[0]
	if !c.models.Has(choice) {
		return Outbound{Text: fmt.Sprintf("Unknown model provider %q. Available: %s", choice, available)}
	}

	unlock := c.locks.acquire(userID)
	defer unlock()
	rec, err := c.store.GetOrCreate(ctx, userID)
	if err != nil {
		c.logger.Error("load usage record failed", "user", userID, "error", err)
		return Outbound{Text: replyStorageFailure}
	}
	rec.SelectedProvider = choice
	if err := c.store.Save(ctx, rec); err != nil {
		c.logger.Error("save usage record failed", "user", userID, "error", err)
		return Outbound{Text: replyStorageFailure}
	}
	return Outbound{Text: fmt.Sprintf("Model provider set to %s.", choice)}
}

// noopMeter is the default meter; it does nothing.
type noopMeter struct{}

func (m *noopMeter) OnMessage(MessageEvent) {}
func (m *noopMeter) OnDeny(DenyEvent)       {}
func (m *noopMeter) OnResult(ResultEvent)   {}
