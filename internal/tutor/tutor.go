// Package tutor runs one question/answer cycle against the active chat and
// the chat management commands shared by the REPL, the CLI and the HTTP
// server. A Tutor is not safe for concurrent use; callers serialize access.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/chat"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/config"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/export"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/guard"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/provider"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/session"
)

const defaultSystemPrompt = `You are dstutor, a patient data science tutor.
Explain statistics, machine learning, data analysis and the surrounding tooling
(Python, pandas, NumPy, scikit-learn, SQL, visualization) clearly and accurately.

<teaching_style>
- Start with the intuition, then give the precise definition.
- Use short worked examples. Put runnable code in fenced python blocks.
- Point out common mistakes and how to detect them.
- When a question is ambiguous, state your assumption in one sentence and answer.
- Keep answers focused; offer to go deeper instead of writing everything at once.
</teaching_style>

<boundaries>
- Stay on data science and closely related programming topics.
- Never invent library functions or parameters. If unsure, say so.
</boundaries>`

// ErrEmptyQuestion is returned by Ask for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// ProviderFactory creates a Provider from a config. Used for /provider hot-swap.
type ProviderFactory func(cfg *config.Config) (provider.Provider, error)

// Result describes one Ask call.
type Result struct {
	// Chat is the conversation the question was recorded in. Empty when
	// Blocked.
	Chat string

	// Reply is the text shown to the user: the model's answer, the error
	// notice recorded for a failed call, the topic refusal or the filter
	// notice.
	Reply string

	// Blocked is set when the term filter rejected the question. Nothing
	// was recorded.
	Blocked bool

	// Refused is set when the topic gate answered with a refusal. The model
	// was not called and nothing was persisted.
	Refused bool

	// RemoteErr is the model failure behind an error notice, if any.
	RemoteErr error

	// PersistErr is set when the exchange could not be written to the sink.
	// The exchange is still kept in memory.
	PersistErr error

	Usage *provider.Usage

	// Turns is the length of the chat after the exchange.
	Turns int
}

// Tutor couples the session store with a model provider.
type Tutor struct {
	provider     provider.Provider
	store        *session.Store
	config       *config.Config
	mode         chat.HistoryMode
	filter       guard.Gate // applied before the question is recorded
	topic        guard.Gate // applied before the model is called
	basePrompt   string
	systemPrompt string
	factory      ProviderFactory
	logger       *slog.Logger
}

// New builds a Tutor from cfg. The store should already be loaded.
func New(p provider.Provider, store *session.Store, cfg *config.Config) (*Tutor, error) {
	mode, err := chat.ParseHistoryMode(cfg.Tutor.HistoryMode)
	if err != nil {
		return nil, err
	}

	terms := append(append([]string(nil), guard.DefaultBlockedTerms...), cfg.Guard.BlockedTerms...)
	t := &Tutor{
		provider:   p,
		store:      store,
		config:     cfg,
		mode:       mode,
		filter:     guard.NewTermFilter(terms),
		basePrompt: defaultSystemPrompt,
		logger:     slog.Default(),
	}
	if cfg.Tutor.TopicGate {
		keywords := cfg.Tutor.TopicKeywords
		if len(keywords) == 0 {
			keywords = guard.DefaultTopicKeywords
		}
		t.topic = guard.NewTopicGate(keywords, cfg.Tutor.Refusal)
	}
	if cfg.SystemPrompt != "" {
		t.basePrompt = cfg.SystemPrompt
	}
	t.rebuildSystemPrompt()
	return t, nil
}

// SetLogger replaces the default slog logger.
func (t *Tutor) SetLogger(l *slog.Logger) { t.logger = l }

// SetProviderFactory enables /provider hot-swap.
func (t *Tutor) SetProviderFactory(f ProviderFactory) { t.factory = f }

// Store returns the underlying session store.
func (t *Tutor) Store() *session.Store { return t.store }

// Provider returns the active provider.
func (t *Tutor) Provider() provider.Provider { return t.provider }

// Model returns the model requests are sent to.
func (t *Tutor) Model() string {
	if t.config.Model != "" {
		return t.config.Model
	}
	return t.provider.DefaultModel()
}

// rebuildSystemPrompt appends an identity suffix to basePrompt.
// Call after changing provider or model.
func (t *Tutor) rebuildSystemPrompt() {
	t.systemPrompt = t.basePrompt + fmt.Sprintf(
		"\n\nYou are powered by %s (model: %s). "+
			"When asked about your identity, state these facts.",
		t.provider.Name(), t.Model())
}

// Ask records text as a question in the active chat (creating one if the
// store is empty), obtains the answer and persists the exchange.
//
// Model failures do not return an error: the chat gains an error notice and
// Result.RemoteErr is set. If ctx is cancelled while the model call is in
// flight the question is abandoned: it is removed from the chat and
// chat.ErrAbandoned is returned.
func (t *Tutor) Ask(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}

	if v := t.filter.Check(text); !v.Allowed() {
		return &Result{Blocked: true, Reply: v.Reason}, nil
	}

	conv := t.store.EnsureActive("")
	ticket, err := conv.Log.AppendUser(text)
	if err != nil {
		return nil, err
	}
	res := &Result{Chat: conv.Name}

	if t.topic != nil {
		if v := t.topic.Check(text); !v.Allowed() {
			if _, err := conv.Log.CommitReply(ticket, v.Reason, nil); err != nil {
				return nil, err
			}
			res.Refused = true
			res.Reply = v.Reason
			res.Turns = conv.Log.Len()
			return res, nil
		}
	}

	req := &provider.ChatRequest{
		Model:        t.config.Model,
		Messages:     trimHistory(toMessages(conv.Log.BeginReply(t.mode)), t.config.Tutor.HistoryTokens),
		SystemPrompt: t.systemPrompt,
		MaxTokens:    t.config.Tutor.MaxTokens,
	}

	reqCtx, cancel := t.requestContext(ctx)
	reply, usage, genErr := provider.Generate(reqCtx, t.provider, req)
	cancel()

	if ctx.Err() != nil {
		conv.Log.Abandon(ticket)
		t.logger.Info("question abandoned", "chat", conv.Name, "reason", ctx.Err())
		return nil, chat.ErrAbandoned
	}

	if genErr != nil {
		t.logger.Warn("model call failed", "chat", conv.Name, "provider", t.provider.Name(), "err", genErr)
		res.RemoteErr = genErr
	}
	if _, err := conv.Log.CommitReply(ticket, reply, genErr); err != nil {
		return nil, err
	}
	turns := conv.Log.Turns()
	res.Reply = turns[len(turns)-1].Text
	res.Usage = usage
	res.Turns = len(turns)
	res.PersistErr = t.persist()
	return res, nil
}

func (t *Tutor) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := t.config.Tutor.RequestTimeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func toMessages(turns []chat.Turn) []provider.Message {
	msgs := make([]provider.Message, 0, len(turns))
	for _, tn := range turns {
		role := provider.RoleUser
		if tn.Role == chat.RoleAssistant {
			role = provider.RoleAssistant
		}
		msgs = append(msgs, provider.Message{Role: role, Text: tn.Text})
	}
	return msgs
}

// persist flushes the store and logs a failure. The returned error is a
// *session.StorageError.
func (t *Tutor) persist() error {
	if err := t.store.Persist(); err != nil {
		t.logger.Warn("persist failed", "err", err)
		return err
	}
	return nil
}

// ---------- chat management ----------

// NewChat creates and selects a chat. The returned error only reports a
// persist failure; the chat exists in memory either way.
func (t *Tutor) NewChat(base string) (string, error) {
	name := t.store.Create(base)
	return name, t.persist()
}

// SwitchChat selects name. A numeric argument that is not itself a chat name
// selects by 1-based position.
func (t *Tutor) SwitchChat(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := t.store.Select(name); err != nil {
		var idx int
		if _, scanErr := fmt.Sscanf(name, "%d", &idx); scanErr != nil || fmt.Sprint(idx) != name {
			return "", err
		}
		names := t.store.Names()
		if idx < 1 || idx > len(names) {
			return "", err
		}
		name = names[idx-1]
		if err := t.store.Select(name); err != nil {
			return "", err
		}
	}
	return name, t.persist()
}

// RenameChat renames old to newName.
func (t *Tutor) RenameChat(old, newName string) error {
	if err := t.store.Rename(old, newName); err != nil {
		return err
	}
	return t.persist()
}

// DeleteChat removes name.
func (t *Tutor) DeleteChat(name string) error {
	if err := t.store.Delete(name); err != nil {
		return err
	}
	return t.persist()
}

// ExportChat renders the named chat in format f.
func (t *Tutor) ExportChat(name string, f export.Format) ([]byte, error) {
	c, err := t.store.Get(name)
	if err != nil {
		return nil, err
	}
	return c.Export(f)
}

// SetModel switches the model for following requests.
func (t *Tutor) SetModel(name string) {
	t.config.Model = name
	t.rebuildSystemPrompt()
}

// SetProvider switches to the named provider through the factory. The
// model falls back to the new provider's default.
func (t *Tutor) SetProvider(name string) error {
	if t.factory == nil {
		return fmt.Errorf("provider switching is not available")
	}
	oldName, oldModel := t.config.Provider, t.config.Model
	t.config.Provider = name
	t.config.Model = ""
	p, err := t.factory(t.config)
	if err != nil {
		t.config.Provider, t.config.Model = oldName, oldModel
		return err
	}
	t.provider = p
	t.rebuildSystemPrompt()
	return nil
}
