package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qpg-app/qpg/internal/ai"
	"github.com/qpg-app/qpg/internal/conversation"
	"github.com/qpg-app/qpg/internal/core/queue"
	"github.com/qpg-app/qpg/internal/core/security"
	"github.com/qpg-app/qpg/internal/handshake"
	"github.com/qpg-app/qpg/internal/platform"
	"github.com/qpg-app/qpg/internal/preferences"
)

// userTurnSeparator joins the best-match snippet and the raw prompt.
const userTurnSeparator = "\n\n "

// ErrNoQueue is returned when the policy defers commands but the engine
// has no approval queue.
var ErrNoQueue = errors.New("approval queue not configured")

// Confirmer asks the user whether an authorized command may run.
type Confirmer interface {
	Confirm(commandLine string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(commandLine string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(commandLine string) (bool, error) {
	return f(commandLine)
}

// Options wires an Engine. Holder, Identity, Store, Runner and Provider
// are required.
type Options struct {
	Holder        *handshake.Holder
	Identity      *platform.Identity
	Store         *preferences.Store
	Authorizer    *security.Authorizer
	Runner        Runner
	Provider      ai.AIProvider
	Conversations *conversation.Manager
	Preamble      *conversation.PromptTemplate

	// Queue receives commands when the policy level is "queue".
	Queue *queue.Manager

	// Confirmer is asked when the policy level is "always". Without one
	// such commands are declined.
	Confirmer Confirmer

	Logger *zap.Logger
}

// Engine runs one prompt from the user through the model and, when the
// reply carries a command, through authorization and execution.
type Engine struct {
	holder        *handshake.Holder
	identity      *platform.Identity
	store         *preferences.Store
	authorizer    *security.Authorizer
	runner        Runner
	provider      ai.AIProvider
	conversations *conversation.Manager
	preamble      *conversation.PromptTemplate
	queue         *queue.Manager
	confirmer     Confirmer
	logger        *zap.Logger
}

// NewEngine creates a new engine
func NewEngine(opts Options) *Engine {
	e := &Engine{
		holder:        opts.Holder,
		identity:      opts.Identity,
		store:         opts.Store,
		authorizer:    opts.Authorizer,
		runner:        opts.Runner,
		provider:      opts.Provider,
		conversations: opts.Conversations,
		preamble:      opts.Preamble,
		queue:         opts.Queue,
		confirmer:     opts.Confirmer,
		logger:        opts.Logger,
	}
	if e.authorizer == nil {
		e.authorizer = security.NewAuthorizer(nil)
	}
	if e.conversations == nil {
		e.conversations = conversation.NewManager(0)
	}
	if e.preamble == nil {
		e.preamble = conversation.DefaultPrompt()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("engine")
	return e
}

// Request is one user prompt in a chat.
type Request struct {
	ChatID string
	Prompt string
}

// Reply is the outcome of one prompt.
type Reply struct {
	Message string
	Command string

	// Executed is set when the command ran; Result holds its outcome.
	Executed bool
	Result   *Result

	// TaskID names the queued task when the command was deferred.
	TaskID string

	// Rejected explains why a proposed command did not run or queue.
	Rejected string
}

// Process handles a user request from input to output. Only a failed
// model call or an unparseable reply is an error; rejected commands and
// failed preference pushes are reported in the Reply or the log.
func (e *Engine) Process(ctx context.Context, req Request) (*Reply, error) {
	session := e.holder.Get(ctx)
	username, env := e.identity.Username(), e.identity.Environment()

	if _, err := e.store.Load(ctx, session, username, env); err != nil {
		return nil, err
	}
	snippet, err := json.MarshalIndent(e.store.BestMatch(req.Prompt), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode preference snippet: %w", err)
	}

	if err := e.begin(req.ChatID, env); err != nil {
		return nil, err
	}

	userTurn := string(snippet) + userTurnSeparator + req.Prompt
	messages := append(e.conversations.History(req.ChatID), ai.Message{
		Role:    ai.RoleUser,
		Content: userTurn,
	})

	start := time.Now()
	response, err := e.provider.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	e.logger.Debug("model replied",
		zap.String("chat_id", req.ChatID),
		zap.Duration("elapsed", time.Since(start)))

	parsed, err := ai.ParseReply(response)
	if err != nil {
		e.logger.Warn("unusable model reply", zap.String("chat_id", req.ChatID), zap.Error(err))
		return nil, err
	}

	e.conversations.Record(req.ChatID,
		conversation.Message{Role: ai.RoleUser, Content: userTurn},
		conversation.Message{Role: ai.RoleAssistant, Content: response},
	)

	reply := &Reply{Message: parsed.Message, Command: parsed.Command}
	if parsed.Command != "" {
		e.dispatch(ctx, req.ChatID, reply)
	}
	return reply, nil
}

// EndChat forgets chatID's history. A later prompt with the same id starts
// over with the preamble.
func (e *Engine) EndChat(chatID string) {
	e.conversations.Delete(chatID)
	e.logger.Debug("chat ended", zap.String("chat_id", chatID))
}

// begin records the system preamble the first time chatID is seen.
func (e *Engine) begin(chatID string, env platform.Environment) error {
	if e.conversations.Seen(chatID) {
		return nil
	}

	filtered, err := json.MarshalIndent(e.store.Filtered(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	preamble, err := e.preamble.Render(conversation.PreambleData{
		Environment: string(env),
		Preferences: string(filtered),
	})
	if err != nil {
		return err
	}

	if e.conversations.Begin(chatID, preamble) {
		e.logger.Debug("preamble sent", zap.String("chat_id", chatID))
	}
	return nil
}

func (e *Engine) dispatch(ctx context.Context, chatID string, reply *Reply) {
	decision, err := e.authorize(reply.Command)
	if err != nil {
		e.logger.Info("command rejected",
			zap.String("chat_id", chatID),
			zap.String("command", reply.Command),
			zap.Error(err))
		reply.Rejected = err.Error()
		return
	}

	switch decision.Level {
	case security.ConfirmQueue:
		if e.queue == nil {
			reply.Rejected = ErrNoQueue.Error()
			return
		}
		task, err := e.queue.Enqueue(chatID, decision.CommandLine(), decision.Base, decision.Value, true)
		if err != nil {
			e.logger.Error("failed to queue command", zap.Error(err))
			reply.Rejected = err.Error()
			return
		}
		reply.TaskID = task.ID
		return

	case security.ConfirmAlways:
		approved := false
		if e.confirmer != nil {
			approved, err = e.confirmer.Confirm(decision.CommandLine())
		}
		if err != nil || !approved {
			reply.Rejected = "declined by user"
			return
		}
	}

	reply.Result = e.run(ctx, decision, true)
	reply.Executed = true
}

// Execute authorizes commandLine against the current preferences and runs
// it. When update is set and the command exits 0, the stored value is
// updated to the command's trailing value. Authorization errors are
// returned; the program's own failure is reported in the Result.
func (e *Engine) Execute(ctx context.Context, commandLine string, update bool) (*Result, error) {
	decision, err := e.Authorize(ctx, commandLine)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, decision, update), nil
}

// Authorize checks commandLine against the current preferences without
// running it.
func (e *Engine) Authorize(ctx context.Context, commandLine string) (*security.Decision, error) {
	session := e.holder.Get(ctx)
	if _, err := e.store.Load(ctx, session, e.identity.Username(), e.identity.Environment()); err != nil {
		return nil, err
	}
	return e.authorize(commandLine)
}

// authorize checks commandLine against an allowlist derived from the
// store's current snapshot. The store lock is released before the check.
func (e *Engine) authorize(commandLine string) (*security.Decision, error) {
	set, env := e.store.Snapshot()
	return e.authorizer.Authorize(commandLine, security.AllowlistFor(set, env))
}

func (e *Engine) run(ctx context.Context, decision *security.Decision, update bool) *Result {
	result := e.runner.Run(ctx, decision.Program, decision.Args)
	if !result.Succeeded() {
		e.logger.Warn("command failed",
			zap.String("command", decision.CommandLine()),
			zap.Int("exit_code", result.ExitCode),
			zap.Error(result.Error))
		return result
	}

	e.logger.Info("command executed", zap.String("command", decision.CommandLine()))
	if !update {
		return result
	}

	session := e.holder.Get(ctx)
	updated, err := e.store.Update(ctx, session, e.identity.Username(), decision.Base, decision.Value)
	switch {
	case err != nil:
		e.logger.Warn("preference update not persisted",
			zap.String("base", decision.Base),
			zap.String("value", decision.Value),
			zap.Error(err))
	case !updated:
		e.logger.Debug("no preference matches command", zap.String("base", decision.Base))
	}
	return result
}

// Preferences returns the preferences for the current environment,
// loading them on first use.
func (e *Engine) Preferences(ctx context.Context) (*preferences.Set, error) {
	session := e.holder.Get(ctx)
	return e.store.Load(ctx, session, e.identity.Username(), e.identity.Environment())
}

// Launch starts an allowed startup application detached. commandLine
// must end with the detached marker.
func (e *Engine) Launch(commandLine string) error {
	decision, err := e.authorizer.AuthorizeStartupApp(commandLine)
	if err != nil {
		e.logger.Info("launch rejected", zap.String("command", commandLine), zap.Error(err))
		return err
	}
	return e.runner.Start(decision.Program, decision.Args)
}

// Applied is the outcome of replaying one stored setting.
type Applied struct {
	Key         string
	CommandLine string
	Result      *Result
	Err         error
}

// ApplyStored re-runs the command of every setting that has one in the
// current environment, with its stored value, so the desktop matches the
// stored preferences. Nothing is pushed back to the store.
func (e *Engine) ApplyStored(ctx context.Context) ([]Applied, error) {
	session := e.holder.Get(ctx)
	env := e.identity.Environment()
	if _, err := e.store.Load(ctx, session, e.identity.Username(), env); err != nil {
		return nil, err
	}

	filtered := e.store.Filtered()
	var applied []Applied
	for _, key := range filtered.Matchable(env) {
		setting, _ := filtered.Get(key)
		line := setting.CommandLine(env)

		result, err := e.Execute(ctx, line, false)
		if err != nil {
			e.logger.Info("stored setting skipped", zap.String("key", key), zap.Error(err))
		}
		applied = append(applied, Applied{Key: key, CommandLine: line, Result: result, Err: err})
	}
	return applied, nil
}
