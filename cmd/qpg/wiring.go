package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qpg-app/qpg/internal/ai"
	"github.com/qpg-app/qpg/internal/ai/ollama"
	"github.com/qpg-app/qpg/internal/ai/openai"
	"github.com/qpg-app/qpg/internal/conversation"
	"github.com/qpg-app/qpg/internal/core"
	"github.com/qpg-app/qpg/internal/core/queue"
	"github.com/qpg-app/qpg/internal/core/security"
	"github.com/qpg-app/qpg/internal/handshake"
	"github.com/qpg-app/qpg/internal/platform"
	"github.com/qpg-app/qpg/internal/preferences"
	"github.com/qpg-app/qpg/internal/storage"
	"github.com/qpg-app/qpg/internal/terminal"
)

// app is everything one command needs, wired from the configuration.
type app struct {
	engine *core.Engine
	store  *preferences.Store
	queue  *queue.Manager
	ident  *platform.Identity
}

const commandTimeout = 30 * time.Second

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// newProvider builds the configured model client.
func newProvider(aiCfg storage.AIConfig, logger *zap.Logger) (ai.AIProvider, error) {
	timeout := seconds(aiCfg.Timeout)
	switch aiCfg.Provider {
	case "ollama", "":
		return ollama.NewClient(aiCfg.Model, aiCfg.BaseURL, timeout, logger), nil
	case "openai":
		if aiCfg.APIKey == "" {
			return nil, fmt.Errorf("ai.api_key is not set; add it to %s or set QPG_AI_API_KEY", configDir)
		}
		return openai.NewClient(aiCfg.APIKey, aiCfg.Model, aiCfg.BaseURL, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", aiCfg.Provider)
	}
}

// loadPreamble returns the configured preamble template, installing the
// built-in ones on first run.
func loadPreamble(name string) *conversation.PromptTemplate {
	promptsDir := storage.PromptsDir(configDir)
	if err := conversation.EnsureDefaultPrompts(promptsDir); err != nil {
		logger.Warn("failed to install default prompts", zap.Error(err))
	}

	prompt, err := conversation.NewPromptLoader(promptsDir).Load(name)
	if err != nil {
		logger.Warn("using built-in prompt", zap.String("prompt", name), zap.Error(err))
		return conversation.DefaultPrompt()
	}
	return prompt
}

// newApp wires the engine. A nil provider is allowed for commands
// that never talk to the model.
func newApp(provider ai.AIProvider, confirmer core.Confirmer) (*app, error) {
	serverTimeout := seconds(cfg.Server.Timeout)

	var establisher handshake.Establisher
	var remote preferences.Remote
	if !cfg.Server.Offline && cfg.Server.URL != "" {
		establisher = handshake.NewClient(cfg.Server.URL, serverTimeout, handshake.NewMLKEM512(), logger)
		remote = preferences.NewRemoteClient(cfg.Server.URL, serverTimeout, logger)
	}

	store := preferences.NewStore(remote, preferences.StoreOptions{
		DefaultsFile:  cfg.Preferences.DefaultsFile,
		ConfirmRemote: cfg.Preferences.ConfirmRemote,
		Logger:        logger.Named("preferences"),
	})

	q, err := queue.NewQueue(storage.QueueFile(configDir), logger)
	if err != nil {
		return nil, err
	}

	ident := platform.NewIdentity(platform.CurrentUsername, platform.Detect)
	policy := cfg.Security

	engine := core.NewEngine(core.Options{
		Holder:        handshake.NewHolder(establisher, logger.Named("handshake")),
		Identity:      ident,
		Store:         store,
		Authorizer:    security.NewAuthorizer(&policy),
		Runner:        core.NewExecutor(commandTimeout, logger),
		Provider:      provider,
		Conversations: conversation.NewManager(cfg.Chat.MaxHistory),
		Preamble:      loadPreamble(cfg.Chat.Prompt),
		Queue:         q,
		Confirmer:     confirmer,
		Logger:        logger,
	})

	return &app{engine: engine, store: store, queue: q, ident: ident}, nil
}

// newRenderer returns the markdown reply renderer, or nil for plain text.
func newRenderer(enabled bool) *terminal.ReplyRenderer {
	if !enabled {
		return nil
	}
	renderer, err := terminal.NewReplyRenderer(80)
	if err != nil {
		logger.Debug("markdown rendering disabled", zap.Error(err))
		return nil
	}
	return renderer
}
