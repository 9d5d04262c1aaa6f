package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"home-dispatch/config"
	"home-dispatch/internal/application"
	"home-dispatch/internal/home"
	"home-dispatch/internal/infra/anthropic"
	"home-dispatch/internal/infra/gemini"
	"home-dispatch/internal/infra/mqtt"
	"home-dispatch/internal/infra/openai"
	"home-dispatch/internal/infra/pushover"
	"home-dispatch/internal/telemetry"
)

const defaultConfigPath = "config.yaml"

// runtime is everything a surface needs, built from configuration.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	dispatcher *application.Dispatcher
	stt        application.SpeechToText
	closers    []func(context.Context) error
}

func (a *App) loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(a.opts.envFile); err != nil {
		return nil, err
	}

	path := a.opts.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if a.opts.provider != "" {
		cfg.Resolver.Provider = strings.ToLower(strings.TrimSpace(a.opts.provider))
	}
	return cfg, nil
}

// buildRuntime loads and validates configuration, then assembles the
// dispatcher with its resolver, notifiers and publisher.
func (a *App) buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Log, a.stderr)
	rt := &runtime{cfg: cfg, logger: logger}

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.SetupTracing(a.stderr)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, shutdown)
	}

	resolver, err := newResolver(cfg.Resolver)
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.ResolverTimeout()
	if err != nil {
		return nil, err
	}

	opts := []application.Option{application.WithResolverTimeout(timeout)}

	var notifiers application.Notifiers
	if cfg.Pushover.Enabled {
		notifiers = append(notifiers, pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey))
	}
	if cfg.MQTT.Enabled {
		pub, err := mqtt.Connect(ctx, mqtt.Config{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger)
		if err != nil {
			rt.close(ctx)
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { pub.Close(); return nil })
		notifiers = append(notifiers, pub)
		opts = append(opts, application.WithStatePublisher(pub))
	}
	if len(notifiers) > 0 {
		opts = append(opts, application.WithNotifier(notifiers))
	}

	rt.dispatcher = application.NewDispatcher(home.NewStore(), resolver, logger, opts...)

	if cfg.OpenAI.APIKey != "" {
		rt.stt = openai.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.Language)
	} else {
		rt.stt = &application.NoopSTT{}
	}

	logger.Info("runtime ready",
		"provider", cfg.Resolver.Provider,
		"timeout", timeout,
		"pushover", cfg.Pushover.Enabled,
		"mqtt", cfg.MQTT.Enabled,
	)
	return rt, nil
}

func (rt *runtime) close(ctx context.Context) {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i](context.WithoutCancel(ctx)))
	}
	if err := errors.Join(errs...); err != nil && rt.logger != nil {
		rt.logger.Warn("shutting down", "error", err)
	}
}

func newResolver(cfg config.ResolverConfig) (application.IntentResolver, error) {
	switch cfg.Provider {
	case config.ProviderAzure:
		return openai.NewAzureChatClient(cfg.Azure.Endpoint, cfg.Azure.APIKey, cfg.Azure.Deployment, cfg.Azure.APIVersion), nil
	case config.ProviderOpenAI:
		if cfg.OpenAI.BaseURL != "" {
			return openai.NewChatClientWithURL(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL), nil
		}
		return openai.NewChatClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model), nil
	case config.ProviderAnthropic:
		if cfg.Anthropic.BaseURL != "" {
			return anthropic.NewClaudeClientWithURL(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL), nil
		}
		return anthropic.NewClaudeClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model), nil
	case config.ProviderGemini:
		if cfg.Gemini.BaseURL != "" {
			return gemini.NewClientWithURL(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL), nil
		}
		return gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model), nil
	default:
		return nil, fmt.Errorf("unknown resolver provider %q", cfg.Provider)
	}
}
