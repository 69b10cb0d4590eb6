package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/tbxark/actionblock/agent"
	"github.com/tbxark/actionblock/blocks"
	"github.com/tbxark/actionblock/classify"
	"github.com/tbxark/actionblock/config"
	"github.com/tbxark/actionblock/dialogue"
	"github.com/tbxark/actionblock/endpoint"
	"github.com/tbxark/actionblock/parser"
	"github.com/tbxark/actionblock/registry"
)

func main() {
	confPath := flag.String("config", "", "path to config file")
	conversation := flag.String("conversation", "support", "conversation key")
	flag.Parse()
	conf, err := config.Load(*confPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	err = startApp(context.Background(), conf, *conversation)
	if err != nil {
		log.Fatalf("start app: %v", err)
	}
}

func startApp(ctx context.Context, conf *config.Config, conversation string) error {
	conf.ApplyLogLevel()
	reg, err := blocks.NewRegistry()
	if err != nil {
		return err
	}
	backend, err := newBackend(conf.Backend)
	if err != nil {
		return err
	}
	stores, err := openStores(ctx, conf)
	if err != nil {
		return err
	}
	defer stores.Close()

	var generator dialogue.Generator
	if agent.Surface(conf.Surface) == agent.SurfaceAIChat {
		generator, err = newGenerator(ctx, conf.Model, reg)
		if err != nil {
			return err
		}
	}
	flow, err := agent.NewFlow(reg, agent.Config{
		Surface:       agent.Surface(conf.Surface),
		Conversation:  conversation,
		History:       stores.history,
		Records:       stores.records,
		Prefs:         stores.prefs,
		Backend:       backend,
		Generator:     generator,
		ParserOptions: []parser.Option{parser.WithRepairThreshold(conf.Parser.RepairThreshold)},
	})
	if err != nil {
		return err
	}
	defer flow.Close()
	if err := flow.Load(ctx); err != nil {
		return err
	}
	return newConsole(flow, reg).run(ctx)
}

func newBackend(conf config.BackendConfig) (endpoint.Backend, error) {
	if conf.BaseURL == "" {
		slog.Info("No backend configured, using the built-in fake")
		return endpoint.NewFake(), nil
	}
	return endpoint.NewClient(conf.BaseURL,
		endpoint.WithAPIKey(conf.APIKey),
		endpoint.WithTimeout(conf.Timeout),
		endpoint.WithRateLimit(conf.RateLimit, conf.Burst),
	)
}

// newGenerator prefers the chat model and falls back to the local script,
// which also runs alone when no API key is configured.
func newGenerator(ctx context.Context, conf config.ModelConfig, reg *registry.Registry) (dialogue.Generator, error) {
	local := classify.NewLocalRecognizer(reg)
	if conf.APIKey == "" {
		slog.Info("No model API key, using the local assistant")
		return dialogue.NewLocalDialogueGenerator(reg, local), nil
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  conf.APIKey,
		Model:   conf.Model,
		BaseURL: conf.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	tool, err := classify.NewToolRecognizer(reg, cm)
	if err != nil {
		return nil, err
	}
	recognizer := classify.NewFailbackRecognizer(tool, local)
	return dialogue.NewFailbackDialogueGenerator(
		dialogue.NewChatModelDialogueGenerator(cm, reg, dialogue.WithDialogueLang(conf.Language)),
		dialogue.NewLocalDialogueGenerator(reg, recognizer),
	), nil
}
