package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mrcrgl/diariesai/checkpoint"
	"github.com/mrcrgl/diariesai/config"
	"github.com/mrcrgl/diariesai/generator"
	"github.com/mrcrgl/diariesai/pipeline"
	"github.com/mrcrgl/diariesai/publisher"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{
		getenv: os.Getenv,
		now:    time.Now,
		stdout: os.Stdout,
		logger: log.Default(),
	}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries everything the commands share. Tests build their own.
type app struct {
	configPath string
	verbose    bool

	getenv     func(string) string
	now        func() time.Time
	stdout     io.Writer
	logger     *log.Logger
	httpClient *http.Client
}

func (a *app) infof(format string, args ...interface{}) {
	if !a.verbose {
		return
	}
	a.logger.Printf("[INFO] [cli] "+format, args...)
}

func (a *app) today() string {
	return a.now().Format(checkpoint.DateLayout)
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	required := cmd.Flags().Changed("config")
	cfg, err := config.Load(a.configPath, required, a.getenv)
	if err != nil {
		return nil, err
	}
	a.infof("config loaded (file=%s provider=%s data_dir=%s)", a.configPath, cfg.Provider, cfg.DataDir)
	return cfg, nil
}

// pipeline wires the store and lazily built service clients.
func (a *app) pipeline(cfg *config.Config, out io.Writer) (*pipeline.Pipeline, error) {
	store := checkpoint.NewFileStore(cfg.DataDir)
	return pipeline.New(store, a.generatorFactory(cfg, store), a.publisherFactory(cfg), pipeline.Options{
		DefaultPrompt: cfg.Prompts.Default,
		PreparePrompt: cfg.Prompts.Prepare,
		Verbose:       a.verbose,
	}, out, a.logger)
}

func (a *app) generatorFactory(cfg *config.Config, store checkpoint.Store) pipeline.GeneratorFactory {
	return func() (pipeline.ContentGenerator, error) {
		if err := cfg.ValidateAssistant(); err != nil {
			return nil, err
		}
		api, images, err := a.buildProvider(cfg)
		if err != nil {
			return nil, err
		}
		opts := []generator.JobOption{
			generator.WithPollInterval(cfg.Assistant.PollInterval),
			generator.WithMaxPolls(cfg.Assistant.MaxPolls),
			generator.WithLogger(a.logger, a.verbose),
		}
		assistantID := cfg.Assistant.ID
		if cfg.Provider == config.ProviderMock {
			if assistantID == "" {
				assistantID = "asst_mock"
			}
			opts = append(opts, generator.WithSleep(func(ctx context.Context, _ time.Duration) error {
				return ctx.Err()
			}))
		}
		jobs, err := generator.NewJobClient(api, assistantID, opts...)
		if err != nil {
			return nil, err
		}
		return generator.NewGenerator(jobs, images, store, generator.Options{
			InstructionsPath: cfg.InstructionsPath,
			Model:            cfg.Assistant.Model,
			FollowUp:         cfg.Assistant.FollowUp,
		}, a.logger)
	}
}

// buildProvider returns the assistant and image backends for the
// configured provider.
func (a *app) buildProvider(cfg *config.Config) (generator.AssistantAPI, generator.ImageRenderer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		client, err := generator.NewOpenAIClientFromSettings(&generator.Settings{
			Provider:     cfg.Provider,
			APIKey:       cfg.Assistant.APIKey,
			Organization: cfg.Assistant.Organization,
			BaseURL:      cfg.Assistant.BaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		images, err := generator.NewOpenAIImages(client, cfg.Assistant.ImageModel, cfg.Assistant.ImageSize, a.httpClient, a.verbose, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return client, images, nil
	case config.ProviderMock:
		return generator.NewMockAssistant(), generator.MockImages{}, nil
	default:
		return nil, nil, fmt.Errorf("provider %s not supported", cfg.Provider)
	}
}

func (a *app) publisherFactory(cfg *config.Config) pipeline.PublisherFactory {
	return func() (pipeline.Publisher, error) {
		if err := cfg.ValidateInstagram(); err != nil {
			return nil, err
		}
		return publisher.New(publisher.Config{
			Username:      cfg.Instagram.Username,
			Password:      cfg.Instagram.Password,
			Locale:        cfg.Instagram.Locale,
			BaseURL:       cfg.Instagram.BaseURL,
			SettingsPath:  cfg.SettingsPath,
			CaptionFormat: cfg.Instagram.CaptionFormat,
			ReuseSession:  cfg.Instagram.ReuseSession,
		}, a.httpClient, a.verbose, a.logger)
	}
}
