package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"bio_generator/config"
	"bio_generator/form"
	"bio_generator/generator"
	"bio_generator/interactive"
	"bio_generator/server"
)

const defaultConfigPath = "config/config.json"

var verbose bool

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	configPath := flag.String("config", defaultConfigPath, "path to config.json or config.yaml")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	interactiveMode := flag.Bool("interactive", false, "fill the form with terminal prompts")
	content := flag.String("content", "", "about text for a one-shot bio")
	model := flag.String("model", "", "model id (default: first allowed model)")
	temperature := flag.Float64("temperature", form.DefaultTemperature, "sampling temperature 0-2")
	bioType := flag.String("type", form.Types[0], "bio type: Personal or Brand")
	tone := flag.String("tone", form.Tones[0], "bio tone")
	emojis := flag.Bool("emojis", false, "include emojis")
	flag.BoolVar(&verbose, "v", false, "enable info logs")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] .env not loaded: %v", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fail(err)
	}
	if verbose {
		cfg.Verbose = true
	}
	svc, err := buildService(context.Background(), cfg)
	if err != nil {
		fail(err)
	}
	validator := form.NewValidator(cfg.Schema())

	// Web server mode
	if *serve {
		if !cfg.Verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		srv, err := server.New(validator, svc, server.Options{
			Timeout: cfg.Timeout.Std(),
			Verbose: cfg.Verbose,
			Logger:  log.Default(),
		})
		if err != nil {
			fail(err)
		}
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		log.Printf("Starting web server on %s (llm=%s)", listen, cfg.LLM.Provider)
		if err := http.ListenAndServe(listen, srv.Routes()); err != nil {
			fail(err)
		}
		return
	}

	pipeline, err := form.NewPipeline(svc, form.WithTimeout(cfg.Timeout.Std()), form.WithLogger(log.Default(), cfg.Verbose))
	if err != nil {
		fail(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *interactiveMode {
		st, err := form.NewState(validator, pipeline, form.StateLogger(log.Default(), cfg.Verbose))
		if err != nil {
			fail(err)
		}
		session, err := interactive.NewSession(st, interactive.NewSurveyPrompter())
		if err != nil {
			fail(err)
		}
		if _, err := session.Run(ctx); err != nil {
			if errors.Is(err, interactive.ErrAborted) {
				os.Exit(130)
			}
			fail(err)
		}
		return
	}

	if *content == "" {
		fmt.Fprintln(os.Stderr, "--content is required (or use --interactive / --serve)")
		os.Exit(1)
	}

	draft := cfg.Schema().Defaults()
	edits := map[form.Field]any{
		form.FieldContent:     *content,
		form.FieldTemperature: *temperature,
		form.FieldType:        *bioType,
		form.FieldTone:        *tone,
		form.FieldEmojis:      *emojis,
	}
	if *model != "" {
		edits[form.FieldModel] = *model
	}
	for f, v := range edits {
		if err := draft.Set(f, v); err != nil {
			fail(err)
		}
	}
	req, err := validator.Validate(draft)
	if err != nil {
		var verrs form.ValidationErrors
		if errors.As(err, &verrs) {
			for _, f := range verrs.Fields() {
				fmt.Fprintf(os.Stderr, "--%s: %s\n", f, verrs[f])
			}
			os.Exit(2)
		}
		fail(err)
	}

	log.Printf("[cli] generating model=%s type=%s tone=%s", req.Model(), req.Type(), req.Tone())
	o := <-pipeline.Submit(ctx, req)
	if o.Status != form.OutcomeSucceeded || o.Bio == nil {
		fail(o.Err)
	}
	fmt.Println(o.Bio.Text)
}

// loadConfig reads path; a missing default config falls back to built-in settings.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		cfg = config.Default()
		cfg.ResolveAPIKey(os.Getenv)
		return cfg, cfg.Validate()
	}
	return cfg, err
}

func buildService(ctx context.Context, cfg config.Config) (form.GenerationService, error) {
	if cfg.LLM == nil || cfg.LLM.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key_env in config")
	}
	var llm generator.LLMClient
	switch cfg.LLM.Provider {
	case "http":
		return generator.NewHTTPService(cfg.ServiceURL, nil)
	case "groq", "openai":
		// Groq speaks the OpenAI protocol; base_url selects the endpoint.
		c, err := generator.NewOpenAILLMFromConfig(cfg.LLMSettings())
		if err != nil {
			return nil, err
		}
		llm = c
	case "gemini":
		c, err := generator.NewGeminiLLMFromConfig(ctx, cfg.LLMSettings())
		if err != nil {
			return nil, err
		}
		llm = c
	case "mock":
		llm = generator.MockLLM{}
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
	return generator.NewAgent(llm)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
