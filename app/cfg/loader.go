package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DataDir   string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for the database and content artifacts"`
	FeedsFile string `long:"feeds-file" env:"FEEDS_FILE" default:"./feeds.yml" description:"YAML file listing feed URLs to poll"`

	// HTTP server
	Port string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`

	// Polling
	PollInterval    int   `long:"poll-interval" env:"POLL_INTERVAL" default:"300" description:"Seconds between poll cycles"`
	FeedConcurrency int   `long:"feed-concurrency" env:"FEED_CONCURRENCY" default:"3" description:"Maximum feeds fetched concurrently per cycle"`
	ItemConcurrency int   `long:"item-concurrency" env:"ITEM_CONCURRENCY" default:"5" description:"Maximum items registered concurrently per feed"`
	FeedSizeLimit   int64 `long:"feed-size-limit" env:"FEED_SIZE_LIMIT" default:"5242880" description:"Maximum feed response size in bytes"`
	FeedTimeout     int   `long:"feed-timeout" env:"FEED_TIMEOUT" default:"30" description:"Feed fetch timeout in seconds"`

	// Fetching
	FetchWorkers  int   `long:"fetch-workers" env:"FETCH_WORKERS" default:"5" description:"Number of content fetch workers"`
	PageSizeLimit int64 `long:"page-size-limit" env:"PAGE_SIZE_LIMIT" default:"4194304" description:"Maximum article response size in bytes"`
	FetchTimeout  int   `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Article fetch timeout in seconds"`

	// Fetch queue
	QueueMaxDeliveries int `long:"queue-max-deliveries" env:"QUEUE_MAX_DELIVERIES" default:"5" description:"Delivery attempts before a task is dead-lettered"`
	QueueVisibility    int `long:"queue-visibility" env:"QUEUE_VISIBILITY" default:"120" description:"Queue visibility timeout in seconds"`

	// Summarization
	ModelURL         string `long:"model-url" env:"MODEL_URL" default:"https://api.openai.com/v1/chat/completions" description:"Chat completions endpoint for summarization"`
	ModelName        string `long:"model-name" env:"MODEL_NAME" default:"gpt-4o-mini" description:"Model name for summarization requests"`
	ModelAPIKey      string `long:"model-api-key" env:"MODEL_API_KEY" description:"API key for the summarization endpoint"`
	ModelTimeout     int    `long:"model-timeout" env:"MODEL_TIMEOUT" default:"60" description:"Model invocation timeout in seconds"`
	SkipModel        bool   `long:"skip-model" env:"SKIP_MODEL" description:"Bypass the model and produce deterministic fallback summaries"`
	SummaryCharLimit int    `long:"summary-char-limit" env:"SUMMARY_CHAR_LIMIT" default:"280" description:"Maximum summary length in characters"`
	PromptCharBudget int    `long:"prompt-char-budget" env:"PROMPT_CHAR_BUDGET" default:"12000" description:"Maximum article characters submitted to the model"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"feedpipe/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DataDir:            raw.DataDir,
		FeedsFile:          raw.FeedsFile,
		Port:               raw.Port,
		PollInterval:       raw.PollInterval,
		FeedConcurrency:    raw.FeedConcurrency,
		ItemConcurrency:    raw.ItemConcurrency,
		FeedSizeLimit:      raw.FeedSizeLimit,
		FeedTimeout:        raw.FeedTimeout,
		FetchWorkers:       raw.FetchWorkers,
		PageSizeLimit:      raw.PageSizeLimit,
		FetchTimeout:       raw.FetchTimeout,
		QueueMaxDeliveries: raw.QueueMaxDeliveries,
		QueueVisibility:    raw.QueueVisibility,
		ModelURL:           raw.ModelURL,
		ModelName:          raw.ModelName,
		ModelAPIKey:        raw.ModelAPIKey,
		ModelTimeout:       raw.ModelTimeout,
		SkipModel:          raw.SkipModel,
		SummaryCharLimit:   raw.SummaryCharLimit,
		PromptCharBudget:   raw.PromptCharBudget,
		UserAgent:          raw.UserAgent,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	positiveFields := map[string]int{
		"poll interval":        cfg.PollInterval,
		"feed concurrency":     cfg.FeedConcurrency,
		"item concurrency":     cfg.ItemConcurrency,
		"fetch workers":        cfg.FetchWorkers,
		"queue max deliveries": cfg.QueueMaxDeliveries,
		"queue visibility":     cfg.QueueVisibility,
		"summary char limit":   cfg.SummaryCharLimit,
		"prompt char budget":   cfg.PromptCharBudget,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if cfg.FeedSizeLimit <= 0 || cfg.PageSizeLimit <= 0 {
		return fmt.Errorf("size limits must be positive")
	}

	if !cfg.SkipModel && cfg.ModelAPIKey == "" {
		return fmt.Errorf("model API key is required unless --skip-model is set")
	}

	return nil
}
