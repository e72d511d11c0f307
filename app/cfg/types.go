package cfg

type Cfg struct {
	// Storage
	DataDir   string
	FeedsFile string

	// HTTP server
	Port string

	// Polling
	PollInterval    int
	FeedConcurrency int
	ItemConcurrency int
	FeedSizeLimit   int64
	FeedTimeout     int

	// Fetching
	FetchWorkers  int
	PageSizeLimit int64
	FetchTimeout  int

	// Fetch queue
	QueueMaxDeliveries int
	QueueVisibility    int

	// Summarization
	ModelURL         string
	ModelName        string
	ModelAPIKey      string
	ModelTimeout     int
	SkipModel        bool
	SummaryCharLimit int
	PromptCharBudget int

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
