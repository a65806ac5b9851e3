package config

// DefaultConfig returns the configuration used when no file or environment
// override is present. The API key deliberately references an environment
// variable so the raw key never lands in a file by default.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:              "openai",
			APIKey:            "${OPENAI_API_KEY}",
			Model:             "gpt-4o-mini",
			TimeoutSeconds:    120,
			RequestsPerMinute: 60,
			MinIntervalMillis: 500,
		},
		Pipeline: PipelineConfig{
			SizeLimit:          15000,
			MaxHeaderChars:     3000,
			MaxTokens:          4096,
			TruncationRatios:   []float64{1.0, 0.8, 0.6, 0.4},
			BackoffSeconds:     []int{2, 4, 6, 10, 30, 60, 90},
			CallTimeoutSeconds: 300,
			BatchLadder:        []int{6, 4, 2, 1},
			InitialBatchSize:   6,
			MaxConcurrentUnits: 2,
		},
		Mail: MailConfig{
			WindowDays: 7,
		},
		Categories: []string{"newsletters"},
	}
}
