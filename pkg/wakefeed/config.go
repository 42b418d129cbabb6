package wakefeed

import "math/rand"

type Config struct {
	BatchSize   int
	NumFeatures int
	Shuffle     bool
	Progress    bool
	Rand        *rand.Rand
	Logger      Logger
}

type Option func(*Config)

func WithBatchSize(n int) Option {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// WithNumFeatures records the expected feature vector width. The value is
// advisory: it is reported by accessors but never validated against the
// loaded records.
func WithNumFeatures(n int) Option {
	return func(c *Config) {
		c.NumFeatures = n
	}
}

// WithShuffle enables reshuffling of the record order at the end of every
// epoch. Order-sensitive accessors refuse to answer once this is on.
func WithShuffle(enabled bool) Option {
	return func(c *Config) {
		c.Shuffle = enabled
	}
}

// WithProgress renders a progress bar on stdout while records preload.
func WithProgress(enabled bool) Option {
	return func(c *Config) {
		c.Progress = enabled
	}
}

// WithRand supplies the random source used for shuffling and pruning. Fix
// the seed to make epoch order and prune selection reproducible.
func WithRand(r *rand.Rand) Option {
	return func(c *Config) {
		c.Rand = r
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func defaultConfig() *Config {
	return &Config{
		BatchSize:   32,
		NumFeatures: 40,
		Shuffle:     false,
		Logger:      nil,
	}
}
