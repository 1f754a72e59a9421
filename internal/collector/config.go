package collector

import "codeberg.org/mutker/fleetinv/internal/inventory"

const (
	defaultTargetConcurrency = 4
	defaultFetchConcurrency  = 8
)

// Config bounds a collection run. TargetConcurrency is the number of targets
// worked in parallel; FetchConcurrency is the detail-fetch pool size within
// each target. An empty Categories list means all builtin categories.
type Config struct {
	TargetConcurrency int
	FetchConcurrency  int
	Categories        []string
	Retry             RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		TargetConcurrency: defaultTargetConcurrency,
		FetchConcurrency:  defaultFetchConcurrency,
		Retry:             DefaultRetryPolicy(),
	}
}

func (c Config) Validate() error {
	if c.TargetConcurrency < 1 {
		return errFactory.WithMessage(ErrInvalidConfig, "target concurrency must be at least 1")
	}

	if c.FetchConcurrency < 1 {
		return errFactory.WithMessage(ErrInvalidConfig, "fetch concurrency must be at least 1")
	}

	for _, name := range c.Categories {
		if _, ok := inventory.CategoryByName(name); !ok {
			return errFactory.WithMessage(ErrUnknownCategory, "unknown category: "+name)
		}
	}

	return c.Retry.Validate()
}
