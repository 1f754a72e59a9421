package sink

const (
	defaultDBPrefix  = "FLEET_INFO"
	defaultRegion    = "global"
	defaultDelimiter = ","

	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// CSVConfig controls the CSV sink. Region tags file names and the staging
// database name in the metadata sidecar; DBPrefix is the staging database
// name prefix the downstream loader expects.
type CSVConfig struct {
	Dir       string
	Region    string
	DBPrefix  string
	Delimiter string
}

func DefaultCSVConfig() CSVConfig {
	return CSVConfig{
		Region:    defaultRegion,
		DBPrefix:  defaultDBPrefix,
		Delimiter: defaultDelimiter,
	}
}

func (c CSVConfig) Validate() error {
	if c.Dir == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "output directory is required")
	}

	if len([]rune(c.Delimiter)) > 1 {
		return errFactory.WithMessage(ErrInvalidConfig, "delimiter must be a single character")
	}

	return nil
}

func (c CSVConfig) withDefaults() CSVConfig {
	if c.Region == "" {
		c.Region = defaultRegion
	}

	if c.DBPrefix == "" {
		c.DBPrefix = defaultDBPrefix
	}

	if c.Delimiter == "" {
		c.Delimiter = defaultDelimiter
	}

	return c
}

// SQLiteConfig controls the SQLite staging sink.
type SQLiteConfig struct {
	Path string
}

func (c SQLiteConfig) Validate() error {
	if c.Path == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "database path is required")
	}

	return nil
}
