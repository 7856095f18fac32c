package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/comicdl/pkg/domain/types"
	"github.com/m-mizutani/comicdl/pkg/usecase"
)

const (
	DefaultDownloadThreads = 5
	DefaultRetryTimesMax   = 3
	DefaultOutputDir       = "./output"
	DefaultRetryInterval   = 500 * time.Millisecond
	DefaultPollInterval    = usecase.DefaultPollInterval
	DefaultTimeout         = 30 * time.Second
)

// Crawler holds crawl configuration
type Crawler struct {
	ConfigFile      string
	BookIDs         []string
	OutputDir       string
	PicType         string
	DownloadThreads int
	RetryTimesMax   int
	RetryInterval   time.Duration
	PollInterval    time.Duration
	Timeout         time.Duration
	BaseURL         string
	UserAgent       string
	NoLogin         bool
}

// crawlerFile is the layout of the TOML config file
type crawlerFile struct {
	BookIDs         []string `toml:"book_ids"`
	OutputDir       *string  `toml:"output_dir"`
	PicType         *string  `toml:"pic_type"`
	DownloadThreads *int     `toml:"download_threads"`
	RetryTimesMax   *int     `toml:"retry_times_max"`
	RetryInterval   *string  `toml:"retry_interval"`
	PollInterval    *string  `toml:"poll_interval"`
	Timeout         *string  `toml:"timeout"`
	BaseURL         *string  `toml:"base_url"`
	UserAgent       *string  `toml:"user_agent"`
	NoLogin         *bool    `toml:"no_login"`
}

// Flags returns CLI flags for crawl configuration
func (c *Crawler) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML config file",
			Destination: &c.ConfigFile,
			Sources:     cli.EnvVars("COMICDL_CONFIG"),
		},
		&cli.StringSliceFlag{
			Name:        "book-id",
			Aliases:     []string{"b"},
			Usage:       "Book ID to download (repeatable)",
			Destination: &c.BookIDs,
			Sources:     cli.EnvVars("COMICDL_BOOK_IDS"),
		},
		&cli.StringFlag{
			Name:        "output-dir",
			Aliases:     []string{"o"},
			Usage:       "Root directory of downloaded books",
			Value:       DefaultOutputDir,
			Destination: &c.OutputDir,
			Sources:     cli.EnvVars("COMICDL_OUTPUT_DIR"),
		},
		&cli.StringFlag{
			Name:        "pic-type",
			Usage:       "Image variant to download (jpg, webp, both)",
			Value:       string(types.PicTypeJPG),
			Destination: &c.PicType,
			Sources:     cli.EnvVars("COMICDL_PIC_TYPE"),
		},
		&cli.IntFlag{
			Name:        "download-threads",
			Aliases:     []string{"t"},
			Usage:       "Number of concurrent image downloads",
			Value:       DefaultDownloadThreads,
			Destination: &c.DownloadThreads,
			Sources:     cli.EnvVars("COMICDL_DOWNLOAD_THREADS"),
		},
		&cli.IntFlag{
			Name:        "retry-times-max",
			Usage:       "Retries of a failed image download before it is dropped",
			Value:       DefaultRetryTimesMax,
			Destination: &c.RetryTimesMax,
			Sources:     cli.EnvVars("COMICDL_RETRY_TIMES_MAX"),
		},
		&cli.DurationFlag{
			Name:        "retry-interval",
			Usage:       "Wait between two download attempts",
			Value:       DefaultRetryInterval,
			Destination: &c.RetryInterval,
			Sources:     cli.EnvVars("COMICDL_RETRY_INTERVAL"),
		},
		&cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "Wait between two login status checks",
			Value:       DefaultPollInterval,
			Destination: &c.PollInterval,
			Sources:     cli.EnvVars("COMICDL_POLL_INTERVAL"),
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "HTTP request timeout",
			Value:       DefaultTimeout,
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("COMICDL_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Site root of the comics platform",
			Value:       usecase.DefaultBaseURL,
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("COMICDL_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "user-agent",
			Usage:       "User-Agent header (empty for the built-in browser UA)",
			Destination: &c.UserAgent,
			Sources:     cli.EnvVars("COMICDL_USER_AGENT"),
		},
		&cli.BoolFlag{
			Name:        "no-login",
			Usage:       "Skip the QR code login and crawl anonymously",
			Destination: &c.NoLogin,
			Sources:     cli.EnvVars("COMICDL_NO_LOGIN"),
		},
	}
}

// Load merges the config file into c. Values given by flag or environment
// variable take precedence over the file. Load validates the result.
func (c *Crawler) Load(cmd *cli.Command) error {
	if c.ConfigFile != "" {
		raw, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return goerr.Wrap(err, "failed to read config file", goerr.V("path", c.ConfigFile), goerr.T(types.ErrTagFatal))
		}

		var file crawlerFile
		if err := toml.Unmarshal(raw, &file); err != nil {
			return goerr.Wrap(err, "failed to parse config file", goerr.V("path", c.ConfigFile), goerr.T(types.ErrTagFatal))
		}

		if err := c.merge(&file, cmd.IsSet); err != nil {
			return goerr.Wrap(err, "invalid config file", goerr.V("path", c.ConfigFile))
		}
	}

	return c.Validate()
}

func (c *Crawler) merge(f *crawlerFile, isSet func(name string) bool) error {
	if f.BookIDs != nil && !isSet("book-id") {
		c.BookIDs = f.BookIDs
	}
	setIf(isSet, "output-dir", f.OutputDir, &c.OutputDir)
	setIf(isSet, "pic-type", f.PicType, &c.PicType)
	setIf(isSet, "download-threads", f.DownloadThreads, &c.DownloadThreads)
	setIf(isSet, "retry-times-max", f.RetryTimesMax, &c.RetryTimesMax)
	setIf(isSet, "base-url", f.BaseURL, &c.BaseURL)
	setIf(isSet, "user-agent", f.UserAgent, &c.UserAgent)
	setIf(isSet, "no-login", f.NoLogin, &c.NoLogin)

	durations := []struct {
		flag  string
		value *string
		dst   *time.Duration
	}{
		{"retry-interval", f.RetryInterval, &c.RetryInterval},
		{"poll-interval", f.PollInterval, &c.PollInterval},
		{"timeout", f.Timeout, &c.Timeout},
	}
	for _, d := range durations {
		if d.value == nil || isSet(d.flag) {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return goerr.Wrap(err, "invalid duration", goerr.V("key", d.flag), goerr.V("value", *d.value), goerr.T(types.ErrTagFatal))
		}
		*d.dst = v
	}

	return nil
}

func setIf[T any](isSet func(string) bool, flag string, v *T, dst *T) {
	if v != nil && !isSet(flag) {
		*dst = *v
	}
}

// Validate checks that the crawl can start
func (c *Crawler) Validate() error {
	if len(c.BookIDs) == 0 {
		return goerr.New("no book id given, use --book-id or book_ids in the config file", goerr.T(types.ErrTagFatal))
	}
	for _, id := range c.BookIDs {
		if id == "" {
			return goerr.New("empty book id", goerr.T(types.ErrTagFatal))
		}
	}
	if err := types.PicType(c.PicType).Validate(); err != nil {
		return err
	}
	if c.DownloadThreads < 1 {
		return goerr.New("download threads must be at least 1", goerr.V("download_threads", c.DownloadThreads), goerr.T(types.ErrTagFatal))
	}
	if c.RetryTimesMax < 0 {
		return goerr.New("retry times must not be negative", goerr.V("retry_times_max", c.RetryTimesMax), goerr.T(types.ErrTagFatal))
	}
	if c.OutputDir == "" {
		return goerr.New("output dir must not be empty", goerr.T(types.ErrTagFatal))
	}
	if c.BaseURL == "" {
		return goerr.New("base url must not be empty", goerr.T(types.ErrTagFatal))
	}
	if c.RetryInterval < 0 || c.PollInterval <= 0 || c.Timeout <= 0 {
		return goerr.New("intervals must be positive",
			goerr.V("retry_interval", c.RetryInterval),
			goerr.V("poll_interval", c.PollInterval),
			goerr.V("timeout", c.Timeout),
			goerr.T(types.ErrTagFatal),
		)
	}
	return nil
}
