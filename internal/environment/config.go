// Package environment reads the judge configuration from JUDGE_*
// variables, optionally seeded from a .env file.
package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/programme-lv/judge/internal/xdg"
)

const appName = "judge"

type Config struct {
	Sandbox  string // local or isolate
	WorkRoot string

	Workers   int
	QueueSize int

	LanguagesFile  string
	ProblemsDir    string
	SubmissionsDir string // empty keeps submissions in memory

	MaxOutputBytes     int64
	CompileTimeMs      int64
	CompileMemoryBytes int64

	Cgroup     bool
	CgroupRoot string

	NatsUrl string

	SqsRequestUrl  string
	SqsResponseUrl string
	AwsRegion      string

	LogLevel string
}

func Defaults() *Config {
	dirs := xdg.New()
	return &Config{
		Sandbox:            "local",
		WorkRoot:           filepath.Join(dirs.AppCache(appName), "boxes"),
		Workers:            runtime.NumCPU(),
		QueueSize:          64,
		ProblemsDir:        filepath.Join(dirs.AppData(appName), "problems"),
		SubmissionsDir:     filepath.Join(dirs.AppState(appName), "submissions"),
		MaxOutputBytes:     1 << 20,
		CompileTimeMs:      10000,
		CompileMemoryBytes: 512 << 20,
		NatsUrl:            "nats://127.0.0.1:4222",
		AwsRegion:          "eu-central-1",
		LogLevel:           "info",
	}
}

// Load reads the given .env files (".env" when none are named) and then the
// environment. Missing .env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv overlays JUDGE_* variables on Defaults.
func FromEnv() (*Config, error) {
	c := Defaults()
	p := parser{}
	p.str("JUDGE_SANDBOX", &c.Sandbox)
	p.str("JUDGE_WORK_ROOT", &c.WorkRoot)
	p.intVal("JUDGE_WORKERS", &c.Workers)
	p.intVal("JUDGE_QUEUE_SIZE", &c.QueueSize)
	p.str("JUDGE_LANGUAGES_FILE", &c.LanguagesFile)
	p.str("JUDGE_PROBLEMS_DIR", &c.ProblemsDir)
	p.strEmpty("JUDGE_SUBMISSIONS_DIR", &c.SubmissionsDir)
	p.int64Val("JUDGE_MAX_OUTPUT_BYTES", &c.MaxOutputBytes)
	p.int64Val("JUDGE_COMPILE_TIME_MS", &c.CompileTimeMs)
	p.int64Val("JUDGE_COMPILE_MEMORY_BYTES", &c.CompileMemoryBytes)
	p.boolVal("JUDGE_CGROUP", &c.Cgroup)
	p.str("JUDGE_CGROUP_ROOT", &c.CgroupRoot)
	p.str("JUDGE_NATS_URL", &c.NatsUrl)
	p.str("JUDGE_SQS_REQUEST_URL", &c.SqsRequestUrl)
	p.str("JUDGE_SQS_RESPONSE_URL", &c.SqsResponseUrl)
	p.str("JUDGE_AWS_REGION", &c.AwsRegion)
	p.str("JUDGE_LOG_LEVEL", &c.LogLevel)
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

func (c *Config) Validate() error {
	switch c.Sandbox {
	case "local", "isolate":
	default:
		return fmt.Errorf("unknown sandbox %q, want local or isolate", c.Sandbox)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size must not be negative, got %d", c.QueueSize)
	}
	if c.MaxOutputBytes <= 0 {
		return fmt.Errorf("max output bytes must be positive, got %d", c.MaxOutputBytes)
	}
	if c.CompileTimeMs <= 0 {
		return fmt.Errorf("compile time must be positive, got %d ms", c.CompileTimeMs)
	}
	if c.CompileMemoryBytes <= 0 {
		return fmt.Errorf("compile memory must be positive, got %d bytes", c.CompileMemoryBytes)
	}
	return nil
}

type parser struct {
	errs []error
}

func (p *parser) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return strings.TrimSpace(v), ok
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.lookup(key); ok && v != "" {
		*dst = v
	}
}

// strEmpty lets an explicitly empty value clear the default.
func (p *parser) strEmpty(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *parser) intVal(key string, dst *int) {
	var v int64
	if p.int64Val(key, &v) {
		*dst = int(v)
	}
}

func (p *parser) int64Val(key string, dst *int64) bool {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return false
	}
	*dst = n
	return true
}

func (p *parser) boolVal(key string, dst *bool) {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}
