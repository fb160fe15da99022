package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/Xean001/tubedrop/internal/core/domain"
)

// EnvConfigPath names the environment variable read when --config is absent.
const EnvConfigPath = "TUBEDROP_CONFIG"

// Provider backends
const (
	BackendYouTube = "youtube"
	BackendYtDlp   = "ytdlp"
)

// Worker bounds
const (
	MinWorkers = 1
	MaxWorkers = 10
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Download  DownloadConfig  `yaml:"download"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Provider  ProviderConfig  `yaml:"provider"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Log       LogConfig       `yaml:"log"`

	// Args holds positional command-line arguments.
	Args []string `yaml:"-"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	CleanupGrace    Duration `yaml:"cleanup_grace"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type DownloadConfig struct {
	Workflow          string `yaml:"workflow"`
	Workers           int    `yaml:"workers"`
	OutputDir         string `yaml:"output_dir"`
	PreferProgressive bool   `yaml:"prefer_progressive"`
	AudioMP3          bool   `yaml:"audio_mp3"`
}

type WorkspaceConfig struct {
	Root          string   `yaml:"root"`
	MaxAge        Duration `yaml:"max_age"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

type ProviderConfig struct {
	Backend           string   `yaml:"backend"`
	Timeout           Duration `yaml:"timeout"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	YtDlpPath         string   `yaml:"ytdlp_path"`
}

type FFmpegConfig struct {
	Path         string   `yaml:"path"`
	Timeout      Duration `yaml:"timeout"`
	VerifyOutput bool     `yaml:"verify_output"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8081",
			CleanupGrace:    Duration(time.Second),
			ReadTimeout:     Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Download: DownloadConfig{
			Workflow:  string(domain.WorkflowAudio),
			Workers:   2,
			OutputDir: "sounds",
		},
		Workspace: WorkspaceConfig{
			Root:          filepath.Join(os.TempDir(), "tubedrop"),
			MaxAge:        Duration(time.Hour),
			SweepInterval: Duration(10 * time.Minute),
		},
		Provider: ProviderConfig{
			Backend:           BackendYouTube,
			Timeout:           Duration(30 * time.Second),
			RequestsPerSecond: 2,
			Burst:             4,
			YtDlpPath:         "yt-dlp",
		},
		FFmpeg: FFmpegConfig{
			Path:         "ffmpeg",
			Timeout:      Duration(10 * time.Minute),
			VerifyOutput: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// command-line flags, in increasing order of precedence.
func Load(name string, args []string) (*Config, error) {
	cfg := Default()

	path := configPath(args)
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", path, "path to a YAML config file (env "+EnvConfigPath+")")
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Args = fs.Args()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// BindFlags registers one flag per setting, defaulting to the current value.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "HTTP listen address")
	fs.Var(&c.Server.CleanupGrace, "cleanup-grace", "delay before a served file is deleted")
	fs.Var(&c.Server.ReadTimeout, "read-timeout", "HTTP read timeout")
	fs.Var(&c.Server.ShutdownTimeout, "shutdown-timeout", "graceful shutdown timeout")

	fs.StringVarP(&c.Download.Workflow, "format", "f", c.Download.Workflow, "workflow: audio (mp3) or video (mp4)")
	fs.IntVarP(&c.Download.Workers, "workers", "w", c.Download.Workers, "collection items processed in parallel")
	fs.StringVarP(&c.Download.OutputDir, "output", "o", c.Download.OutputDir, "directory for downloaded files")
	fs.BoolVar(&c.Download.PreferProgressive, "prefer-progressive", c.Download.PreferProgressive, "use combined streams when available")
	fs.BoolVar(&c.Download.AudioMP3, "audio-mp3", c.Download.AudioMP3, "convert audio downloads to mp3")

	fs.StringVar(&c.Workspace.Root, "workspace", c.Workspace.Root, "root for temporary request workspaces")
	fs.Var(&c.Workspace.MaxAge, "workspace-max-age", "age after which leftover workspaces are swept")
	fs.Var(&c.Workspace.SweepInterval, "sweep-interval", "how often leftover workspaces are swept")

	fs.StringVar(&c.Provider.Backend, "provider", c.Provider.Backend, "video platform backend: youtube or ytdlp")
	fs.Var(&c.Provider.Timeout, "provider-timeout", "provider request timeout")
	fs.Float64Var(&c.Provider.RequestsPerSecond, "provider-rps", c.Provider.RequestsPerSecond, "provider requests per second (0 = unlimited)")
	fs.IntVar(&c.Provider.Burst, "provider-burst", c.Provider.Burst, "provider request burst")
	fs.StringVar(&c.Provider.YtDlpPath, "ytdlp-path", c.Provider.YtDlpPath, "yt-dlp executable")

	fs.StringVar(&c.FFmpeg.Path, "ffmpeg-path", c.FFmpeg.Path, "ffmpeg executable")
	fs.Var(&c.FFmpeg.Timeout, "ffmpeg-timeout", "timeout for one ffmpeg run")
	fs.BoolVar(&c.FFmpeg.VerifyOutput, "verify-output", c.FFmpeg.VerifyOutput, "check merged files for both tracks")

	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level (trace, debug, info, warn, error)")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format: text or json")
}

// Validate normalizes values and rejects the ones that cannot work.
func (c *Config) Validate() error {
	wf, ok := domain.ParseWorkflow(c.Download.Workflow)
	if !ok {
		return fmt.Errorf("unknown workflow %q", c.Download.Workflow)
	}
	c.Download.Workflow = string(wf)

	if c.Download.Workers < MinWorkers {
		c.Download.Workers = MinWorkers
	}
	if c.Download.Workers > MaxWorkers {
		c.Download.Workers = MaxWorkers
	}

	switch c.Provider.Backend {
	case BackendYouTube, BackendYtDlp:
	default:
		return fmt.Errorf("unknown provider backend %q", c.Provider.Backend)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if c.Download.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace root must not be empty")
	}
	return nil
}

// Workflow returns the validated download workflow.
func (c *Config) Workflow() domain.Workflow {
	wf, _ := domain.ParseWorkflow(c.Download.Workflow)
	return wf
}

// configPath finds --config before the real flag set exists, so the file
// can be applied underneath the flags.
func configPath(args []string) string {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	p := fs.String("config", os.Getenv(EnvConfigPath), "")
	_ = fs.Parse(args)
	return *p
}
