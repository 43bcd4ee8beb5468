package internal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName names the binary, the XDG directories and the env prefix.
const AppName = "vidscope"

// CommandRunner executes external commands
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner
type DefaultCommandRunner struct{}

func (r *DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Config holds application settings
type Config struct {
	// User configurable settings
	AnalysisModel      string
	ReportModel        string
	LLMTimeout         time.Duration
	WhisperTimeout     time.Duration
	TranscriptLanguage string
	FallbackWhisper    bool
	DatabaseDriver     string
	DatabaseDSN        string
	ListenAddr         string
	NATSURL            string
	LogLevel           string
	LogFormat          string
	AnalysisPrompt     string
	ReportPrompt       string
	Verbose            bool
	Quiet              bool
	OpenAIAPIKey       string

	// Fixed XDG paths (not configurable)
	ConfigDir string
	DataDir   string
	CacheDir  string
	TempDir   string
}

//go:embed config.toml analysis_prompt.txt report_prompt.txt
var defaultFS embed.FS

// WhisperLimit is the maximum file size accepted by OpenAI's Whisper API (25 MiB)
const WhisperLimit int64 = 25 << 20

// ensureDefaultFile checks if a file exists in the specified directory
// and creates it from the embedded default if it doesn't exist
func ensureDefaultFile(configDir, embedFilename, description string) error {
	filePath := filepath.Join(configDir, embedFilename)

	// Leave user edits alone
	if FileExists(filePath) {
		return nil
	}

	// Make sure the config directory exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Read the embedded default file
	defaultContent, err := defaultFS.ReadFile(embedFilename)
	if err != nil {
		return fmt.Errorf("reading embedded default %s: %w", description, err)
	}

	// Write it next to the user's other settings
	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return fmt.Errorf("writing default %s: %w", description, err)
	}

	fmt.Fprintf(os.Stderr, "Created default %s at %s\n", description, filePath)
	return nil
}

// EnsureDefaults writes the default config and prompt templates into the
// config directory when they are missing.
func EnsureDefaults(configDir string) error {
	var errs []error
	for name, description := range map[string]string{
		"config.toml":         "configuration",
		"analysis_prompt.txt": "analysis prompt template",
		"report_prompt.txt":   "report prompt template",
	} {
		if err := ensureDefaultFile(configDir, name, description); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InitConfig loads .env, then the config file, then environment overrides.
// An explicit configFile path replaces the XDG lookup.
func InitConfig(configFile string) *Config {
	// .env is optional
	_ = godotenv.Load()

	// XDG standard directories
	configDir := filepath.Join(xdg.ConfigHome, AppName)
	dataDir := filepath.Join(xdg.DataHome, AppName)
	cacheDir := filepath.Join(xdg.CacheHome, AppName)
	// Whisper chunks live under the cache dir and are purged on exit
	tempDir := filepath.Join(cacheDir, "temp_chunks")

	// Initialize viper
	v := viper.New()

	// Set default values for configurable settings
	v.SetDefault("analysis_model", "gpt-4o-mini")
	v.SetDefault("report_model", "gpt-4o-mini")
	v.SetDefault("llm_timeout", 3*time.Minute)
	v.SetDefault("whisper_timeout", 10*time.Minute)
	v.SetDefault("transcript_language", "ja")
	v.SetDefault("fallback_whisper", false)
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_dsn", filepath.Join(dataDir, AppName+".db"))
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
	v.SetDefault("analysis_prompt", "") // empty uses analysis_prompt.txt from the config dir
	v.SetDefault("report_prompt", "")   // empty uses report_prompt.txt from the config dir
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)

	// Set config name and paths
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	// Environment variables, e.g. VIDSCOPE_TRANSCRIPT_LANGUAGE
	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// The OpenAI key uses the SDK's own variable name, without the prefix
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")

	// Read config file, a missing one is fine
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	// Create config struct from viper
	config := &Config{
		// User configurable settings
		AnalysisModel:      v.GetString("analysis_model"),
		ReportModel:        v.GetString("report_model"),
		LLMTimeout:         v.GetDuration("llm_timeout"),
		WhisperTimeout:     v.GetDuration("whisper_timeout"),
		TranscriptLanguage: v.GetString("transcript_language"),
		FallbackWhisper:    v.GetBool("fallback_whisper"),
		DatabaseDriver:     v.GetString("database_driver"),
		DatabaseDSN:        v.GetString("database_dsn"),
		ListenAddr:         v.GetString("listen_addr"),
		NATSURL:            v.GetString("nats_url"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		AnalysisPrompt:     v.GetString("analysis_prompt"),
		ReportPrompt:       v.GetString("report_prompt"),
		Verbose:            v.GetBool("verbose"),
		Quiet:              v.GetBool("quiet"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),

		// Fixed XDG paths
		ConfigDir: configDir,
		DataDir:   dataDir,
		CacheDir:  cacheDir,
		TempDir:   tempDir,
	}

	if config.Verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}

	return config
}
