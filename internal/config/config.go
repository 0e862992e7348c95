// Package config provides configuration management for the clip service.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".twelvesocial"

	EnvPort           = "PORT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvDataDir        = "DATA_DIR"
	EnvStoreBackend   = "STORE_BACKEND"
	EnvAllowedOrigins = "ALLOWED_ORIGINS"
	EnvFFmpegPath     = "FFMPEG_PATH"

	EnvTwelveLabsAPIKey  = "TWELVE_LABS_API_KEY"
	EnvTwelveLabsBaseURL = "TWELVE_LABS_BASE_URL"
	EnvTwelveLabsIndexID = "TWELVE_LABS_INDEX_ID"

	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvOpenAIModel   = "OPENAI_MODEL"

	EnvTwilioAccountSID  = "TWILIO_ACCOUNT_SID"
	EnvTwilioAuthToken   = "TWILIO_AUTH_TOKEN"
	EnvTwilioPhoneNumber = "TWILIO_PHONE_NUMBER"

	EnvSpacesKey      = "DO_SPACES_KEY"
	EnvSpacesSecret   = "DO_SPACES_SECRET"
	EnvSpacesEndpoint = "DO_SPACES_ENDPOINT"
	EnvSpacesRegion   = "DO_SPACES_REGION"
	EnvSpacesBucket   = "DO_SPACES_BUCKET"

	DBFilename = "twelvesocial.db"

	DefaultTwelveLabsBaseURL = "https://api.twelvelabs.io/v1.3"
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenAIModel       = "gpt-3.5-turbo"

	// StoreMemory keeps tasks and chat sessions in process memory only;
	// StoreSQLite persists them across restarts.
	StoreMemory = "memory"
	StoreSQLite = "sqlite"

	DefaultExtractTimeout = 10 * time.Minute
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ClipDir() string
	StoreBackend() string
	AllowedOrigins() string
	FFmpegPath() string
	ExtractTimeout() time.Duration

	TwelveLabsAPIKey() string
	TwelveLabsBaseURL() string
	TwelveLabsIndexID() string

	OpenAIAPIKey() string
	OpenAIBaseURL() string
	OpenAIModel() string

	TwilioAccountSID() string
	TwilioAuthToken() string
	TwilioPhoneNumber() string

	SpacesKey() string
	SpacesSecret() string
	SpacesEndpoint() string
	SpacesRegion() string
	SpacesBucket() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	storeBackend string
	origins      string
	ffmpegPath   string

	twelveLabsAPIKey  string
	twelveLabsBaseURL string
	twelveLabsIndexID string

	openAIAPIKey  string
	openAIBaseURL string
	openAIModel   string

	twilioAccountSID  string
	twilioAuthToken   string
	twilioPhoneNumber string

	spacesKey      string
	spacesSecret   string
	spacesEndpoint string
	spacesRegion   string
	spacesBucket   string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		storeBackend: StoreMemory,
		origins:      "*",
		ffmpegPath:   "ffmpeg",

		twelveLabsBaseURL: DefaultTwelveLabsBaseURL,
		openAIBaseURL:     DefaultOpenAIBaseURL,
		openAIModel:       DefaultOpenAIModel,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if sb := os.Getenv(EnvStoreBackend); sb != "" {
		if sb != StoreMemory && sb != StoreSQLite {
			return nil, fmt.Errorf("invalid %s: %q (want %q or %q)", EnvStoreBackend, sb, StoreMemory, StoreSQLite)
		}
		cfg.storeBackend = sb
	}
	if o := os.Getenv(EnvAllowedOrigins); o != "" {
		cfg.origins = o
	}
	if f := os.Getenv(EnvFFmpegPath); f != "" {
		cfg.ffmpegPath = f
	}

	cfg.twelveLabsAPIKey = os.Getenv(EnvTwelveLabsAPIKey)
	if u := os.Getenv(EnvTwelveLabsBaseURL); u != "" {
		cfg.twelveLabsBaseURL = u
	}
	cfg.twelveLabsIndexID = os.Getenv(EnvTwelveLabsIndexID)

	cfg.openAIAPIKey = os.Getenv(EnvOpenAIAPIKey)
	if u := os.Getenv(EnvOpenAIBaseURL); u != "" {
		cfg.openAIBaseURL = u
	}
	if m := os.Getenv(EnvOpenAIModel); m != "" {
		cfg.openAIModel = m
	}

	cfg.twilioAccountSID = os.Getenv(EnvTwilioAccountSID)
	cfg.twilioAuthToken = os.Getenv(EnvTwilioAuthToken)
	cfg.twilioPhoneNumber = os.Getenv(EnvTwilioPhoneNumber)

	cfg.spacesKey = os.Getenv(EnvSpacesKey)
	cfg.spacesSecret = os.Getenv(EnvSpacesSecret)
	cfg.spacesEndpoint = os.Getenv(EnvSpacesEndpoint)
	cfg.spacesRegion = os.Getenv(EnvSpacesRegion)
	cfg.spacesBucket = os.Getenv(EnvSpacesBucket)

	return cfg, nil
}

func (c *EnvConfig) Port() int            { return c.port }
func (c *EnvConfig) LogLevel() string     { return c.logLevel }
func (c *EnvConfig) DataDir() string      { return c.dataDir }
func (c *EnvConfig) StoreBackend() string { return c.storeBackend }

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ClipDir returns the scratch directory extracted clips are written to.
// The service never deletes files from it; cleanup is a deployment concern.
func (c *EnvConfig) ClipDir() string {
	return filepath.Join(c.dataDir, "generated-clips")
}

func (c *EnvConfig) AllowedOrigins() string         { return c.origins }
func (c *EnvConfig) FFmpegPath() string             { return c.ffmpegPath }
func (c *EnvConfig) ExtractTimeout() time.Duration  { return DefaultExtractTimeout }

func (c *EnvConfig) TwelveLabsAPIKey() string  { return c.twelveLabsAPIKey }
func (c *EnvConfig) TwelveLabsBaseURL() string { return c.twelveLabsBaseURL }
func (c *EnvConfig) TwelveLabsIndexID() string { return c.twelveLabsIndexID }

func (c *EnvConfig) OpenAIAPIKey() string  { return c.openAIAPIKey }
func (c *EnvConfig) OpenAIBaseURL() string { return c.openAIBaseURL }
func (c *EnvConfig) OpenAIModel() string   { return c.openAIModel }

func (c *EnvConfig) TwilioAccountSID() string  { return c.twilioAccountSID }
func (c *EnvConfig) TwilioAuthToken() string   { return c.twilioAuthToken }
func (c *EnvConfig) TwilioPhoneNumber() string { return c.twilioPhoneNumber }

func (c *EnvConfig) SpacesKey() string      { return c.spacesKey }
func (c *EnvConfig) SpacesSecret() string   { return c.spacesSecret }
func (c *EnvConfig) SpacesEndpoint() string { return c.spacesEndpoint }
func (c *EnvConfig) SpacesRegion() string   { return c.spacesRegion }
func (c *EnvConfig) SpacesBucket() string   { return c.spacesBucket }

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
