package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the dialer.
type Config struct {
	Softswitch SoftswitchConfig `json:"softswitch"`
	ASR        ASRConfig        `json:"asr"`
	Database   DatabaseConfig   `json:"database"`
	Admin      AdminConfig      `json:"admin"`
	Dialer     DialerConfig     `json:"dialer"`
	AMD        AMDConfig        `json:"amd"`
	BargeIn    BargeInConfig    `json:"barge_in"`
	Waiting    WaitingConfig    `json:"waiting"`
	Paths      PathsConfig      `json:"paths"`
}

// SoftswitchConfig holds Event Socket connection settings.
type SoftswitchConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	// Gateway is the outbound trunk name used in originate dial strings.
	Gateway string `json:"gateway"`
	// OriginateTimeoutS bounds how long an Originate may ring.
	OriginateTimeoutS int `json:"originate_timeout_s"`
}

// ASRConfig holds the speech recognition endpoints. Batch is a
// whisper-compatible HTTP endpoint; Stream is the WebSocket endpoint the
// softswitch forks caller audio to.
type ASRConfig struct {
	BatchURL  string `json:"batch_url"`
	StreamURL string `json:"stream_url"`
	APIKey    string `json:"api_key"`
	Model     string `json:"model"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	PostgresURL string `json:"postgres_url"`
}

// AdminConfig holds the admin HTTP surface configuration.
type AdminConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DialerConfig holds campaign runner settings.
type DialerConfig struct {
	MaxConcurrentCalls int `json:"max_concurrent_calls"`
	MaxCallDurationS   int `json:"max_call_duration_s"`
	BatchSize          int `json:"batch_size"`
	PollIntervalS      int `json:"poll_interval_s"`
	RetryNoAnswerMin   int `json:"retry_no_answer_min"`
	RetryBusyMin       int `json:"retry_busy_min"`
	MaxAttempts        int `json:"max_attempts"`
	// LegalHours maps a lowercase English weekday name to allowed calling
	// windows, e.g. "monday": ["09:30-12:00", "14:00-19:30"]. A missing day
	// means no calls that day.
	LegalHours map[string][]string `json:"legal_hours"`
	// QualificationThreshold is the score at or above which a completed call
	// becomes a lead.
	QualificationThreshold float64 `json:"qualification_threshold"`
}

// AMDConfig holds answering machine detection settings.
type AMDConfig struct {
	PrimingDelayMs int     `json:"priming_delay_ms"`
	RecordWindowMs int     `json:"record_window_ms"`
	SilenceFloorDB float64 `json:"silence_floor_db"`
}

// BargeInConfig holds the barge-in trigger thresholds.
type BargeInConfig struct {
	SpeechThresholdMs int `json:"speech_threshold_ms"`
	GraceMs           int `json:"grace_ms"`
	SmoothDelayMs     int `json:"smooth_delay_ms"`
}

// WaitingConfig holds the reply-capture settings.
type WaitingConfig struct {
	SilenceThresholdMs int `json:"silence_threshold_ms"`
	StepTimeoutS       int `json:"step_timeout_s"`
	MinSpeechMs        int `json:"min_speech_ms"`
	GrowthPollMs       int `json:"growth_poll_ms"`
}

// PathsConfig holds filesystem areas. RecordingsDir belongs to the
// softswitch process and is read-only for us.
type PathsConfig struct {
	RecordingsDir string `json:"recordings_dir"`
	PromptsDir    string `json:"prompts_dir"`
	GrammarsDir   string `json:"grammars_dir"`
	ObjectionsDir string `json:"objections_dir"`
	DefaultTheme  string `json:"default_theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Softswitch: SoftswitchConfig{
			Host:              "127.0.0.1",
			Port:              8021,
			Password:          "ClueCon",
			Gateway:           "trunk",
			OriginateTimeoutS: 30,
		},
		ASR: ASRConfig{
			BatchURL:  "http://localhost:8001/v1/audio/transcriptions",
			StreamURL: "ws://localhost:8002/stream",
			Model:     "whisper-large-v3",
		},
		Database: DatabaseConfig{
			PostgresURL: "",
		},
		Admin: AdminConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Dialer: DialerConfig{
			MaxConcurrentCalls: 10,
			MaxCallDurationS:   300,
			BatchSize:          20,
			PollIntervalS:      10,
			RetryNoAnswerMin:   30,
			RetryBusyMin:       5,
			MaxAttempts:        3,
			LegalHours: map[string][]string{
				"monday":    {"10:00-13:00", "14:00-20:00"},
				"tuesday":   {"10:00-13:00", "14:00-20:00"},
				"wednesday": {"10:00-13:00", "14:00-20:00"},
				"thursday":  {"10:00-13:00", "14:00-20:00"},
				"friday":    {"10:00-13:00", "14:00-20:00"},
				"saturday":  {"10:00-13:00"},
			},
			QualificationThreshold: 60,
		},
		AMD: AMDConfig{
			PrimingDelayMs: 350,
			RecordWindowMs: 2300,
			SilenceFloorDB: -50,
		},
		BargeIn: BargeInConfig{
			SpeechThresholdMs: 1500,
			GraceMs:           500,
			SmoothDelayMs:     500,
		},
		Waiting: WaitingConfig{
			SilenceThresholdMs: 600,
			StepTimeoutS:       10,
			MinSpeechMs:        300,
			GrowthPollMs:       100,
		},
		Paths: PathsConfig{
			RecordingsDir: "/var/lib/vocira/recordings",
			PromptsDir:    "/var/lib/vocira/prompts",
			GrammarsDir:   "/var/lib/vocira/grammars",
			ObjectionsDir: "/var/lib/vocira/objections",
			DefaultTheme:  "energy",
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envFloat loads a float64 environment variable into the target pointer if set and valid
func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// Load loads configuration from environment variables and config file.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	envString("VOCIRA_ESL_HOST", &cfg.Softswitch.Host)
	envInt("VOCIRA_ESL_PORT", &cfg.Softswitch.Port)
	envString("VOCIRA_ESL_PASSWORD", &cfg.Softswitch.Password)
	envString("VOCIRA_ESL_GATEWAY", &cfg.Softswitch.Gateway)
	envInt("VOCIRA_ESL_ORIGINATE_TIMEOUT_S", &cfg.Softswitch.OriginateTimeoutS)

	envString("VOCIRA_ASR_BATCH_URL", &cfg.ASR.BatchURL)
	envString("VOCIRA_ASR_STREAM_URL", &cfg.ASR.StreamURL)
	envString("VOCIRA_ASR_API_KEY", &cfg.ASR.APIKey)
	envString("VOCIRA_ASR_MODEL", &cfg.ASR.Model)

	envString("VOCIRA_POSTGRES_URL", &cfg.Database.PostgresURL)

	envString("VOCIRA_ADMIN_HOST", &cfg.Admin.Host)
	envInt("VOCIRA_ADMIN_PORT", &cfg.Admin.Port)

	envInt("VOCIRA_MAX_CONCURRENT_CALLS", &cfg.Dialer.MaxConcurrentCalls)
	envInt("VOCIRA_MAX_CALL_DURATION_S", &cfg.Dialer.MaxCallDurationS)
	envInt("VOCIRA_BATCH_SIZE", &cfg.Dialer.BatchSize)
	envInt("VOCIRA_POLL_INTERVAL_S", &cfg.Dialer.PollIntervalS)
	envFloat("VOCIRA_QUALIFICATION_THRESHOLD", &cfg.Dialer.QualificationThreshold)

	envInt("VOCIRA_AMD_PRIMING_DELAY_MS", &cfg.AMD.PrimingDelayMs)
	envInt("VOCIRA_AMD_RECORD_WINDOW_MS", &cfg.AMD.RecordWindowMs)
	envFloat("VOCIRA_AMD_SILENCE_FLOOR_DB", &cfg.AMD.SilenceFloorDB)

	envInt("VOCIRA_BARGE_IN_THRESHOLD_MS", &cfg.BargeIn.SpeechThresholdMs)
	envInt("VOCIRA_BARGE_IN_GRACE_MS", &cfg.BargeIn.GraceMs)
	envInt("VOCIRA_BARGE_IN_SMOOTH_DELAY_MS", &cfg.BargeIn.SmoothDelayMs)

	envString("VOCIRA_RECORDINGS_DIR", &cfg.Paths.RecordingsDir)
	envString("VOCIRA_PROMPTS_DIR", &cfg.Paths.PromptsDir)
	envString("VOCIRA_GRAMMARS_DIR", &cfg.Paths.GrammarsDir)
	envString("VOCIRA_OBJECTIONS_DIR", &cfg.Paths.ObjectionsDir)
	envString("VOCIRA_DEFAULT_THEME", &cfg.Paths.DefaultTheme)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	var errs []string

	if c.Softswitch.Host == "" {
		errs = append(errs, "softswitch host is required")
	}
	if c.Softswitch.Port < 1 || c.Softswitch.Port > 65535 {
		errs = append(errs, "softswitch port must be between 1 and 65535")
	}
	if c.Softswitch.Password == "" {
		errs = append(errs, "softswitch password is required")
	}

	if c.ASR.BatchURL == "" {
		errs = append(errs, "ASR batch URL is required")
	} else if !isValidURL(c.ASR.BatchURL) {
		errs = append(errs, "ASR batch URL must be a valid URL")
	}
	if c.ASR.StreamURL != "" && !isValidURL(c.ASR.StreamURL) {
		errs = append(errs, "ASR stream URL must be a valid URL")
	}

	if c.Database.PostgresURL != "" && !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}

	if c.Admin.Port < 1 || c.Admin.Port > 65535 {
		errs = append(errs, "admin port must be between 1 and 65535")
	}

	if c.Dialer.MaxConcurrentCalls < 1 {
		errs = append(errs, "max_concurrent_calls must be at least 1")
	}
	if c.Dialer.MaxCallDurationS < 1 {
		errs = append(errs, "max_call_duration_s must be positive")
	}
	if c.Dialer.MaxAttempts < 1 {
		errs = append(errs, "max_attempts must be at least 1")
	}
	for day, windows := range c.Dialer.LegalHours {
		if !validWeekday(day) {
			errs = append(errs, fmt.Sprintf("legal_hours: unknown weekday %q", day))
		}
		for _, w := range windows {
			if !validWindow(w) {
				errs = append(errs, fmt.Sprintf("legal_hours: malformed window %q for %s", w, day))
			}
		}
	}

	if c.AMD.RecordWindowMs < 500 {
		errs = append(errs, "amd record_window_ms must be at least 500")
	}
	if c.AMD.SilenceFloorDB >= 0 {
		errs = append(errs, "amd silence_floor_db must be negative")
	}

	if c.BargeIn.SpeechThresholdMs < 1 {
		errs = append(errs, "barge_in speech_threshold_ms must be positive")
	}

	if c.Waiting.GrowthPollMs < 1 {
		errs = append(errs, "waiting growth_poll_ms must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validWeekday(day string) bool {
	switch day {
	case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		return true
	}
	return false
}

func validWindow(w string) bool {
	from, to, ok := strings.Cut(w, "-")
	if !ok {
		return false
	}
	start, okFrom := clockMinutes(from)
	end, okTo := clockMinutes(to)
	return okFrom && okTo && start < end
}

// clockMinutes parses "HH:MM" into minutes since midnight.
func clockMinutes(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, false
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("VOCIRA_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	configDir := filepath.Join(homeDir, ".config", "vocira")
	configPath := filepath.Join(configDir, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	altPath := filepath.Join(homeDir, ".vocira", "config.json")
	if _, err := os.Stat(altPath); err == nil {
		return altPath
	}

	return configPath
}
