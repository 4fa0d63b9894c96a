package internal

import (
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sowilo/internal/learnservice"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/vcs"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Learning LearningConfig    `yaml:"learning"`
	Git      GitConfig         `yaml:"git"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Learning.Validate(); err != nil {
		return err
	}
	return c.Git.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// LearningConfig holds the scheduling and unlocking parameters.
type LearningConfig struct {
	// MasteryThreshold is the familiarity at which a node counts as mastered.
	MasteryThreshold int `yaml:"mastery_threshold"`
	// Intervals are review intervals in days, indexed by SRS stage.
	Intervals            []int `yaml:"intervals"`
	ResumePausedOnReview bool  `yaml:"resume_paused_on_review"`
	CascadeUnlocks       bool  `yaml:"cascade_unlocks"`
}

var errNonPositiveInterval = errors.New("must be positive")

// Validate validates the learning configuration.
func (c *LearningConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MasteryThreshold, validation.Required,
			validation.Min(models.MinFamiliarity+1), validation.Max(models.MaxFamiliarity)),
		validation.Field(&c.Intervals, validation.Required, validation.By(positiveInts)),
	)
}

func positiveInts(value interface{}) error {
	days, _ := value.([]int)
	for i, d := range days {
		if d <= 0 {
			return fmt.Errorf("interval %d: %w", i, errNonPositiveInterval)
		}
	}
	return nil
}

// Settings converts the configuration into service settings.
func (c *LearningConfig) Settings() learnservice.Settings {
	return learnservice.Settings{
		MasteryThreshold:     c.MasteryThreshold,
		Intervals:            append([]int(nil), c.Intervals...),
		ResumePausedOnReview: c.ResumePausedOnReview,
		CascadeUnlocks:       c.CascadeUnlocks,
	}
}

// GitConfig controls vault snapshots.
type GitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.AuthorName, validation.Required),
		validation.Field(&c.AuthorEmail, validation.Required),
	)
}

// Author returns the snapshot author.
func (c *GitConfig) Author() vcs.Author {
	return vcs.Author{Name: c.AuthorName, Email: c.AuthorEmail}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./sowilo.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Learning: LearningConfig{
			MasteryThreshold: 4,
			Intervals:        []int{1, 3, 7, 14, 30},
		},
		Git: GitConfig{
			AuthorName:  "sowilo",
			AuthorEmail: "sowilo@localhost",
		},
	}
}
