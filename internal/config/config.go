package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or an env-file loaded in main).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	HappyRobot HappyRobotConfig
	Reconcile  ReconcileConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable base URL of this service.
	// Used to build the callback URL handed to the calling platform.
	// Optional: when empty, no callback URL is sent and status resolution
	// relies on polling / batch reconciliation only.
	PublicBaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// AdminEmailDomain grants the admin role to newly registered users whose
	// email ends with "@<domain>". Optional.
	AdminEmailDomain string
}

// HappyRobotConfig carries the calling-platform integration settings.
// Each credential pair is independently optional: a missing pair disables
// only the dependent capability (triggering, polling, or batch
// reconciliation), never the whole service.
type HappyRobotConfig struct {
	// Endpoint is the workflow trigger webhook URL. Required to start runs.
	Endpoint string
	// APIKey is sent on trigger requests when set.
	APIKey string

	// APIBase is the platform REST API base used for polling and the
	// failed-runs feed.
	APIBase string

	// PollingSecret + OrgID enable direct run polling.
	PollingSecret string
	OrgID         string

	// ReconcileToken + UseCaseID enable the failed-runs batch feed.
	ReconcileToken string
	UseCaseID      string

	// CallbackSecret, when set, must be echoed by the platform in the
	// x-callback-secret header on callback requests.
	CallbackSecret string
}

// ReconcileConfig tunes the status reconciler.
type ReconcileConfig struct {
	// GraceWindow is the minimum record age before the batch failed-run
	// match may flag a record. Protects calls still legitimately in flight.
	GraceWindow time.Duration
	// CacheTTL bounds how often the failed-runs feed is refetched.
	CacheTTL time.Duration
	// Lookback bounds how far back the failed-runs feed is queried.
	Lookback time.Duration
}

const defaultHappyRobotAPIBase = "https://platform.happyrobot.ai/api/v1"

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")
	c.Auth.AdminEmailDomain = strings.TrimPrefix(strings.TrimSpace(os.Getenv("ADMIN_EMAIL_DOMAIN")), "@")

	c.HappyRobot.Endpoint = strings.TrimSpace(os.Getenv("HAPPYROBOT_ENDPOINT"))
	c.HappyRobot.APIKey = os.Getenv("HAPPYROBOT_API_KEY")
	c.HappyRobot.APIBase = strings.TrimRight(strings.TrimSpace(os.Getenv("HAPPYROBOT_API_BASE")), "/")
	c.HappyRobot.PollingSecret = os.Getenv("HAPPYROBOT_POLLING_SECRET")
	c.HappyRobot.OrgID = strings.TrimSpace(os.Getenv("HAPPYROBOT_ORG_ID"))
	c.HappyRobot.ReconcileToken = os.Getenv("HAPPYROBOT_RECONCILE_TOKEN")
	c.HappyRobot.UseCaseID = strings.TrimSpace(os.Getenv("HAPPYROBOT_USE_CASE_ID"))
	c.HappyRobot.CallbackSecret = os.Getenv("HAPPYROBOT_CALLBACK_SECRET")

	c.Reconcile.GraceWindow = mustDuration("RECONCILE_GRACE_WINDOW")
	c.Reconcile.CacheTTL = mustDuration("RECONCILE_CACHE_TTL")
	c.Reconcile.Lookback = mustDuration("RECONCILE_LOOKBACK")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.HappyRobot.Endpoint == "" {
			errs = append(errs, errors.New("HAPPYROBOT_ENDPOINT is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.HappyRobot.APIBase == "" {
		c.HappyRobot.APIBase = defaultHappyRobotAPIBase
	}
	// A half-configured credential pair is almost certainly an operator
	// mistake; reject it rather than silently disabling the capability.
	if (c.HappyRobot.PollingSecret == "") != (c.HappyRobot.OrgID == "") {
		errs = append(errs, errors.New("HAPPYROBOT_POLLING_SECRET and HAPPYROBOT_ORG_ID must be set together"))
	}
	if (c.HappyRobot.ReconcileToken == "") != (c.HappyRobot.UseCaseID == "") {
		errs = append(errs, errors.New("HAPPYROBOT_RECONCILE_TOKEN and HAPPYROBOT_USE_CASE_ID must be set together"))
	}

	if c.Reconcile.GraceWindow <= 0 {
		c.Reconcile.GraceWindow = 60 * time.Second
	}
	if c.Reconcile.CacheTTL <= 0 {
		c.Reconcile.CacheTTL = 10 * time.Second
	}
	if c.Reconcile.Lookback <= 0 {
		c.Reconcile.Lookback = 5 * time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// CallbackURL returns the publicly reachable callback endpoint, or "" when
// PUBLIC_BASE_URL is not configured.
func (c Config) CallbackURL() string {
	if c.App.PublicBaseURL == "" {
		return ""
	}
	return c.App.PublicBaseURL + "/webhooks/happyrobot/callback"
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
