package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	ENV_PREFIX = "THERMAL_STREAMER"

	ACCOUNT                     = "Account"
	USER                        = "User"
	ROLE                        = "Role"
	DATABASE                    = "Database"
	SCHEMA                      = "Schema"
	PIPE                        = "Pipe"
	CHANNEL_NAME                = "Channel_Name"
	AUTH_METHOD                 = "Auth_Method"
	PRIVATE_KEY_FILE            = "Private_Key_File"
	PAT_TOKEN                   = "Pat_Token"
	CONTROL_PLANE_URL           = "Control_Plane_Url"
	TOKEN_LIFETIME              = "Token_Lifetime"
	TOKEN_REFRESH_MARGIN        = "Token_Refresh_Margin"
	HTTP_REQUEST_TIMEOUT        = "Http_Request_Timeout"
	SUBMIT_MAX_ATTEMPTS         = "Submit_Max_Attempts"
	SUBMIT_BACKOFF_INITIAL      = "Submit_Backoff_Initial"
	BATCH_SIZE                  = "Batch_Size"
	BATCH_INTERVAL              = "Batch_Interval"
	STATS_REPORT_BATCH_INTERVAL = "Stats_Report_Batch_Interval"
	MONITOR_LISTEN_ADDR         = "Monitor_Listen_Addr"

	AuthMethodKeyPair = "key_pair"
	AuthMethodPat     = "pat"
)

type Config struct {
	Account                  string `validate:"required"`
	User                     string `validate:"required"`
	Role                     string `validate:"required"`
	Database                 string `validate:"required"`
	Schema                   string `validate:"required"`
	Pipe                     string `validate:"required"`
	ChannelName              string `validate:"required"`
	AuthMethod               string `validate:"required,oneof=key_pair pat"`
	PrivateKeyFile           string
	PatToken                 string
	ControlPlaneUrl          string `validate:"required,url"`
	TokenLifetime            time.Duration
	TokenRefreshMargin       time.Duration
	HttpRequestTimeout       time.Duration
	SubmitMaxAttempts        int `validate:"min=1"`
	SubmitBackoffInitial     time.Duration
	BatchSize                int `validate:"min=1"`
	BatchInterval            time.Duration
	StatsReportBatchInterval int
	MonitorListenAddr        string
}

// ValidationError is the startup-time configuration failure.  It is fatal:
// the process has nothing useful to do with an incomplete configuration.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + e.Message
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", ACCOUNT, c.Account)
	fmt.Fprintf(&b, "%s: %s\n", USER, c.User)
	fmt.Fprintf(&b, "%s: %s\n", ROLE, c.Role)
	fmt.Fprintf(&b, "%s: %s\n", DATABASE, c.Database)
	fmt.Fprintf(&b, "%s: %s\n", SCHEMA, c.Schema)
	fmt.Fprintf(&b, "%s: %s\n", PIPE, c.Pipe)
	fmt.Fprintf(&b, "%s: %s\n", CHANNEL_NAME, c.ChannelName)
	fmt.Fprintf(&b, "%s: %s\n", AUTH_METHOD, c.AuthMethod)
	fmt.Fprintf(&b, "%s: %s\n", PRIVATE_KEY_FILE, c.PrivateKeyFile)
	fmt.Fprintf(&b, "%s: %s\n", CONTROL_PLANE_URL, c.ControlPlaneUrl)
	fmt.Fprintf(&b, "%s: %s\n", TOKEN_LIFETIME, c.TokenLifetime)
	fmt.Fprintf(&b, "%s: %s\n", TOKEN_REFRESH_MARGIN, c.TokenRefreshMargin)
	fmt.Fprintf(&b, "%s: %s\n", HTTP_REQUEST_TIMEOUT, c.HttpRequestTimeout)
	fmt.Fprintf(&b, "%s: %d\n", SUBMIT_MAX_ATTEMPTS, c.SubmitMaxAttempts)
	fmt.Fprintf(&b, "%s: %s\n", SUBMIT_BACKOFF_INITIAL, c.SubmitBackoffInitial)
	fmt.Fprintf(&b, "%s: %d\n", BATCH_SIZE, c.BatchSize)
	fmt.Fprintf(&b, "%s: %s\n", BATCH_INTERVAL, c.BatchInterval)
	fmt.Fprintf(&b, "%s: %d\n", STATS_REPORT_BATCH_INTERVAL, c.StatsReportBatchInterval)
	fmt.Fprintf(&b, "%s: %s\n", MONITOR_LISTEN_ADDR, c.MonitorListenAddr)

	return b.String()
}

// GetConfig resolves the configuration from defaults, an optional json
// config file (the shape the original deployment used) and THERMAL_STREAMER_*
// environment variable overrides, then validates it.
func GetConfig(configFile string) (*Config, error) {
	options := viper.New()

	options.SetDefault(ROLE, "PUBLIC")
	options.SetDefault(CHANNEL_NAME, "thermal_channel")
	options.SetDefault(AUTH_METHOD, "")
	options.SetDefault(TOKEN_LIFETIME, 60*time.Minute)
	options.SetDefault(TOKEN_REFRESH_MARGIN, 5*time.Minute)
	options.SetDefault(HTTP_REQUEST_TIMEOUT, 30*time.Second)
	options.SetDefault(SUBMIT_MAX_ATTEMPTS, 4)
	options.SetDefault(SUBMIT_BACKOFF_INITIAL, 500*time.Millisecond)
	options.SetDefault(BATCH_SIZE, 10)
	options.SetDefault(BATCH_INTERVAL, 5*time.Second)
	options.SetDefault(STATS_REPORT_BATCH_INTERVAL, 10)
	options.SetDefault(MONITOR_LISTEN_ADDR, ":9090")

	if configFile != "" {
		options.SetConfigFile(configFile)
		if err := options.ReadInConfig(); err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("unable to read config file %s: %s", configFile, err)}
		}
	}

	options.SetEnvPrefix(ENV_PREFIX)
	options.AutomaticEnv()

	cfg := &Config{
		Account:                  options.GetString(ACCOUNT),
		User:                     options.GetString(USER),
		Role:                     options.GetString(ROLE),
		Database:                 options.GetString(DATABASE),
		Schema:                   options.GetString(SCHEMA),
		Pipe:                     options.GetString(PIPE),
		ChannelName:              options.GetString(CHANNEL_NAME),
		AuthMethod:               options.GetString(AUTH_METHOD),
		PrivateKeyFile:           options.GetString(PRIVATE_KEY_FILE),
		PatToken:                 options.GetString(PAT_TOKEN),
		ControlPlaneUrl:          options.GetString(CONTROL_PLANE_URL),
		TokenLifetime:            options.GetDuration(TOKEN_LIFETIME),
		TokenRefreshMargin:       options.GetDuration(TOKEN_REFRESH_MARGIN),
		HttpRequestTimeout:       options.GetDuration(HTTP_REQUEST_TIMEOUT),
		SubmitMaxAttempts:        options.GetInt(SUBMIT_MAX_ATTEMPTS),
		SubmitBackoffInitial:     options.GetDuration(SUBMIT_BACKOFF_INITIAL),
		BatchSize:                options.GetInt(BATCH_SIZE),
		BatchInterval:            options.GetDuration(BATCH_INTERVAL),
		StatsReportBatchInterval: options.GetInt(STATS_REPORT_BATCH_INTERVAL),
		MonitorListenAddr:        options.GetString(MONITOR_LISTEN_ADDR),
	}

	if cfg.ControlPlaneUrl == "" && cfg.Account != "" {
		cfg.ControlPlaneUrl = fmt.Sprintf("https://%s.snowflakecomputing.com", strings.ToLower(cfg.Account))
	}

	// Infer the auth method when the config file only carries the credential
	// material, the way the original json config did.
	if cfg.AuthMethod == "" {
		if cfg.PatToken != "" && cfg.PrivateKeyFile == "" {
			cfg.AuthMethod = AuthMethodPat
		} else if cfg.PrivateKeyFile != "" && cfg.PatToken == "" {
			cfg.AuthMethod = AuthMethodKeyPair
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var missing []string
		for _, fieldErr := range err.(validator.ValidationErrors) {
			missing = append(missing, fieldErr.Field())
		}
		return &ValidationError{Message: "missing or invalid keys: " + strings.Join(missing, ", ")}
	}

	switch cfg.AuthMethod {
	case AuthMethodKeyPair:
		if cfg.PrivateKeyFile == "" {
			return &ValidationError{Message: "auth_method key_pair requires private_key_file"}
		}
		if cfg.PatToken != "" {
			return &ValidationError{Message: "exactly one of private_key_file and pat_token must be configured"}
		}
	case AuthMethodPat:
		if cfg.PatToken == "" {
			return &ValidationError{Message: "auth_method pat requires pat_token"}
		}
		if cfg.PrivateKeyFile != "" {
			return &ValidationError{Message: "exactly one of private_key_file and pat_token must be configured"}
		}
	}

	return nil
}
