package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	APIConfig struct {
		BaseURL string
		Timeout time.Duration // 0: no timeout
	}

	SessionConfig struct {
		RememberFor   time.Duration // lifetime of the durable (remember me) cookie
		SecureCookies bool
	}

	NotifierConfig struct {
		Enabled  bool
		Interval time.Duration
		Month    int // 0: current month
		Year     int // 0: current year
		Token    string
		Location *time.Location
	}

	RedisConfig struct {
		Addr     string // empty: in-process toast broadcasting only
		Password string
		DB       int
		Channel  string
	}

	EmailConfig struct {
		SendgridAPIKey string // empty: emails are printed to the console
		From           mail.Address
		ArrivalsTo     []mail.Address // empty: no arrival emails
	}

	CLIConfig struct {
		CredentialsFile string
	}

	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		RollbarToken string

		Server   ServerConfig
		API      APIConfig
		Session  SessionConfig
		Notifier NotifierConfig
		Redis    RedisConfig
		Email    EmailConfig
		CLI      CLIConfig
	}
)

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the upper-cased ENV, eg. DEV_API.BASEURL.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Masomo Admin")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "wq8-c!k3u)n7x$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("api.baseURL", "http://localhost:8081/api")
	conf.SetDefault("api.timeout", time.Duration(0))
	conf.SetDefault("session.rememberFor", 30*24*time.Hour)
	conf.SetDefault("session.secureCookies", false)
	conf.SetDefault("notifier.enabled", true)
	conf.SetDefault("notifier.interval", 3*time.Second)
	conf.SetDefault("notifier.month", 0)
	conf.SetDefault("notifier.year", 0)
	conf.SetDefault("notifier.token", "")
	conf.SetDefault("notifier.location", "Local")
	conf.SetDefault("redis.addr", "")
	conf.SetDefault("redis.password", "")
	conf.SetDefault("redis.db", 0)
	conf.SetDefault("redis.channel", "masomo:toasts")
	conf.SetDefault("email.sendgridApiKey", "")
	conf.SetDefault("email.fromName", "Masomo")
	conf.SetDefault("email.fromAddress", "noreply@masomo.local")
	conf.SetDefault("email.arrivalsTo", "")
	conf.SetDefault("cli.credentialsFile", defaultCredentialsFile())

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return configFromViper(env, conf)
}

func configFromViper(env string, conf *viper.Viper) *Config {
	loc, err := time.LoadLocation(conf.GetString("notifier.location"))
	if err != nil {
		loc = time.Local
	}
	arrivalsTo, err := ParseAddresses(conf.GetString("email.arrivalsTo"))
	if err != nil {
		log.Fatalf("config.email.arrivalsTo: %v", err)
	}

	return &Config{
		Env:          env,
		Build:        conf.GetString("build"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		AppName:      conf.GetString("appName"),
		SecretKey:    conf.GetString("secretKey"),
		RollbarToken: conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         conf.GetString("server.address"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(conf.GetString("api.baseURL"), "/"),
			Timeout: conf.GetDuration("api.timeout"),
		},
		Session: SessionConfig{
			RememberFor:   conf.GetDuration("session.rememberFor"),
			SecureCookies: conf.GetBool("session.secureCookies"),
		},
		Notifier: NotifierConfig{
			Enabled:  conf.GetBool("notifier.enabled"),
			Interval: conf.GetDuration("notifier.interval"),
			Month:    conf.GetInt("notifier.month"),
			Year:     conf.GetInt("notifier.year"),
			Token:    conf.GetString("notifier.token"),
			Location: loc,
		},
		Redis: RedisConfig{
			Addr:     conf.GetString("redis.addr"),
			Password: conf.GetString("redis.password"),
			DB:       conf.GetInt("redis.db"),
			Channel:  conf.GetString("redis.channel"),
		},
		Email: EmailConfig{
			SendgridAPIKey: conf.GetString("email.sendgridApiKey"),
			From: mail.Address{
				Name:    conf.GetString("email.fromName"),
				Address: conf.GetString("email.fromAddress"),
			},
			ArrivalsTo: arrivalsTo,
		},
		CLI: CLIConfig{
			CredentialsFile: conf.GetString("cli.credentialsFile"),
		},
	}
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "masomo", "credentials.json")
}
