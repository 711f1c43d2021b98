package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string // machine hostname, reported to the error tracker
		Addr                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	DispatchConfig struct {
		Interval        time.Duration
		BatchSize       int
		MaxSendAttempts int
	}

	SimulationConfig struct {
		MaxFrames int
	}

	Config struct {
		Debug                     bool
		TestMode                  bool
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		AppName                   string
		SecretKey                 []byte
		FrontendBaseURL           string
		WorkDir                   string
		DefaultFromEmail          mail.Address
		SendgridAPIKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		Server     ServerConfig
		Database   DatabaseConfig
		Dispatch   DispatchConfig
		Simulation SimulationConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Fizikia")
	v.SetDefault("secretKey", "h0q3-nm($xw1b&+46=pz&vhyj2(k!d)#*f3(#tg5u^$difn3fgx")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "fizikia")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbUser", "fizikia")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("dispatchInterval", time.Minute)
	v.SetDefault("dispatchBatchSize", 50)
	v.SetDefault("dispatchMaxSendAttempts", 3)
	v.SetDefault("simulationMaxFrames", 2000)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	hostname, _ := os.Hostname()

	return &Config{
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		Env:                       env,
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 []byte(v.GetString("secretKey")),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		WorkDir:                   wd,
		DefaultFromEmail:          mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridAPIKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      hostname,
			Addr:                      v.GetString("serverAddr"),
			DebugHost:                 v.GetString("serverDebugHost"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Name:          v.GetString("dbName"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Dispatch: DispatchConfig{
			Interval:        v.GetDuration("dispatchInterval"),
			BatchSize:       v.GetInt("dispatchBatchSize"),
			MaxSendAttempts: v.GetInt("dispatchMaxSendAttempts"),
		},
		Simulation: SimulationConfig{
			MaxFrames: v.GetInt("simulationMaxFrames"),
		},
	}
}

// Validate checks settings that have no usable zero value.
func (conf *Config) Validate() error {
	return vala.BeginValidation().Validate(
		vala.StringNotEmpty(string(conf.SecretKey), "secretKey"),
		vala.StringNotEmpty(conf.AppName, "appName"),
		vala.StringNotEmpty(conf.Database.Engine, "dbEngine"),
		vala.StringNotEmpty(conf.Database.Name, "dbName"),
		vala.StringNotEmpty(conf.Server.Addr, "serverAddr"),
		vala.GreaterThan(int(conf.Server.JWTExpirationDelta), 0, "jwtExpirationDelta"),
		vala.GreaterThan(int(conf.Dispatch.Interval), 0, "dispatchInterval"),
		vala.GreaterThan(conf.Dispatch.BatchSize, 0, "dispatchBatchSize"),
		vala.GreaterThan(conf.Simulation.MaxFrames, 0, "simulationMaxFrames"),
	).Check()
}
