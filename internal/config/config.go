package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DBURL        string
	RedisAddr    string
	MQTTBroker   string
	MQTTClientID string
	LogLevel     string
	LogPretty    bool
	JWTSecret    string

	HTTPPort  int
	MDNSName  string
	DataDir   string
	Simulate  bool
	CameraCmd string

	PollInterval       time.Duration
	DataLogInterval    time.Duration
	AlertCheckInterval time.Duration
	MaxTickFailures    int

	TelegramToken  string
	TelegramChatID string

	DailyReportCron   string
	AnalysisCron      string
	AnalysisEnabled   bool
	AnalysisURL       string
	AnalysisAPIKey    string
	ExtSyncEnabled    bool
	ExtSyncURL        string
	ExtSyncAPIKey     string
	ExtSyncCron       string
	AdminPasswordHash string
}

// LoadConfig reads configuration from .env, config.yaml, or env vars
func LoadConfig() (*Config, error) {
	// Missing .env is fine; plain env vars still apply.
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	viper.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	viper.SetDefault("MQTT_BROKER", "tcp://127.0.0.1:1883")
	viper.SetDefault("MQTT_CLIENT_ID", "growtent-backend")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_PORT", 8000)
	viper.SetDefault("MDNS_NAME", "growtent.local")
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("CAMERA_CMD", "libcamera-still")
	viper.SetDefault("POLL_INTERVAL", "30s")
	viper.SetDefault("DATA_LOG_INTERVAL", "60s")
	viper.SetDefault("ALERT_CHECK_INTERVAL", "60s")
	viper.SetDefault("MAX_TICK_FAILURES", 10)
	viper.SetDefault("DAILY_REPORT_CRON", "0 8 * * *")
	viper.SetDefault("ANALYSIS_CRON", "0 12 * * *")
	viper.SetDefault("EXTERNAL_SYNC_CRON", "*/5 * * * *")

	cfg := &Config{
		DBURL:        viper.GetString("DB_URL"),
		RedisAddr:    viper.GetString("REDIS_ADDR"),
		MQTTBroker:   viper.GetString("MQTT_BROKER"),
		MQTTClientID: viper.GetString("MQTT_CLIENT_ID"),
		LogLevel:     viper.GetString("LOG_LEVEL"),
		LogPretty:    viper.GetBool("LOG_PRETTY"),
		JWTSecret:    viper.GetString("JWT_SECRET"),

		HTTPPort:  viper.GetInt("HTTP_PORT"),
		MDNSName:  viper.GetString("MDNS_NAME"),
		DataDir:   viper.GetString("DATA_DIR"),
		Simulate:  viper.GetBool("SIMULATE"),
		CameraCmd: viper.GetString("CAMERA_CMD"),

		PollInterval:       viper.GetDuration("POLL_INTERVAL"),
		DataLogInterval:    viper.GetDuration("DATA_LOG_INTERVAL"),
		AlertCheckInterval: viper.GetDuration("ALERT_CHECK_INTERVAL"),
		MaxTickFailures:    viper.GetInt("MAX_TICK_FAILURES"),

		TelegramToken:  viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: viper.GetString("TELEGRAM_CHAT_ID"),

		DailyReportCron:   viper.GetString("DAILY_REPORT_CRON"),
		AnalysisCron:      viper.GetString("ANALYSIS_CRON"),
		AnalysisEnabled:   viper.GetBool("ANALYSIS_ENABLED"),
		AnalysisURL:       viper.GetString("ANALYSIS_URL"),
		AnalysisAPIKey:    viper.GetString("ANALYSIS_API_KEY"),
		ExtSyncEnabled:    viper.GetBool("EXTERNAL_SYNC_ENABLED"),
		ExtSyncURL:        viper.GetString("EXTERNAL_SYNC_URL"),
		ExtSyncAPIKey:     viper.GetString("EXTERNAL_SYNC_API_KEY"),
		ExtSyncCron:       viper.GetString("EXTERNAL_SYNC_CRON"),
		AdminPasswordHash: viper.GetString("ADMIN_PASSWORD_HASH"),
	}
	return cfg, nil
}
