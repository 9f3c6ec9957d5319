package providers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"hed/internal/structures"
)

const AppName = "HealthExportDaemon"

func setDefaults(v *viper.Viper) {
	v.SetDefault("archive.prefix", "daily-exports/")
	v.SetDefault("archive.classification", "anonymized-health-data")
	v.SetDefault("archive.purpose", "analytics")
	v.SetDefault("export.dailyAt", "02:00")
	v.SetDefault("export.retries", 3)
	v.SetDefault("export.retryBaseDelay", 2*time.Second)
	v.SetDefault("export.clockSkew", 5*time.Minute)
	v.SetDefault("export.ledgerSize", 90)
	v.SetDefault("cache.ttl", 30*time.Second)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	// A missing .env is fine, real environment variables still apply.
	_ = godotenv.Load()

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")
	setDefaults(v)

	v.BindEnv("logger.level", "HED_LOG_LEVEL")
	v.BindEnv("recordStore.dsn", "HED_RECORDSTORE_DSN")
	v.BindEnv("warehouse.dsn", "HED_WAREHOUSE_DSN")
	v.BindEnv("archive.bucket", "HED_ARCHIVE_BUCKET")
	v.BindEnv("archive.accessKey", "HED_S3_ACCESS_KEY")
	v.BindEnv("archive.secretKey", "HED_S3_SECRET_KEY")
	v.BindEnv("export.dailyAt", "HED_EXPORT_DAILY_AT")
	v.BindEnv("cache.enabled", "HED_CACHE_ENABLED")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = AppName
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
