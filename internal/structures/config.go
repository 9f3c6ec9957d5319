package structures

import "time"

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

// Persistence controls where the manifest ledger is kept between restarts.
type Persistence struct {
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type RecordStoreConfig struct {
	Driver  string `yaml:"driver" validate:"required|in:pgx,sqlite3"`
	DSN     string `yaml:"dsn" validate:"required"`
	Migrate bool   `yaml:"migrate"`
}

type ArchiveConfig struct {
	Driver         string `yaml:"driver" validate:"required|in:s3,local"`
	Prefix         string `yaml:"prefix"`
	Dir            string `yaml:"dir"`
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"accessKey"`
	SecretKey      string `yaml:"secretKey"`
	Classification string `yaml:"classification"`
	Purpose        string `yaml:"purpose"`
}

type WarehouseConfig struct {
	DSN     string `yaml:"dsn" validate:"required"`
	Dataset string `yaml:"dataset" validate:"required"`
}

type ExportConfig struct {
	DailyAt        string        `yaml:"dailyAt" validate:"required"`
	Retries        uint64        `yaml:"retries"`
	RetryBaseDelay time.Duration `yaml:"retryBaseDelay"`
	ClockSkew      time.Duration `yaml:"clockSkew"`
	LedgerSize     int           `yaml:"ledgerSize"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server            `yaml:"webServer"`
	Persistence Persistence       `yaml:"persistence"`
	Logger      LoggerConfig      `yaml:"logger"`
	RecordStore RecordStoreConfig `yaml:"recordStore"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Warehouse   WarehouseConfig   `yaml:"warehouse"`
	Export      ExportConfig      `yaml:"export"`
	Cache       CacheConfig       `yaml:"cache"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}
