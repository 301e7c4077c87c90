package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Footprints FootprintsConfig `yaml:"footprints" mapstructure:"footprints"`
	Worldpop   WorldpopConfig   `yaml:"worldpop" mapstructure:"worldpop"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Rates      RatesConfig      `yaml:"rates" mapstructure:"rates"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FootprintsConfig holds building footprint service settings.
type FootprintsConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WorldpopConfig holds population raster service settings.
type WorldpopConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Dataset     string `yaml:"dataset" mapstructure:"dataset"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FTPHost     string `yaml:"ftp_host" mapstructure:"ftp_host"`
	FTPRoot     string `yaml:"ftp_root" mapstructure:"ftp_root"`
	DataDir     string `yaml:"data_dir" mapstructure:"data_dir"`
}

// AnalysisConfig holds classifier and population estimation tuning.
type AnalysisConfig struct {
	AreaFactor      float64 `yaml:"area_factor" mapstructure:"area_factor"`
	CountFactor     float64 `yaml:"count_factor" mapstructure:"count_factor"`
	MinConfidence   float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MinSizeM2       float64 `yaml:"min_size_m2" mapstructure:"min_size_m2"`
	MaxSizeM2       float64 `yaml:"max_size_m2" mapstructure:"max_size_m2"`
	FallbackDensity float64 `yaml:"fallback_density" mapstructure:"fallback_density"`
	LargeZoneKM2    float64 `yaml:"large_zone_km2" mapstructure:"large_zone_km2"`
	LargeZoneFactor float64 `yaml:"large_zone_factor" mapstructure:"large_zone_factor"`
	MaxConcurrent   int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// RatesConfig holds waste generation and financial rates. Per-class
// maps are keyed by the building class keys (e.g. "commercial_small").
type RatesConfig struct {
	ResidentialPerPersonKG float64            `yaml:"residential_per_person_kg" mapstructure:"residential_per_person_kg"`
	DailyCommercialKG      map[string]float64 `yaml:"daily_commercial_kg" mapstructure:"daily_commercial_kg"`
	MonthlyRate            map[string]float64 `yaml:"monthly_rate" mapstructure:"monthly_rate"`
	CollectionPerTon       float64            `yaml:"collection_per_ton" mapstructure:"collection_per_ton"`
	DisposalPerTon         float64            `yaml:"disposal_per_ton" mapstructure:"disposal_per_ton"`
	FixedMonthlyExpense    float64            `yaml:"fixed_monthly_expense" mapstructure:"fixed_monthly_expense"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZONEPLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "zoneplanner.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("footprints.base_url", "https://footprints.metrowaste.io")
	v.SetDefault("footprints.rate_per_sec", 5)
	v.SetDefault("footprints.max_retries", 3)
	v.SetDefault("footprints.timeout_secs", 30)
	v.SetDefault("worldpop.base_url", "https://worldpop.metrowaste.io")
	v.SetDefault("worldpop.dataset", "ppp_2024_1km_aggregated")
	v.SetDefault("worldpop.timeout_secs", 60)
	v.SetDefault("worldpop.ftp_host", "ftp.worldpop.org")
	v.SetDefault("worldpop.ftp_root", "/GIS/Population/Global_2000_2020_1km")
	v.SetDefault("worldpop.data_dir", "data/rasters")
	v.SetDefault("analysis.area_factor", 0.9)
	v.SetDefault("analysis.count_factor", 0.98)
	v.SetDefault("analysis.min_confidence", 0.75)
	v.SetDefault("analysis.min_size_m2", 10)
	v.SetDefault("analysis.max_size_m2", 30000)
	v.SetDefault("analysis.fallback_density", 4800)
	v.SetDefault("analysis.large_zone_km2", 10)
	v.SetDefault("analysis.large_zone_factor", 0.8)
	v.SetDefault("analysis.max_concurrent", 4)
	v.SetDefault("rates.residential_per_person_kg", 0.5)
	v.SetDefault("rates.daily_commercial_kg", map[string]float64{
		"commercial_small":  8,
		"commercial_medium": 25,
		"commercial_large":  60,
	})
	v.SetDefault("rates.monthly_rate", map[string]float64{
		"residential_peri_urban": 200,
		"residential_urban":      350,
		"commercial_small":       1000,
		"commercial_medium":      2500,
		"commercial_large":       6000,
	})
	v.SetDefault("rates.collection_per_ton", 2500)
	v.SetDefault("rates.disposal_per_ton", 1500)
	v.SetDefault("rates.fixed_monthly_expense", 500000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// classKeys are the building class keys the rate maps must cover.
var (
	commercialKeys = []string{"commercial_small", "commercial_medium", "commercial_large"}
	allClassKeys   = []string{"residential_peri_urban", "residential_urban", "commercial_small", "commercial_medium", "commercial_large"}
)

// Validate checks configuration consistency for the given mode
// ("analyze" or "serve"). Server settings are only required when
// serving.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "analyze":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Analysis.AreaFactor <= 0 || c.Analysis.AreaFactor > 1 {
		problems = append(problems, "analysis.area_factor must be in (0, 1]")
	}
	if c.Analysis.CountFactor <= 0 || c.Analysis.CountFactor > 1 {
		problems = append(problems, "analysis.count_factor must be in (0, 1]")
	}
	if c.Analysis.MinConfidence < 0 || c.Analysis.MinConfidence > 1 {
		problems = append(problems, "analysis.min_confidence must be in [0, 1]")
	}
	if c.Analysis.MinSizeM2 >= c.Analysis.MaxSizeM2 {
		problems = append(problems, "analysis.min_size_m2 must be below analysis.max_size_m2")
	}
	if c.Analysis.MaxConcurrent < 1 || c.Analysis.MaxConcurrent > 50 {
		problems = append(problems, "analysis.max_concurrent must be between 1 and 50")
	}

	for _, k := range allClassKeys {
		if _, ok := c.Rates.MonthlyRate[k]; !ok {
			problems = append(problems, "rates.monthly_rate is missing key "+k)
		}
	}
	for _, k := range commercialKeys {
		if _, ok := c.Rates.DailyCommercialKG[k]; !ok {
			problems = append(problems, "rates.daily_commercial_kg is missing key "+k)
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
