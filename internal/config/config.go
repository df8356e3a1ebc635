package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	DistanceAPIURL string        `mapstructure:"DISTANCE_API_URL"`
	GeocoderURL    string        `mapstructure:"GEOCODER_URL"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	AvgSpeedKmh    float64       `mapstructure:"AVG_SPEED_KMH"`
	ClusterEpsKm   float64       `mapstructure:"CLUSTER_EPS_KM"`
	MaxShiftHours  float64       `mapstructure:"MAX_SHIFT_HOURS"`
	MaxRoutePoints int           `mapstructure:"MAX_ROUTE_POINTS"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("AVG_SPEED_KMH", 30.0)
	v.SetDefault("CLUSTER_EPS_KM", 0.5)
	v.SetDefault("MAX_SHIFT_HOURS", 8.0)
	v.SetDefault("MAX_ROUTE_POINTS", 50)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
