package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Events     EventsConfig     `yaml:"events"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Market     MarketConfig     `yaml:"market"`
	CRM        CRMConfig        `yaml:"crm"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Assignment AssignmentConfig `yaml:"assignment"`
	Routing    RoutingConfig    `yaml:"routing"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

type CalendarConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type MarketConfig struct {
	URL string `yaml:"url"`
}

type CRMConfig struct {
	URL string `yaml:"url"`
}

// ScoringWeights is a per-mode weight split across the five sub-scores.
// Must sum to 1.0.
type ScoringWeights struct {
	Skill        float64 `yaml:"skill"`
	Proximity    float64 `yaml:"proximity"`
	Availability float64 `yaml:"availability"`
	Workload     float64 `yaml:"workload"`
	Performance  float64 `yaml:"performance"`
}

type ScoringConfig struct {
	AssignmentWeights ScoringWeights `yaml:"assignment_weights"`
	SchedulingWeights ScoringWeights `yaml:"scheduling_weights"`

	ProximityFalloffKm     float64 `yaml:"proximity_falloff_km"`
	AvailabilityFloor      float64 `yaml:"availability_floor"`
	SchedulingAvailFloor   float64 `yaml:"scheduling_availability_floor"`
	MaxJobsPerDay          int     `yaml:"max_jobs_per_day"`
	CriticalPerformanceMin float64 `yaml:"critical_performance_min"`
	MaxTravelMinutes       int     `yaml:"max_travel_minutes"`
}

type AssignmentConfig struct {
	CriticalMinScore  float64 `yaml:"critical_min_score"`
	VIPPerformanceMin float64 `yaml:"vip_performance_min"`
	BackupCount       int     `yaml:"backup_count"`
}

type RoutingConfig struct {
	AverageSpeedKmh   float64 `yaml:"average_speed_kmh"`
	TrafficMultiplier float64 `yaml:"traffic_multiplier"`
	TwoOptPassFactor  int     `yaml:"two_opt_pass_factor"` // pass cap = factor * stops^2
}

type PricingConfig struct {
	VolumeRate        float64 `yaml:"volume_rate"`    // per m³
	DistanceRate      float64 `yaml:"distance_rate"`  // per km
	HourlyRate        float64 `yaml:"hourly_rate"`    // per labor hour
	FloorPenalty      float64 `yaml:"floor_penalty"`  // per no-elevator floor above 2nd
	ParkingFreeM      float64 `yaml:"parking_free_m"` // surcharge-free carry distance
	ParkingRatePer10M float64 `yaml:"parking_rate_per_10m"`

	SearchLow  float64 `yaml:"search_low"`
	SearchHigh float64 `yaml:"search_high"`
	SearchStep float64 `yaml:"search_step"`

	RevenueWeight     float64 `yaml:"revenue_weight"`
	ConversionWeight  float64 `yaml:"conversion_weight"`
	MarginWeight      float64 `yaml:"margin_weight"`
	CompetitiveWeight float64 `yaml:"competitive_weight"`

	DiscountCapPct float64 `yaml:"discount_cap_pct"`
	TaxRate        float64 `yaml:"tax_rate"`
	ValidityDays   int     `yaml:"validity_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) MaxTravelTime() time.Duration {
	return time.Duration(c.Scoring.MaxTravelMinutes) * time.Minute
}

func (c *Config) QuoteValidity() time.Duration {
	return time.Duration(c.Pricing.ValidityDays) * 24 * time.Hour
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Events: EventsConfig{
			URL: "nats://localhost:4222",
		},
		Calendar: CalendarConfig{
			URL: "http://localhost:9180",
		},
		Market: MarketConfig{
			URL: "http://localhost:9181",
		},
		CRM: CRMConfig{
			URL: "http://localhost:9182",
		},
		Scoring: ScoringConfig{
			AssignmentWeights: ScoringWeights{
				Skill:        0.30,
				Proximity:    0.20,
				Availability: 0.25,
				Workload:     0.10,
				Performance:  0.15,
			},
			SchedulingWeights: ScoringWeights{
				Skill:        0.25,
				Proximity:    0.20,
				Availability: 0.15,
				Workload:     0.15,
				Performance:  0.25,
			},
			ProximityFalloffKm:     50,
			AvailabilityFloor:      0.4,
			SchedulingAvailFloor:   0.3,
			MaxJobsPerDay:          4,
			CriticalPerformanceMin: 0.8,
			MaxTravelMinutes:       75,
		},
		Assignment: AssignmentConfig{
			CriticalMinScore:  0.6,
			VIPPerformanceMin: 0.9,
			BackupCount:       3,
		},
		Routing: RoutingConfig{
			AverageSpeedKmh:   40,
			TrafficMultiplier: 1.2,
			TwoOptPassFactor:  2,
		},
		Pricing: PricingConfig{
			VolumeRate:        35,
			DistanceRate:      2.2,
			HourlyRate:        65,
			FloorPenalty:      40,
			ParkingFreeM:      25,
			ParkingRatePer10M: 15,
			SearchLow:         0.85,
			SearchHigh:        1.15,
			SearchStep:        0.05,
			RevenueWeight:     0.4,
			ConversionWeight:  0.3,
			MarginWeight:      0.2,
			CompetitiveWeight: 0.1,
			DiscountCapPct:    0.20,
			TaxRate:           0.19,
			ValidityDays:      7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RELO_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("RELO_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("RELO_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("RELO_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("RELO_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("RELO_CALENDAR_URL"); v != "" {
		cfg.Calendar.URL = v
	}
	if v := os.Getenv("RELO_CALENDAR_TOKEN"); v != "" {
		cfg.Calendar.Token = v
	}
	if v := os.Getenv("RELO_MARKET_URL"); v != "" {
		cfg.Market.URL = v
	}
	if v := os.Getenv("RELO_CRM_URL"); v != "" {
		cfg.CRM.URL = v
	}
	if v := os.Getenv("RELO_MAX_JOBS_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scoring.MaxJobsPerDay = n
		}
	}
	if v := os.Getenv("RELO_MAX_TRAVEL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scoring.MaxTravelMinutes = n
		}
	}
	if v := os.Getenv("RELO_CRITICAL_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Assignment.CriticalMinScore = f
		}
	}
	if v := os.Getenv("RELO_TAX_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pricing.TaxRate = f
		}
	}
	if v := os.Getenv("RELO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
