// Package config loads the tower and station process configurations from
// environment variables, per the external-interfaces table in the spec.
package config

import (
	"os"
	"strconv"
	"time"
)

// TowerConfig holds everything the tower process needs to boot.
type TowerConfig struct {
	Host string
	Port string

	PCMSocketPath string
	PCMTCPAddr    string

	BufferCapacity int

	ClientTimeoutMS   int
	ClientBufferBytes int

	EncoderGraceSeconds int

	Bitrate    string
	SampleRate string
	Channels   string

	AdminPassword string

	MetricsEnabled bool
}

// LoadTower reads the tower configuration from the environment, applying
// the defaults from the spec's configuration table.
func LoadTower() *TowerConfig {
	return &TowerConfig{
		Host: getEnv("TOWER_HOST", "0.0.0.0"),
		Port: getEnv("TOWER_PORT", "8005"),

		PCMSocketPath: getEnv("TOWER_PCM_SOCKET_PATH", "/tmp/retrowaves-pcm.sock"),
		PCMTCPAddr:    getEnv("TOWER_PCM_TCP_ADDR", ""),

		BufferCapacity: getEnvAsInt("TOWER_BUFFER_CAPACITY", 234),

		ClientTimeoutMS:   getEnvAsInt("TOWER_CLIENT_TIMEOUT_MS", 5000),
		ClientBufferBytes: getEnvAsInt("TOWER_CLIENT_BUFFER_BYTES", 65536),

		EncoderGraceSeconds: getEnvAsInt("TOWER_ENCODER_GRACE_S", 5),

		Bitrate:    getEnv("TOWER_BITRATE", "128k"),
		SampleRate: getEnv("TOWER_SAMPLE_RATE", "48000"),
		Channels:   getEnv("TOWER_CHANNELS", "2"),

		AdminPassword: getEnv("TOWER_ADMIN_PASSWORD", ""),

		MetricsEnabled: getEnvAsBool("TOWER_METRICS_ENABLED", true),
	}
}

// ClientTimeout returns ClientTimeoutMS as a time.Duration.
func (c *TowerConfig) ClientTimeout() time.Duration {
	return time.Duration(c.ClientTimeoutMS) * time.Millisecond
}

// Addr returns the HTTP bind address.
func (c *TowerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// StationConfig holds everything the station process needs to boot.
type StationConfig struct {
	MusicDir string

	TowerHost string
	TowerPort int

	PCMSocketPath string
	PCMTCPAddr    string

	PrepLeadSeconds int

	// DrainTimeoutSeconds bounds how long shutdown waits for the in-flight
	// segment to finish before tearing down the transport anyway.
	DrainTimeoutSeconds int

	PIDEnabled          bool
	PIDTargetRatio      float64
	PIDKp, PIDKi, PIDKd float64
	PIDUpdateInterval   time.Duration
	PIDQueryTimeout     time.Duration

	AdminPassword string

	HistoryPath string
}

// LoadStation reads the station configuration from the environment.
func LoadStation() *StationConfig {
	return &StationConfig{
		MusicDir: getEnv("STATION_MUSIC_DIR", "./music"),

		TowerHost: getEnv("STATION_TOWER_HOST", "127.0.0.1"),
		TowerPort: getEnvAsInt("STATION_TOWER_PORT", 8005),

		PCMSocketPath: getEnv("TOWER_PCM_SOCKET_PATH", "/tmp/retrowaves-pcm.sock"),
		PCMTCPAddr:    getEnv("TOWER_PCM_TCP_ADDR", ""),

		PrepLeadSeconds: getEnvAsInt("STATION_PREP_LEAD_S", 5),

		DrainTimeoutSeconds: getEnvAsInt("STATION_DRAIN_TIMEOUT_S", 300),

		PIDEnabled:        getEnvAsBool("STATION_PID_ENABLED", false),
		PIDTargetRatio:    getEnvAsFloat("STATION_PID_TARGET_RATIO", 0.5),
		PIDKp:             getEnvAsFloat("STATION_PID_KP", 0.1),
		PIDKi:             getEnvAsFloat("STATION_PID_KI", 0.01),
		PIDKd:             getEnvAsFloat("STATION_PID_KD", 0.05),
		PIDUpdateInterval: getEnvAsDuration("STATION_PID_UPDATE_INTERVAL_MS", 500*time.Millisecond),
		PIDQueryTimeout:   getEnvAsDuration("STATION_PID_QUERY_TIMEOUT_MS", 100*time.Millisecond),

		AdminPassword: getEnv("TOWER_ADMIN_PASSWORD", ""),

		HistoryPath: getEnv("STATION_HISTORY_PATH", "./data/play_history.yaml"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

// getEnvAsDuration reads an integer count of milliseconds from the
// environment and converts it to a time.Duration.
func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if ms, err := strconv.Atoi(valueStr); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
