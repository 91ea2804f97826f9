package config

import (
	"os"
	"strconv"
	"time"
)

// Config gathers every knob the server needs. It is loaded once in main and
// handed to constructors explicitly; nothing reads the environment after
// startup.
type Config struct {
	Port string

	// OpenAI-shaped speech/chat/tts upstream
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Vapi-shaped assistant/chat upstream
	VapiAPIKey         string
	VapiBaseURL        string
	VapiChatStreamPath string

	// Timeout tiers, shared shape across both upstreams
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Media storage
	MediaRoot    string
	MediaBaseURL string

	// Booking window
	BookingTimezone  string
	BookingOpenHour  int
	BookingCloseHour int

	// Operator alerts (optional)
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFrom         string
	EscalationAlertTo  string
	MaintenanceEnabled bool
}

// Load reads the configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		VapiAPIKey:         os.Getenv("VAPI_API_KEY"),
		VapiBaseURL:        getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
		VapiChatStreamPath: getEnv("VAPI_CHAT_STREAM_PATH", "/chat/stream"),

		ConnectTimeout: getEnvSeconds("UPSTREAM_CONNECT_TIMEOUT", 10),
		ReadTimeout:    getEnvSeconds("UPSTREAM_READ_TIMEOUT", 300),

		MediaRoot:    getEnv("MEDIA_ROOT", "media"),
		MediaBaseURL: getEnv("MEDIA_BASE_URL", "/media"),

		BookingTimezone:  getEnv("BOOKING_TIMEZONE", "America/Toronto"),
		BookingOpenHour:  getEnvInt("BOOKING_OPEN_HOUR", 9),
		BookingCloseHour: getEnvInt("BOOKING_CLOSE_HOUR", 21),

		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:         os.Getenv("TWILIO_FROM"),
		EscalationAlertTo:  os.Getenv("ESCALATION_ALERT_TO"),
		MaintenanceEnabled: getEnv("MAINTENANCE_JOB", "true") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}
