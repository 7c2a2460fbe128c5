package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Scraper   ScraperConfig   `json:"scraper"`
	Portals   PortalsConfig   `json:"portals"`
	OCR       OCRConfig       `json:"ocr"`
	Challenge ChallengeConfig `json:"challenge"`
	Log       LogConfig       `json:"log"`
	Security  SecurityConfig  `json:"security"`
	Browser   BrowserConfig   `json:"browser"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

// DatabaseConfig holds the SQLite document store configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// ScraperConfig holds consultation engine configuration
type ScraperConfig struct {
	HTTPTimeout time.Duration `json:"http_timeout"`
	CacheTTL    time.Duration `json:"cache_ttl"`
	UserAgent   string        `json:"user_agent"`
}

// PortalsConfig holds the entry URLs of the consulted portals
type PortalsConfig struct {
	JudicialBase  string `json:"judicial_base"`
	PensionBase   string `json:"pension_base"`
	TransitBase   string `json:"transit_base"`
	ProcessesBase string `json:"processes_base"`
	IESSBase      string `json:"iess_base"`
	CriminalBase  string `json:"criminal_base"`
	TaxDebtBase   string `json:"tax_debt_base"`
	CompaniesBase string `json:"companies_base"`
	InterpolBase  string `json:"interpol_base"`
}

// OCRConfig holds the recognition service configuration
type OCRConfig struct {
	ServiceURL string        `json:"service_url"`
	Languages  string        `json:"languages"`
	Timeout    time.Duration `json:"timeout"`
}

// ChallengeConfig holds anti-bot monitoring configuration
type ChallengeConfig struct {
	PollInterval      time.Duration `json:"poll_interval"`
	IncapsulaAttempts int           `json:"incapsula_attempts"`
	CaptchaAttempts   int           `json:"captcha_attempts"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	MinBrowsers        int           `json:"min_browsers"`
	MaxBrowsers        int           `json:"max_browsers"`
	MaxPagesPerBrowser int           `json:"max_pages_per_browser"`
	BrowserTimeout     time.Duration `json:"browser_timeout"`
	PageTimeout        time.Duration `json:"page_timeout"`
	IdleTimeout        time.Duration `json:"idle_timeout"`
	Headless           bool          `json:"headless"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			// Challenge gated consultations can hold a response open for
			// the whole monitoring window.
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 900),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "consulta.db"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
		},
		Scraper: ScraperConfig{
			HTTPTimeout: time.Duration(getEnvAsInt("SCRAPER_HTTP_TIMEOUT", 60)) * time.Second,
			CacheTTL:    time.Duration(getEnvAsInt("SCRAPER_CACHE_TTL", 3600)) * time.Second,
			UserAgent:   getEnv("SCRAPER_USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		},
		Portals: PortalsConfig{
			JudicialBase:  getEnv("PORTAL_JUDICIAL_BASE", "https://consultas.funcionjudicial.gob.ec/informacionjudicial/public/informacionCitaciones.jsf"),
			PensionBase:   getEnv("PORTAL_PENSION_BASE", "https://supa.funcionjudicial.gob.ec/pensiones/publico/consulta.jsf"),
			TransitBase:   getEnv("PORTAL_TRANSIT_BASE", "https://consultaweb.ant.gob.ec/PortalWEB/paginas/clientes"),
			ProcessesBase: getEnv("PORTAL_PROCESSES_BASE", "https://api.funcionjudicial.gob.ec/EXPEL-CONSULTA-CAUSAS-SERVICE/api/consulta-causas/informacion/buscarCausas"),
			IESSBase:      getEnv("PORTAL_IESS_BASE", "https://app.iess.gob.ec/gestion-calificacion-derecho-web/public/formulariosContacto.jsf"),
			CriminalBase:  getEnv("PORTAL_CRIMINAL_BASE", "https://certificados.ministeriodelinterior.gob.ec/gestorcertificados/antecedentes/"),
			TaxDebtBase:   getEnv("PORTAL_TAX_DEBT_BASE", "https://srienlinea.sri.gob.ec/sri-en-linea/SriPagosWeb/ConsultaDeudasFirmesImpugnadas/Consultas/consultaDeudasFirmesImpugnadas"),
			CompaniesBase: getEnv("PORTAL_COMPANIES_BASE", "https://appscvs1.supercias.gob.ec/consultaPersona/consulta_cia_param.zul"),
			InterpolBase:  getEnv("PORTAL_INTERPOL_BASE", "https://ws-public.interpol.int/notices/v1/red"),
		},
		OCR: OCRConfig{
			ServiceURL: getEnv("OCR_SERVICE_URL", "http://localhost:8884"),
			Languages:  getEnv("OCR_LANGUAGES", "spa+eng"),
			Timeout:    time.Duration(getEnvAsInt("OCR_TIMEOUT", 60)) * time.Second,
		},
		Challenge: ChallengeConfig{
			PollInterval:      time.Duration(getEnvAsInt("CHALLENGE_POLL_INTERVAL", 5)) * time.Second,
			IncapsulaAttempts: getEnvAsInt("CHALLENGE_INCAPSULA_ATTEMPTS", 120),
			CaptchaAttempts:   getEnvAsInt("CHALLENGE_CAPTCHA_ATTEMPTS", 60),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 100),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
				CleanupInterval:   time.Duration(getEnvAsInt("RATE_LIMIT_CLEANUP", 60)) * time.Second,
			},
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: false,
			},
		},
		Browser: BrowserConfig{
			MinBrowsers:        getEnvAsInt("BROWSER_MIN", 1),
			MaxBrowsers:        getEnvAsInt("BROWSER_MAX", 5),
			MaxPagesPerBrowser: getEnvAsInt("BROWSER_MAX_PAGES", 3),
			BrowserTimeout:     time.Duration(getEnvAsInt("BROWSER_TIMEOUT", 60)) * time.Second,
			PageTimeout:        time.Duration(getEnvAsInt("PAGE_TIMEOUT", 30)) * time.Second,
			IdleTimeout:        time.Duration(getEnvAsInt("BROWSER_IDLE_TIMEOUT", 300)) * time.Second,
			Headless:           getEnvAsBool("BROWSER_HEADLESS", true),
		},
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
