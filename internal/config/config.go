package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"gorm.io/gorm/logger"
)

type Config struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Billing    BillingConfig    `json:"billing"`
	Accounting AccountingConfig `json:"accounting"`
	Email      EmailConfig      `json:"email"`
	Logging    LoggingConfig    `json:"logging"`
}

type DatabaseConfig struct {
	Host               string          `json:"host"`
	Port               int             `json:"port"`
	Database           string          `json:"database"`
	Username           string          `json:"username"`
	Password           string          `json:"password"`
	PoolSize           int             `json:"pool_size"`
	MaxOpenConns       int             `json:"max_open_conns"`
	MaxIdleConns       int             `json:"max_idle_conns"`
	ConnMaxLifetime    time.Duration   `json:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration   `json:"conn_max_idle_time"`
	SlowQueryThreshold time.Duration   `json:"slow_query_threshold"`
	EnableQueryLogging bool            `json:"enable_query_logging"`
	LogLevel           logger.LogLevel `json:"-"` // Not serializable
}

type ServerConfig struct {
	Port        int    `json:"port"`
	Host        string `json:"host"`
	Environment string `json:"environment"`
}

type BillingConfig struct {
	DefaultTaxRate       int    `json:"default_tax_rate"`
	DefaultPaymentTerms  int    `json:"default_payment_terms"`
	InvoiceNumberPrefix  string `json:"invoice_number_prefix"`
	QuotationValidDays   int    `json:"quotation_valid_days"`
	CurrencySymbol       string `json:"currency_symbol"`
	CurrencyCode         string `json:"currency_code"`
	DateFormat           string `json:"date_format"`
	SweepHour            int    `json:"sweep_hour"`
	ShowBarcodeOnInvoice bool   `json:"show_barcode_on_invoice"`
}

type AccountingConfig struct {
	Enabled bool          `json:"enabled"`
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"timeout"`
}

type EmailConfig struct {
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	FromEmail    string `json:"from_email"`
	FromName     string `json:"from_name"`
	UseTLS       bool   `json:"use_tls"`
	NotifyEmail  string `json:"notify_email"`
}

type LoggingConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

func LoadConfig(path string) (*Config, error) {
	// Start with default config
	config := getDefaultConfig()

	// Override with environment variables if they exist
	loadFromEnvironment(config)

	// Try to load from file if it exists
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, err
		}
		// Override again with environment variables to give them priority
		loadFromEnvironment(config)
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

func getDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:               "localhost",
			Port:               3306,
			Database:           "agencydesk",
			Username:           "root",
			Password:           "",
			PoolSize:           5,
			MaxOpenConns:       25,
			MaxIdleConns:       5,
			ConnMaxLifetime:    5 * time.Minute,
			ConnMaxIdleTime:    5 * time.Minute,
			SlowQueryThreshold: 500 * time.Millisecond,
			EnableQueryLogging: false,
			LogLevel:           logger.Warn,
		},
		Server: ServerConfig{
			Port:        8080,
			Host:        "localhost",
			Environment: "development",
		},
		Billing: BillingConfig{
			DefaultTaxRate:       19,
			DefaultPaymentTerms:  14,
			InvoiceNumberPrefix:  "RE",
			QuotationValidDays:   30,
			CurrencySymbol:       "€",
			CurrencyCode:         "EUR",
			DateFormat:           "DD.MM.YYYY",
			SweepHour:            6,
			ShowBarcodeOnInvoice: true,
		},
		Accounting: AccountingConfig{
			Enabled: false,
			BaseURL: "",
			APIKey:  "",
			Timeout: 3 * time.Second,
		},
		Email: EmailConfig{
			SMTPHost:     "localhost",
			SMTPPort:     587,
			SMTPUsername: "",
			SMTPPassword: "",
			FromEmail:    "billing@agencydesk.local",
			FromName:     "AgencyDesk Billing",
			UseTLS:       true,
			NotifyEmail:  "",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "logs/app.log",
		},
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *Config) {
	// Database configuration
	if host := os.Getenv("DB_HOST"); host != "" {
		config.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Database.Port = p
		}
	}
	if database := os.Getenv("DB_NAME"); database != "" {
		config.Database.Database = database
	}
	if username := os.Getenv("DB_USERNAME"); username != "" {
		config.Database.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.Database.Password = password
	}

	// Server configuration
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Server.Environment = env
	}

	// Billing configuration
	if taxRate := os.Getenv("DEFAULT_TAX_RATE"); taxRate != "" {
		if rate, err := strconv.Atoi(taxRate); err == nil {
			config.Billing.DefaultTaxRate = rate
		}
	}
	if paymentTerms := os.Getenv("DEFAULT_PAYMENT_TERMS"); paymentTerms != "" {
		if terms, err := strconv.Atoi(paymentTerms); err == nil {
			config.Billing.DefaultPaymentTerms = terms
		}
	}
	if prefix := os.Getenv("INVOICE_NUMBER_PREFIX"); prefix != "" {
		config.Billing.InvoiceNumberPrefix = prefix
	}
	if symbol := os.Getenv("CURRENCY_SYMBOL"); symbol != "" {
		config.Billing.CurrencySymbol = symbol
	}
	if code := os.Getenv("CURRENCY_CODE"); code != "" {
		config.Billing.CurrencyCode = code
	}
	if hour := os.Getenv("SWEEP_HOUR"); hour != "" {
		if h, err := strconv.Atoi(hour); err == nil {
			config.Billing.SweepHour = h
		}
	}

	// Accounting configuration
	if enabled := os.Getenv("ACCOUNTING_ENABLED"); enabled != "" {
		config.Accounting.Enabled = enabled == "true"
	}
	if baseURL := os.Getenv("ACCOUNTING_BASE_URL"); baseURL != "" {
		config.Accounting.BaseURL = baseURL
		config.Accounting.Enabled = true
	}
	if apiKey := os.Getenv("ACCOUNTING_API_KEY"); apiKey != "" {
		config.Accounting.APIKey = apiKey
	}
	if timeout := os.Getenv("ACCOUNTING_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Accounting.Timeout = d
		}
	}

	// Email configuration
	if host := os.Getenv("SMTP_HOST"); host != "" {
		config.Email.SMTPHost = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Email.SMTPPort = p
		}
	}
	if username := os.Getenv("SMTP_USERNAME"); username != "" {
		config.Email.SMTPUsername = username
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		config.Email.SMTPPassword = password
	}
	if fromEmail := os.Getenv("FROM_EMAIL"); fromEmail != "" {
		config.Email.FromEmail = fromEmail
	}
	if fromName := os.Getenv("FROM_NAME"); fromName != "" {
		config.Email.FromName = fromName
	}
	if useTLS := os.Getenv("USE_TLS"); useTLS != "" {
		config.Email.UseTLS = useTLS == "true"
	}
	if notify := os.Getenv("NOTIFY_EMAIL"); notify != "" {
		config.Email.NotifyEmail = notify
	}

	// Logging configuration
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		config.Logging.File = file
	}
}
