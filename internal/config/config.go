package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
)

type Config struct {
	ReceiptsDir string
	OutputDir   string
	DatasetFile string
	DBPath      string
	RawMailDir  string

	PDFTextProvider string
	PdfToTextPath   string

	HeaderSignals []string
	HeaderState   string

	LogLevel  string
	LogFormat string

	PortalRateLimitRPS int
	PortalTimeoutMs    int
	PortalUserAgent    string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider    string
	MailListenerLabel       string
	MailListenerIntervalSec int
	MailListenerFetchMax    int
	MailListenerAutoExport  bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, eris.Wrap(err, "config: working directory")
	}

	receiptsDir := getEnv("RECEIPTS_DIR", filepath.Join(cwd, "resources", "cfs"))

	cfg := Config{
		ReceiptsDir: receiptsDir,
		OutputDir:   getEnv("OUTPUT_DIR", filepath.Join(cwd, "resources", "outputData")),
		DatasetFile: getEnv("DATASET_FILE", "purchases.csv"),
		DBPath:      getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir:  getEnv("MAIL_RAW_DIR", receiptsDir),

		PDFTextProvider: strings.ToLower(getEnv("PDF_TEXT_PROVIDER", "native")),
		PdfToTextPath:   getEnv("PDFTOTEXT_PATH", "pdftotext"),

		HeaderSignals: getEnvList("HEADER_SIGNALS", []string{"CNPJ", "Recife"}),
		HeaderState:   getEnv("HEADER_STATE", "PE"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		PortalRateLimitRPS: getEnvInt("PORTAL_RATE_LIMIT_RPS", 2),
		PortalTimeoutMs:    getEnvInt("PORTAL_TIMEOUT_MS", 30000),
		PortalUserAgent:    getEnv("PORTAL_USER_AGENT", "nfce/1.0"),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:    getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:       getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec: getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 300),
		MailListenerFetchMax:    getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerAutoExport:  getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

// DatasetPath is where scan results are written by default.
func (c Config) DatasetPath() string {
	return filepath.Join(c.OutputDir, c.DatasetFile)
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return eris.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
