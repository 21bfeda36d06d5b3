package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RECEIPTS_DIR", "/tmp/cfs")
	t.Setenv("MAIL_RAW_DIR", "unused")
	require.NoError(t, os.Unsetenv("MAIL_RAW_DIR"))
	t.Setenv("HEADER_SIGNALS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cfs", cfg.ReceiptsDir)
	assert.Equal(t, "/tmp/cfs", cfg.RawMailDir)
	assert.Equal(t, []string{"CNPJ", "Recife"}, cfg.HeaderSignals)
	assert.Equal(t, "PE", cfg.HeaderState)
	assert.Equal(t, filepath.Join(cfg.OutputDir, cfg.DatasetFile), cfg.DatasetPath())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HEADER_SIGNALS", " CNPJ , Olinda ,,")
	t.Setenv("HEADER_STATE", "SP")
	t.Setenv("IMAP_PORT", "not-a-number")
	t.Setenv("IMAP_SECURE", "off")
	t.Setenv("PDF_TEXT_PROVIDER", "PdfToText")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"CNPJ", "Olinda"}, cfg.HeaderSignals)
	assert.Equal(t, "SP", cfg.HeaderState)
	assert.Equal(t, 993, cfg.IMAPPort)
	assert.False(t, cfg.IMAPSecure)
	assert.Equal(t, "pdftotext", cfg.PDFTextProvider)
}

func TestRequire(t *testing.T) {
	var cfg Config
	require.Error(t, cfg.Require("IMAP_HOST", "  "))
	require.NoError(t, cfg.Require("IMAP_HOST", "imap.example.com"))
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(Config{LogLevel: "debug", LogFormat: "json"}))
	err := InitLogger(Config{LogLevel: "loud", LogFormat: "console"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
