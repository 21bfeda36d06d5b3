package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfce/internal"
	"nfce/internal/report"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"scan", "scan:archive", "export:xlsx", "report", "inspect", "runs", "mail:fetch", "mail:listen", "portal:fetch"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestScanThenExport(t *testing.T) {
	tmp := t.TempDir()
	receipts := filepath.Join(tmp, "cfs")
	out := filepath.Join(tmp, "out")
	require.NoError(t, os.MkdirAll(receipts, 0o755))
	page := "<html><body><p>CAFE (Código: 12) Vl. Total</p><p>Qtde.: 1 UN: UN Vl. Unit.: 9,90 9,90</p><p>05/02/2024</p></body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(receipts, "cupom.html"), []byte(page), 0o644))

	t.Setenv("RECEIPTS_DIR", receipts)
	t.Setenv("OUTPUT_DIR", out)
	t.Setenv("MAIL_RAW_DIR", receipts)
	t.Setenv("DB_PATH", filepath.Join(tmp, "app.db"))
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"scan"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	data, err := os.ReadFile(filepath.Join(out, "purchases.csv"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "05/02/2024;CAFE;1;UN;9,90;9,90;12;cupom.html"), string(data))

	rootCmd.SetArgs([]string{"report", "--source", "cupom"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	workbook := filepath.Join(out, "last.xlsx")
	rootCmd.SetArgs([]string{"export:xlsx", "--out", workbook})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.FileExists(t, workbook)
}

func TestABCLinesShowAveragePrice(t *testing.T) {
	day := func(d int) internal.ReceiptDate {
		return internal.KnownDate(time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC))
	}
	records := []internal.PurchaseRecord{
		{Date: day(1), Product: "CAFE", UnitPrice: decimal.RequireFromString("18"), TotalPrice: decimal.RequireFromString("18")},
		{Date: day(8), Product: "CAFE", UnitPrice: decimal.RequireFromString("20"), TotalPrice: decimal.RequireFromString("20")},
		{Product: "PAO", UnitPrice: decimal.RequireFromString("1"), TotalPrice: decimal.RequireFromString("2")},
	}

	lines := abcLines(report.ClassifyABC(records), report.PriceHistory(records), 0)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "avg_unit=19,00"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "avg_unit=-"), lines[1])

	assert.Len(t, abcLines(report.ClassifyABC(records), nil, 1), 1)
}
