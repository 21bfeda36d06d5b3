package listener

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nfce/internal"
	"nfce/internal/config"
	"nfce/internal/pipeline"
	"nfce/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
	calls    int
}

func (s *stubConnector) FetchInbox(_ context.Context, _ string, _ int) ([]internal.FetchedMailMessage, error) {
	s.calls++
	if s.calls > 1 {
		return nil, nil
	}
	return s.messages, nil
}

const receiptHTML = `<html><head><title>NFC-e</title></head><body>
<p>ARROZ (Código: 7) Vl. Total</p>
<p>Qtde.: 2 UN: UN Vl. Unit.: 5,00 10,00</p>
<p>Emissão 10/01/2024 12:00</p>
</body></html>`

func receiptMail(t *testing.T) []byte {
	t.Helper()
	part, err := enmime.Builder().
		From("Loja", "nfce@loja.example").
		To("Cliente", "cliente@example.com").
		Subject("Sua NFC-e").
		Text([]byte("segue o cupom")).
		AddAttachment([]byte(receiptHTML), "text/html", "cupom.html").
		Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, part.Encode(&buf))
	return buf.Bytes()
}

func TestRunCycle(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.Config{
		ReceiptsDir:            filepath.Join(tmp, "cfs"),
		RawMailDir:             filepath.Join(tmp, "mail"),
		OutputDir:              filepath.Join(tmp, "out"),
		DatasetFile:            "purchases.csv",
		PDFTextProvider:        "native",
		MailListenerLabel:      "INBOX",
		MailListenerFetchMax:   10,
		MailListenerAutoExport: true,
	}
	require.NoError(t, os.MkdirAll(cfg.ReceiptsDir, 0o755))

	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	scanner, err := pipeline.NewScannerFromConfig(cfg, zap.NewNop())
	require.NoError(t, err)
	processor := pipeline.NewProcessingService(db, cfg, scanner, zap.NewNop())

	stub := &stubConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<1@loja>", Subject: "Sua NFC-e", From: "nfce@loja.example", Raw: receiptMail(t)},
	}}
	svc := NewService(db, cfg, stub, processor, zap.NewNop())

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 1, res.Scanned)
	require.NotEmpty(t, res.RunID)
	assert.FileExists(t, cfg.DatasetPath())
	assert.FileExists(t, res.Workbook)

	records, err := db.GetRunRecords(res.RunID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ARROZ", records[0].Product)
	assert.Equal(t, "10/01/2024", records[0].Date.String())

	pending, err := db.ListEmailsByStatus(storage.EmailFetched, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Nothing new on the second poll, so no run is started.
	res, err = svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
}

func TestRootsSkipsDuplicateMailDir(t *testing.T) {
	svc := &Service{cfg: config.Config{ReceiptsDir: "/data/cfs", RawMailDir: "/data/cfs/"}}
	assert.Equal(t, []string{"/data/cfs"}, svc.roots())

	svc.cfg.RawMailDir = "/data/mail"
	assert.Equal(t, []string{"/data/cfs", "/data/mail"}, svc.roots())
}
