package imap

import (
	"context"
	"testing"

	"github.com/emersion/go-imap"

	"nfce/internal/config"
)

func TestFormatAddresses(t *testing.T) {
	got := formatAddresses([]*imap.Address{
		{PersonalName: "Loja Centro", MailboxName: "nfce", HostName: "loja.example"},
		nil,
		{MailboxName: "fiscal", HostName: "loja.example"},
	})
	if got != "Loja Centro <nfce@loja.example>, fiscal@loja.example" {
		t.Fatalf("got %q", got)
	}
	if formatAddresses(nil) != "" {
		t.Fatal("expected empty")
	}
}

func TestFetchInboxHonoursCancelledContext(t *testing.T) {
	c, err := NewConnector(config.Config{IMAPHost: "127.0.0.1", IMAPPort: 1, IMAPUser: "u", IMAPPassword: "p"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.FetchInbox(ctx, "INBOX", 5); err == nil {
		t.Fatal("expected context error")
	}
}

func TestIsReceiptMessage(t *testing.T) {
	pdfAttachment := &imap.BodyStructure{
		MIMEType: "multipart", MIMESubType: "mixed",
		Parts: []*imap.BodyStructure{
			{MIMEType: "text", MIMESubType: "plain"},
			{MIMEType: "application", MIMESubType: "pdf", Disposition: "attachment", DispositionParams: map[string]string{"filename": "cupom.pdf"}},
		},
	}
	octetPDF := &imap.BodyStructure{
		MIMEType: "multipart", MIMESubType: "mixed",
		Parts: []*imap.BodyStructure{
			{MIMEType: "text", MIMESubType: "plain"},
			{MIMEType: "application", MIMESubType: "octet-stream", Params: map[string]string{"name": "NFCE-123.PDF"}},
		},
	}
	htmlAttachment := &imap.BodyStructure{
		MIMEType: "multipart", MIMESubType: "mixed",
		Parts: []*imap.BodyStructure{
			{MIMEType: "text", MIMESubType: "plain"},
			{MIMEType: "text", MIMESubType: "html", Disposition: "attachment"},
		},
	}
	newsletter := &imap.BodyStructure{
		MIMEType: "multipart", MIMESubType: "alternative",
		Parts: []*imap.BodyStructure{
			{MIMEType: "text", MIMESubType: "plain"},
			{MIMEType: "text", MIMESubType: "html"},
			{MIMEType: "image", MIMESubType: "png", Params: map[string]string{"name": "logo.png"}},
		},
	}

	cases := []struct {
		name    string
		subject string
		body    *imap.BodyStructure
		want    bool
	}{
		{name: "pdf attachment", subject: "Seu pedido", body: pdfAttachment, want: true},
		{name: "pdf by file name", subject: "Seu pedido", body: octetPDF, want: true},
		{name: "attached html page", subject: "Seu pedido", body: htmlAttachment, want: true},
		{name: "receipt subject with inline body", subject: "Sua NFC-e chegou", body: newsletter, want: true},
		{name: "newsletter", subject: "Ofertas da semana", body: newsletter, want: false},
		{name: "no structure", subject: "Oi", body: nil, want: false},
	}
	for _, tc := range cases {
		msg := &imap.Message{Envelope: &imap.Envelope{Subject: tc.subject}, BodyStructure: tc.body}
		if got := IsReceiptMessage(msg); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewestKeepsHighestSequenceNumbers(t *testing.T) {
	got := newest([]uint32{9, 2, 7, 4}, 2)
	if len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Fatalf("got %v", got)
	}
	if got := newest([]uint32{3, 1}, 0); len(got) != 2 || got[0] != 1 {
		t.Fatalf("got %v", got)
	}
}
