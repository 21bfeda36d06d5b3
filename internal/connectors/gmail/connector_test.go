package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"nfce/internal/config"
)

func TestDecodeBase64URL(t *testing.T) {
	raw := []byte("Subject: NFC-e\r\n\r\n???>>>")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		got, err := decodeBase64URL(enc.EncodeToString(raw))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(raw) {
			t.Fatalf("got %q", got)
		}
	}
	if _, err := decodeBase64URL("***"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMailDate(t *testing.T) {
	want := time.Date(2024, 3, 14, 10, 22, 1, 0, time.UTC)
	for _, v := range []string{"Thu, 14 Mar 2024 10:22:01 +0000", "Thu, 14 Mar 2024 10:22:01 +0000 (UTC)"} {
		got, err := mailDate(v)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(want) {
			t.Fatalf("got %v", got)
		}
	}
	if _, err := mailDate("yesterday"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewConnectorRequiresCredentials(t *testing.T) {
	if _, err := NewConnector(config.Config{GmailClientID: "id"}); err == nil {
		t.Fatal("expected error")
	}
}
