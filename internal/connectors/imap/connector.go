package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/rotisserie/eris"

	"nfce/internal"
	"nfce/internal/config"
)

// receiptSubjects mark a message as a receipt even when its body structure
// shows no document part (the receipt may be the HTML body itself).
var receiptSubjects = []string{"nfc-e", "nfce", "cupom fiscal", "nota fiscal"}

var receiptExtensions = map[string]bool{".pdf": true, ".html": true, ".htm": true}

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_USER", cfg.IMAPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_PASSWORD", cfg.IMAPPassword); err != nil {
		return nil, err
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
	}, nil
}

// FetchInbox downloads the newest max unseen messages that look like
// receipts. Selection runs on envelopes and body structures first, so other
// mail is neither downloaded nor marked seen. The IMAP client has no
// context support, so ctx is checked between round trips.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := c.open(label)
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := client.Search(criteria)
	if err != nil {
		return nil, eris.Wrap(err, "imap: search unseen")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	candidates, err := selectReceipts(client, ids)
	if err != nil {
		return nil, err
	}
	candidates = newest(candidates, max)
	if len(candidates) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := fetchRaw(client, candidates)
	if err != nil {
		return nil, err
	}

	if c.markSeen && len(out) > 0 {
		seqset := new(imap.SeqSet)
		seqset.AddNum(candidates...)
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := client.Store(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			return nil, eris.Wrap(err, "imap: mark seen")
		}
	}
	return out, nil
}

func (c *Connector) open(label string) (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "imap: dial %s", addr)
	}
	if err := client.Login(c.user, c.password); err != nil {
		_ = client.Logout()
		return nil, eris.Wrap(err, "imap: login")
	}
	if _, err := client.Select(label, false); err != nil {
		_ = client.Logout()
		return nil, eris.Wrapf(err, "imap: select %s", label)
	}
	return client, nil
}

// selectReceipts fetches envelopes and body structures of ids and returns
// the sequence numbers of receipt messages.
func selectReceipts(client *imapclient.Client, ids []uint32) ([]uint32, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- client.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchBodyStructure}, messages)
	}()

	var out []uint32
	for msg := range messages {
		if msg != nil && IsReceiptMessage(msg) {
			out = append(out, msg.SeqNum)
		}
	}
	if err := <-done; err != nil {
		return nil, eris.Wrap(err, "imap: fetch body structure")
	}
	return out, nil
}

// fetchRaw downloads whole messages without setting \Seen.
func fetchRaw(client *imapclient.Client, seqNums []uint32) ([]internal.FetchedMailMessage, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() { done <- client.Fetch(seqset, items, messages) }()

	out := make([]internal.FetchedMailMessage, 0, len(seqNums))
	var readErr error
	for msg := range messages {
		if msg == nil || readErr != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			readErr = eris.Wrapf(err, "imap: read message %d", msg.SeqNum)
			continue
		}
		out = append(out, toFetched(msg, raw))
	}
	if err := <-done; err != nil {
		return nil, eris.Wrap(err, "imap: fetch")
	}
	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}

func toFetched(msg *imap.Message, raw []byte) internal.FetchedMailMessage {
	f := internal.FetchedMailMessage{Provider: "imap", Raw: raw}
	if msg.Envelope != nil {
		f.MessageID = msg.Envelope.MessageId
		f.Subject = msg.Envelope.Subject
		f.From = formatAddresses(msg.Envelope.From)
	}
	if f.MessageID == "" {
		f.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	f.ReceivedAt = time.Now().UTC().Format(time.RFC3339)
	if !msg.InternalDate.IsZero() {
		f.ReceivedAt = msg.InternalDate.UTC().Format(time.RFC3339)
	}
	return f
}

// IsReceiptMessage reports whether a message carries a PDF or HTML
// document part, or names a consumer receipt in its subject.
func IsReceiptMessage(msg *imap.Message) bool {
	if msg.Envelope != nil {
		subject := strings.ToLower(msg.Envelope.Subject)
		for _, s := range receiptSubjects {
			if strings.Contains(subject, s) {
				return true
			}
		}
	}
	return hasDocumentPart(msg.BodyStructure)
}

func hasDocumentPart(bs *imap.BodyStructure) bool {
	if bs == nil {
		return false
	}
	if strings.EqualFold(bs.MIMEType, "multipart") {
		for _, part := range bs.Parts {
			if hasDocumentPart(part) {
				return true
			}
		}
		return false
	}

	if strings.EqualFold(bs.MIMEType, "application") && strings.EqualFold(bs.MIMESubType, "pdf") {
		return true
	}
	name := bs.DispositionParams["filename"]
	if name == "" {
		name = bs.Params["name"]
	}
	if name != "" {
		return receiptExtensions[strings.ToLower(filepath.Ext(name))]
	}
	// An HTML body is only a document when attached.
	return strings.EqualFold(bs.Disposition, "attachment") && strings.EqualFold(bs.MIMESubType, "html")
}

// newest keeps the max highest sequence numbers, oldest first.
func newest(seqNums []uint32, max int) []uint32 {
	sorted := append([]uint32(nil), seqNums...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if max > 0 && len(sorted) > max {
		sorted = sorted[len(sorted)-max:]
	}
	return sorted
}

func formatAddresses(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := strings.Trim(strings.Join([]string{a.MailboxName, a.HostName}, "@"), "@")
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, email))
		} else {
			parts = append(parts, email)
		}
	}
	return strings.Join(parts, ", ")
}
