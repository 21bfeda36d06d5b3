package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownDate is how a receipt without a recognizable date is rendered.
const UnknownDate = "Data Desconhecida"

type DocumentKind string

const (
	KindPDF  DocumentKind = "pdf"
	KindHTML DocumentKind = "html"
)

type ContainerKind string

const (
	ContainerZip  ContainerKind = "zip"
	ContainerMail ContainerKind = "eml"
)

type ReceiptDate struct {
	Time  time.Time
	Known bool
}

func KnownDate(t time.Time) ReceiptDate {
	return ReceiptDate{Time: t, Known: true}
}

func (d ReceiptDate) String() string {
	if !d.Known {
		return UnknownDate
	}
	return d.Time.Format("02/01/2006")
}

type CaptureOutcome string

const (
	CaptureIncluded              CaptureOutcome = "included"
	CaptureExcludedZeroTotal     CaptureOutcome = "excluded_zero_total"
	CaptureExcludedUnparsedTotal CaptureOutcome = "excluded_unparsed_total"
)

func (o CaptureOutcome) Included() bool {
	return o == CaptureIncluded
}

// RawCapture holds the fields of one grammar match before name cleanup.
type RawCapture struct {
	Name       string
	Code       string
	Quantity   decimal.Decimal
	Unit       string
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Outcome    CaptureOutcome
	Offset     int
}

type PurchaseRecord struct {
	Date            ReceiptDate
	Product         string
	Quantity        decimal.Decimal
	Unit            string
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
	ProductCode     string
	SourceReference string
}

type DocumentStatus string

const (
	DocumentOK                DocumentStatus = "ok"
	DocumentNoItems           DocumentStatus = "no_items"
	DocumentUnsupportedLayout DocumentStatus = "unsupported_layout"
	DocumentFailed            DocumentStatus = "failed"
)

type DocumentReport struct {
	SourceReference string
	Kind            DocumentKind
	Status          DocumentStatus
	Items           int
	Excluded        int
	Date            ReceiptDate
	Error           string
}

type RunRow struct {
	ID         string
	Root       string
	StartedAt  string
	FinishedAt string
	Documents  int
	Failed     int
	Records    int
	Output     string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
