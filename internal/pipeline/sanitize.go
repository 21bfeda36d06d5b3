package pipeline

import (
	"strings"

	"nfce/internal/util"
)

// NameSanitizer cleans a captured product name before it becomes a record.
type NameSanitizer interface {
	Sanitize(name string) string
}

type TrimSanitizer struct{}

func (TrimSanitizer) Sanitize(name string) string {
	return strings.TrimSpace(name)
}

// HeaderSanitizer strips the store header (company id, address) that the
// first item of a receipt usually drags along. When the name contains one of
// the signals and the state token, only the text after the last
// " <state> " survives. It is best effort and leaves other names alone.
type HeaderSanitizer struct {
	Signals []string
	State   string
}

func NewHeaderSanitizer(signals []string, state string) HeaderSanitizer {
	if len(signals) == 0 {
		signals = []string{"CNPJ", "Recife"}
	}
	if strings.TrimSpace(state) == "" {
		state = "PE"
	}
	return HeaderSanitizer{Signals: signals, State: strings.TrimSpace(state)}
}

func (h HeaderSanitizer) Sanitize(name string) string {
	name = strings.TrimSpace(name)
	if !util.ContainsAny(name, h.Signals) || !strings.Contains(name, h.State) {
		return name
	}
	sep := " " + h.State + " "
	if idx := strings.LastIndex(name, sep); idx >= 0 {
		name = name[idx+len(sep):]
	}
	return strings.TrimSpace(name)
}
