package pipeline

import "strings"

type LayoutResult struct {
	Supported bool
	Score     float64
	Reason    string
	Missing   []string
}

var layoutLabels = []string{"(Código:", "Vl. Total", "Qtde.:", "UN:", "Vl. Unit.:"}

// DetectLayout scores how much of the item record vocabulary appears in a
// document. A document that yields no items but scores high is a receipt we
// failed to parse; a low score means a different layout altogether.
func DetectLayout(text string) LayoutResult {
	linear := strings.Join(strings.Fields(text), " ")

	score := 0.0
	missing := []string{}
	for _, label := range layoutLabels {
		if strings.Contains(linear, label) {
			score += 1.0 / float64(len(layoutLabels))
		} else {
			missing = append(missing, label)
		}
	}
	if strings.Contains(linear, "NFC-e") || strings.Contains(linear, "CNPJ") {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}

	supported := len(missing) == 0 || score >= 0.6
	reason := "labels_missing"
	if supported {
		reason = "labels_found"
	}
	if strings.TrimSpace(linear) == "" {
		reason = "empty_text"
	}

	return LayoutResult{Supported: supported, Score: score, Reason: reason, Missing: missing}
}
