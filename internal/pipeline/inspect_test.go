package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfce/internal"
)

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nota.html")
	writeFile(t, path, []byte("<html><body><div>Emissão 02/05/2024</div><div>"+
		itemText("BRINDE", "1", "0,00")+"</div><div>"+itemText("PERA", "2", "3,00")+"</div></body></html>"))

	texts := TextExtractors{PDF: textPDF{}, HTML: HTMLTextExtractor{}}
	got, err := Inspect(context.Background(), texts, path)
	require.NoError(t, err)

	assert.Equal(t, "nota.html", got.Source)
	assert.Equal(t, internal.KindHTML, got.Kind)
	assert.True(t, got.Layout.Supported)
	assert.Equal(t, "02/05/2024", got.Date.String())
	require.Len(t, got.Captures, 2)

	first, ok := got.FirstCapture()
	require.True(t, ok)
	assert.Equal(t, internal.CaptureExcludedZeroTotal, first.Outcome)

	_, err = Inspect(context.Background(), texts, filepath.Join(t.TempDir(), "x.zip"))
	require.Error(t, err)
}
