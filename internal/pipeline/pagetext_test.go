package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfce/internal"
	"nfce/internal/config"
)

func TestHTMLTextExtractor(t *testing.T) {
	html := `<html><head><title>NFC-e</title><style>.x{}</style></head><body>
<div id="tabResult"><span class="txtTit">LEITE INTEGRAL</span><span class="RCod">(Código: 123)</span>
<span class="Rqtd"><strong>Qtde.:</strong>2,000</span><span class="RUN"><strong>UN: </strong>UN</span>
<span class="RvlUnit"><strong>Vl. Unit.:</strong> 4,50</span><span class="valor">9,00</span></div>
<script>var x = "(Código: 1)";</script></body></html>`

	pages, err := HTMLTextExtractor{}.PageTexts(context.Background(), []byte(html))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "LEITE INTEGRAL\n(Código: 123)")
	assert.NotContains(t, pages[0], "var x")
	assert.NotContains(t, pages[0], "NFC-e")
}

// portalPage mirrors the item table of a saved NFC-e consultation page.
const portalPage = `<html><head><title>NFC-e</title></head><body>
<div id="conteudo"><div class="txtCenter"><div class="txtTopo">MERCADINHO BOA VISTA LTDA</div>
<div class="text">CNPJ: 00.000.000/0001-00</div></div>
<table id="tabResult">
<tr id="Item + 1"><td valign="top"><span class="txtTit">LEITE INTEGRAL</span>
<span class="RCod">(Código: 123 )</span><br />
<span class="Rqtd"><strong>Qtde.:</strong>2</span>
<span class="RUN"><strong>UN: </strong>UN</span>
<span class="RvlUnit"><strong>Vl. Unit.:</strong>&nbsp;4,5</span></td>
<td align="right" valign="top" class="txtTit noWrap">Vl. Total<br /><span class="valor">9,00</span></td></tr>
<tr id="Item + 2"><td valign="top"><span class="txtTit">PICANHA</span>
<span class="RCod">(Código: 88 )</span><br />
<span class="Rqtd"><strong>Qtde.:</strong>1,254</span>
<span class="RUN"><strong>UN: </strong>KG</span>
<span class="RvlUnit"><strong>Vl. Unit.:</strong>&nbsp;79,9</span></td>
<td align="right" valign="top" class="txtTit noWrap">Vl. Total<br /><span class="valor">100,19</span></td></tr>
</table>
<div id="infos"><ul><li><strong>Emissão: </strong>14/03/2024 18:22:05</li></ul></div>
</div></body></html>`

func TestPortalPageRecords(t *testing.T) {
	pages, err := HTMLTextExtractor{}.PageTexts(context.Background(), []byte(portalPage))
	require.NoError(t, err)

	res := NewDocumentExtractor(nil).Extract(pages, "portal-1.html")
	require.Len(t, res.Records, 2)
	assert.Equal(t, "123", res.Records[0].ProductCode)
	assert.True(t, res.Records[0].TotalPrice.Equal(dec("9")))
	assert.Equal(t, "PICANHA", res.Records[1].Product)
	assert.True(t, res.Records[1].Quantity.Equal(dec("1.254")))
	assert.True(t, res.Records[1].UnitPrice.Equal(dec("79.9")))
	assert.Equal(t, "14/03/2024", res.Records[1].Date.String())
}

// buildPDF writes a one page PDF whose content stream shows each line with
// the standard Helvetica font. Offsets in the xref table are exact.
func buildPDF(lines []string) []byte {
	escape := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	var content strings.Builder
	content.WriteString("BT /F1 10 Tf 20 800 Td ")
	for _, line := range lines {
		fmt.Fprintf(&content, "(%s ) Tj 0 -14 Td ", escape.Replace(latin1(line)))
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// latin1 encodes s for a WinAnsi font; every rune used here is below 256.
func latin1(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return string(out)
}

func TestPDFTextExtractorReadsReceipt(t *testing.T) {
	content := buildPDF([]string{
		"ARROZ TIPO 1 (Código: 101) Vl. Total",
		"Qtde.: 2 UN: PCT Vl. Unit.: 5,50 11,00",
		"Emissão 14/03/2024",
	})

	pages, err := PDFTextExtractor{}.PageTexts(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "(Código: 101)")

	res := NewDocumentExtractor(nil).Extract(pages, "cupom.pdf")
	require.Len(t, res.Records, 1)
	assert.Equal(t, "ARROZ TIPO 1", res.Records[0].Product)
	assert.Equal(t, "PCT", res.Records[0].Unit)
	assert.True(t, res.Records[0].TotalPrice.Equal(dec("11")))
	assert.Equal(t, "14/03/2024", res.Records[0].Date.String())
}

func TestPDFTextExtractorRejectsGarbage(t *testing.T) {
	_, err := PDFTextExtractor{}.PageTexts(context.Background(), []byte("not a pdf"))
	require.Error(t, err)
}

func TestSplitFormFeeds(t *testing.T) {
	assert.Equal(t, []string{"one", "two"}, splitFormFeeds("one\ftwo\f"))
	assert.Equal(t, []string{"one", "", "three"}, splitFormFeeds("one\f\fthree\f"))
	assert.Equal(t, []string{""}, splitFormFeeds(""))
}

func TestNewTextExtractors(t *testing.T) {
	ex, err := NewTextExtractors(config.Config{PDFTextProvider: "native"})
	require.NoError(t, err)
	assert.IsType(t, PDFTextExtractor{}, ex.PDF)

	ex, err = NewTextExtractors(config.Config{PDFTextProvider: "pdftotext", PdfToTextPath: "/opt/bin/pdftotext"})
	require.NoError(t, err)
	require.IsType(t, &PdfToTextExtractor{}, ex.PDF)
	assert.Equal(t, "/opt/bin/pdftotext", ex.PDF.(*PdfToTextExtractor).binPath)

	_, err = NewTextExtractors(config.Config{PDFTextProvider: "ocr"})
	require.Error(t, err)

	h, err := ex.For(internal.KindHTML)
	require.NoError(t, err)
	assert.IsType(t, HTMLTextExtractor{}, h)
	_, err = ex.For(internal.DocumentKind("docx"))
	require.Error(t, err)
}

func TestPdfToTextDefaultBinary(t *testing.T) {
	assert.Equal(t, "pdftotext", NewPdfToTextExtractor("").binPath)
}
