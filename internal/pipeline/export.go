package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"nfce/internal"
	"nfce/internal/report"
	"nfce/internal/util"
)

const (
	SheetPurchases    = "compras"
	SheetABC          = "curva_abc"
	SheetPriceHistory = "historico_precos"
)

// datasetRow is the CSV shape of a purchase record. Numbers are already
// rendered with a decimal comma.
type datasetRow struct {
	Date            string `csv:"date"`
	Product         string `csv:"product"`
	Quantity        string `csv:"quantity"`
	Unit            string `csv:"unit"`
	UnitPrice       string `csv:"unit_price"`
	TotalPrice      string `csv:"total_price"`
	ProductCode     string `csv:"product_code"`
	SourceReference string `csv:"source_reference"`
}

func toDatasetRow(r internal.PurchaseRecord) datasetRow {
	return datasetRow{
		Date:            r.Date.String(),
		Product:         r.Product,
		Quantity:        util.FormatNumber(r.Quantity, -1),
		Unit:            r.Unit,
		UnitPrice:       util.FormatNumber(r.UnitPrice, 2),
		TotalPrice:      util.FormatNumber(r.TotalPrice, 2),
		ProductCode:     r.ProductCode,
		SourceReference: r.SourceReference,
	}
}

// ExportCSV writes the consolidated dataset as a ';' separated, BOM prefixed
// UTF-8 file. An empty record set writes nothing and returns 0.
func ExportCSV(records []internal.PurchaseRecord, path string) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]datasetRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toDatasetRow(r))
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, eris.Wrapf(err, "export: create dir for %s", path)
	}
	// Rows go to a temp file next to the dataset, which replaces the
	// destination only once fully written.
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return 0, eris.Wrapf(err, "export: create temp for %s", path)
	}
	tmp := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	if err := writeDataset(f, rows); err != nil {
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, eris.Wrapf(err, "export: close %s", tmp)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return 0, eris.Wrapf(err, "export: chmod %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, eris.Wrapf(err, "export: move dataset to %s", path)
	}
	return len(rows), nil
}

func writeDataset(w io.Writer, rows []datasetRow) error {
	bom := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bom)
	cw.Comma = ';'
	out := gocsv.NewSafeCSVWriter(cw)

	if err := gocsv.MarshalCSV(&rows, out); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	if err := bom.Close(); err != nil {
		return eris.Wrap(err, "export: encode csv")
	}
	return nil
}

// ExportXLSX writes the dataset plus the ABC curve and price history sheets.
// Numeric cells stay numeric so spreadsheets can sum them.
func ExportXLSX(records []internal.PurchaseRecord, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetPurchases); err != nil {
		return eris.Wrap(err, "export: rename sheet")
	}

	purchases := [][]any{{"date", "product", "quantity", "unit", "unit_price", "total_price", "product_code", "source_reference"}}
	for _, r := range records {
		purchases = append(purchases, []any{
			r.Date.String(), r.Product, r.Quantity.InexactFloat64(), r.Unit,
			r.UnitPrice.InexactFloat64(), r.TotalPrice.InexactFloat64(), r.ProductCode, r.SourceReference,
		})
	}

	abc := [][]any{{"product", "total_price", "share_pct", "cumulative_pct", "class"}}
	for _, e := range report.ClassifyABC(records) {
		abc = append(abc, []any{
			e.Product, e.Total.InexactFloat64(), e.Share.Round(2).InexactFloat64(),
			e.Cumulative.Round(2).InexactFloat64(), string(e.Class),
		})
	}

	history := [][]any{{"product", "date", "unit_price", "source_reference"}}
	for _, p := range report.PriceHistory(records) {
		history = append(history, []any{p.Product, p.Date.Format("02/01/2006"), p.UnitPrice.InexactFloat64(), p.Source})
	}

	for _, sheet := range []string{SheetABC, SheetPriceHistory} {
		if _, err := f.NewSheet(sheet); err != nil {
			return eris.Wrapf(err, "export: new sheet %s", sheet)
		}
	}
	for sheet, rows := range map[string][][]any{SheetPurchases: purchases, SheetABC: abc, SheetPriceHistory: history} {
		if err := writeSheet(f, sheet, rows); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", outputPath)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return eris.Wrapf(err, "export: save %s", outputPath)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return eris.Wrap(err, "export: cell name")
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return eris.Wrapf(err, "export: set %s!%s", sheet, cell)
			}
		}
	}
	return nil
}
