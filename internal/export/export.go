// Package export serializes final records for external consumption.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/invoicekit/fapiao/internal/invoice"
)

// utf8BOM is prepended so spreadsheet tools pick the right encoding for
// the CJK content.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Header is the fixed column order of the exported table.
var Header = []string{
	"文件名", "发票代码", "发票号码", "开票日期",
	"购买方名称", "购买方税号", "销售方名称", "销售方税号",
	"价税合计", "价税合计(大写)", "税额", "金额", "税率",
}

func row(rec *invoice.Record) []string {
	return []string{
		rec.FileName,
		rec.InvoiceCode,
		rec.InvoiceNo,
		rec.IssueDate,
		rec.BuyerName,
		rec.BuyerTaxID,
		rec.SellerName,
		rec.SellerTaxID,
		rec.TotalAmount,
		rec.TotalInWords,
		rec.TaxAmount,
		rec.PretaxAmount,
		rec.TaxRate,
	}
}

// WriteCSV writes the record table as delimited text, one row per
// record, header first. Fields containing the delimiter, quotes or
// newlines are quote-escaped by the csv writer; a byte-order marker is
// prepended for downstream spreadsheet tools.
func WriteCSV(w io.Writer, records []*invoice.Record) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(row(rec)); err != nil {
			return fmt.Errorf("failed to write record %s: %w", rec.FileName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the CSV table to path, creating or truncating it.
func WriteCSVFile(path string, records []*invoice.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}

// WriteXLSXFile writes the same table as an xlsx workbook.
func WriteXLSXFile(path string, records []*invoice.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for col, name := range Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	for i, rec := range records {
		for col, value := range row(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
