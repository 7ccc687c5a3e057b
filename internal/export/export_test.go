package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/invoicekit/fapiao/internal/invoice"
)

func sampleRecords() []*invoice.Record {
	rec := invoice.NewRecord("a.pdf")
	rec.InvoiceCode = "011002100211"
	rec.InvoiceNo = "12345678"
	rec.IssueDate = "2023年5月12日"
	rec.BuyerName = "北京华信科技有限公司"
	rec.BuyerTaxID = "91110108MA01C2XY4U"
	rec.SellerName = "上海启明信息技术有限公司"
	rec.SellerTaxID = "91310115MA1K4PXQ2B"
	rec.TotalAmount = "113.00"
	rec.TotalInWords = "壹佰壹拾叁圆整"
	rec.TaxAmount = "13.00"
	rec.PretaxAmount = "100.00"
	rec.TaxRate = "13"
	return []*invoice.Record{rec}
}

func TestWriteCSVPrependsBOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	out := buf.Bytes()
	require.True(t, len(out) > 3)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, out[:3])
}

func TestWriteCSVRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF})))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "a.pdf", rows[1][0])
	assert.Equal(t, "113.00", rows[1][8])
	assert.Equal(t, "壹佰壹拾叁圆整", rows[1][9])
}

func TestWriteCSVQuotesEmbeddedDelimiters(t *testing.T) {
	rec := invoice.NewRecord(`tricky "one", really.pdf`)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*invoice.Record{rec}))

	// Doubled quotes inside a quoted field.
	assert.Contains(t, buf.String(), `"tricky ""one"", really.pdf"`)

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF})))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, `tricky "one", really.pdf`, rows[1][0])
}

func TestWriteCSVKeepsUnrecognizedMarker(t *testing.T) {
	rec := invoice.NewRecord("empty.pdf")
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*invoice.Record{rec}))

	assert.True(t, strings.Contains(buf.String(), invoice.Unrecognized))
}

func TestWriteXLSXFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSXFile(path, sampleRecords()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "12345678", rows[1][2])
}
