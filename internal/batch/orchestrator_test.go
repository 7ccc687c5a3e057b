package batch

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicekit/fapiao/internal/cache"
	"github.com/invoicekit/fapiao/internal/invoice"
)

// fakeSource serves canned text per file name; missing files fail.
type fakeSource map[string]string

func (f fakeSource) AcquireText(_ context.Context, path string) (string, error) {
	text, ok := f[path]
	if !ok {
		return "", fmt.Errorf("unreadable file: %s", path)
	}
	return text, nil
}

func invoiceText(buyer, buyerTaxID string) string {
	taxIDLine := ""
	if buyerTaxID != "" {
		taxIDLine = "纳税人识别号: " + buyerTaxID + "\n"
	}
	return `发票代码: 011002100211 发票号码: 12345678
开票日期: 2023年5月12日
购买方 名称: ` + buyer + "\n" + taxIDLine + `
金额 ¥100.00 税率 13% 税额 ¥13.00
价税合计 ¥113.00
销售方 名称: 上海启明信息技术有限公司
纳税人识别号: 91310115MA1K4PXQ2B
`
}

func newTestOrchestrator(source fakeSource, workers int) *Orchestrator {
	return NewOrchestrator(source, cache.New(), workers, zerolog.Nop())
}

func TestProcessBatchReturnsAllRecords(t *testing.T) {
	source := fakeSource{
		"a.pdf": invoiceText("北京华信科技有限公司", "91110108MA01C2XY4U"),
		"b.pdf": invoiceText("北京华信科技有限公司", "91110108MA01C2XY4U"),
		"c.pdf": invoiceText("北京华信科技有限公司", "91110108MA01C2XY4U"),
	}
	o := newTestOrchestrator(source, 2)

	result, err := o.ProcessBatch(context.Background(), []string{"a.pdf", "b.pdf", "c.pdf"})
	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	assert.Empty(t, result.Failures)

	// Records keep submission order regardless of completion order.
	assert.Equal(t, "a.pdf", result.Records[0].FileName)
	assert.Equal(t, "b.pdf", result.Records[1].FileName)
	assert.Equal(t, "c.pdf", result.Records[2].FileName)

	for _, rec := range result.Records {
		assert.Equal(t, "113.00", rec.TotalAmount)
		assert.Equal(t, "100.00", rec.PretaxAmount)
		assert.Equal(t, "13.00", rec.TaxAmount)
	}
}

func TestProcessBatchToleratesFailures(t *testing.T) {
	source := fakeSource{
		"good.pdf": invoiceText("北京华信科技有限公司", "91110108MA01C2XY4U"),
	}
	o := newTestOrchestrator(source, 4)

	result, err := o.ProcessBatch(context.Background(), []string{"good.pdf", "broken.pdf"})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "broken.pdf", result.Failures[0].File)
	assert.ErrorContains(t, result.Failures[0].Err, "unreadable")
}

func TestCrossValidationBackfillsTaxID(t *testing.T) {
	// Two documents carry the buyer's tax id, the third does not; the
	// batch-wide frequency table must fill the gap.
	source := fakeSource{
		"a.pdf": invoiceText("北京华信科技有限公司", "91110108MA01C2XY4U"),
		"b.pdf": invoiceText("北京华信科技有限公司", "91110108MA01C2XY4U"),
		"c.pdf": invoiceText("北京华信科技有限公司", ""),
	}
	o := newTestOrchestrator(source, 1)

	result, err := o.ProcessBatch(context.Background(), []string{"a.pdf", "b.pdf", "c.pdf"})
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	for _, rec := range result.Records {
		assert.Equal(t, "91110108MA01C2XY4U", rec.BuyerTaxID, rec.FileName)
	}
}

func TestCrossValidationPrefersMostFrequentPairing(t *testing.T) {
	records := []*invoice.Record{
		{FileName: "1", BuyerName: "Acme Co", BuyerTaxID: "T1",
			SellerName: invoice.Unrecognized, SellerTaxID: invoice.Unrecognized},
		{FileName: "2", BuyerName: "Acme Co", BuyerTaxID: "T1",
			SellerName: invoice.Unrecognized, SellerTaxID: invoice.Unrecognized},
		{FileName: "3", BuyerName: "Acme Co", BuyerTaxID: "T2",
			SellerName: invoice.Unrecognized, SellerTaxID: invoice.Unrecognized},
		{FileName: "4", BuyerName: "Acme Co", BuyerTaxID: invoice.Unrecognized,
			SellerName: invoice.Unrecognized, SellerTaxID: invoice.Unrecognized},
	}
	// Amount fields must hold the sentinel for the reconciler re-run.
	for _, rec := range records {
		rec.TotalAmount = invoice.Unrecognized
		rec.TotalInWords = invoice.Unrecognized
		rec.TaxAmount = invoice.Unrecognized
		rec.PretaxAmount = invoice.Unrecognized
		rec.TaxRate = invoice.Unrecognized
	}

	o := newTestOrchestrator(fakeSource{}, 1)
	o.crossValidate(records)

	assert.Equal(t, "T1", records[3].BuyerTaxID)
}

func TestProcessBatchCancelledContext(t *testing.T) {
	source := fakeSource{
		"a.pdf": invoiceText("北京华信科技有限公司", "91110108MA01C2XY4U"),
	}
	o := newTestOrchestrator(source, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.ProcessBatch(ctx, []string{"a.pdf"})
	require.NoError(t, err)
	// Nothing was scheduled after cancellation.
	assert.Empty(t, result.Records)
}

func TestProcessDocumentPipeline(t *testing.T) {
	source := fakeSource{
		"a.pdf": invoiceText("北京华信科技有限公司", "91110108MA01C2XY4U"),
	}
	o := newTestOrchestrator(source, 1)

	rec, err := o.ProcessDocument(context.Background(), "a.pdf")
	require.NoError(t, err)

	assert.Equal(t, "011002100211", rec.InvoiceCode)
	assert.Equal(t, "12345678", rec.InvoiceNo)
	assert.Equal(t, "113.00", rec.TotalAmount)
	assert.Equal(t, "壹佰壹拾叁圆整", rec.TotalInWords)
	assert.Equal(t, "13", rec.TaxRate)

	// The pipeline learned the pairing for later documents.
	taxID, ok := o.cache.Lookup("北京华信科技有限公司")
	require.True(t, ok)
	assert.Equal(t, "91110108MA01C2XY4U", taxID)
}

func TestCacheBackfillAcrossDocuments(t *testing.T) {
	withID := invoiceText("北京华信科技有限公司", "91110108MA01C2XY4U")
	withoutID := invoiceText("北京华信科技有限公司", "")
	source := fakeSource{"first.pdf": withID, "second.pdf": withoutID}
	o := newTestOrchestrator(source, 1)

	_, err := o.ProcessDocument(context.Background(), "first.pdf")
	require.NoError(t, err)

	rec, err := o.ProcessDocument(context.Background(), "second.pdf")
	require.NoError(t, err)
	assert.Equal(t, "91110108MA01C2XY4U", rec.BuyerTaxID)
}
