// Package batch runs extraction concurrently across a submitted set of
// documents and performs a second, cross-document validation pass once
// every document has produced a draft record.
package batch

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/invoicekit/fapiao/internal/acquire"
	"github.com/invoicekit/fapiao/internal/cache"
	"github.com/invoicekit/fapiao/internal/invoice"
)

// State tracks a batch through its lifecycle.
type State int

const (
	StateSubmitted State = iota
	StateExtractingAll
	StateCrossValidating
	StateDone
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StateExtractingAll:
		return "extracting_all"
	case StateCrossValidating:
		return "cross_validating"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProcessError reports one document that could not be processed. Failed
// documents are excluded from the result set, never returned as partial
// records.
type ProcessError struct {
	File string
	Err  error
}

func (e ProcessError) Error() string {
	return e.File + ": " + e.Err.Error()
}

func (e ProcessError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one batch: successfully processed records in
// submission order, plus the per-file failures.
type Result struct {
	BatchID  uuid.UUID
	Records  []*invoice.Record
	Failures []ProcessError
}

// Orchestrator wires the acquisition source, the shared counterparty
// cache and the extraction pipeline together. It is safe for concurrent
// batches; the cache is the only shared state and serializes itself.
type Orchestrator struct {
	source  acquire.TextSource
	cache   *cache.TaxIDCache
	workers int
	logger  zerolog.Logger
}

// NewOrchestrator creates an orchestrator. workers <= 0 selects one
// worker per CPU.
func NewOrchestrator(source acquire.TextSource, taxCache *cache.TaxIDCache, workers int, logger zerolog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Orchestrator{
		source:  source,
		cache:   taxCache,
		workers: workers,
		logger:  logger,
	}
}

// ProcessBatch processes every file concurrently on a bounded worker
// pool, blocks until all have finished, then cross-validates the batch.
// A single document's failure does not abort the batch. Cancelling ctx
// stops scheduling not-yet-started documents; in-flight ones finish.
func (o *Orchestrator) ProcessBatch(ctx context.Context, files []string) (*Result, error) {
	result := &Result{BatchID: uuid.New()}
	state := StateSubmitted
	o.logger.Info().
		Str("batch_id", result.BatchID.String()).
		Int("documents", len(files)).
		Str("state", state.String()).
		Msg("batch submitted")

	state = StateExtractingAll
	records := make([]*invoice.Record, len(files))
	var (
		mu       sync.Mutex
		failures []ProcessError
	)

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i, file := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := o.ProcessDocument(ctx, file)
			if err != nil {
				mu.Lock()
				failures = append(failures, ProcessError{File: file, Err: err})
				mu.Unlock()
				o.logger.Error().Err(err).Str("file", file).Msg("document failed")
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	state = StateCrossValidating
	o.logger.Debug().
		Str("batch_id", result.BatchID.String()).
		Str("state", state.String()).
		Msg("extraction finished")

	for _, rec := range records {
		if rec != nil {
			result.Records = append(result.Records, rec)
		}
	}
	result.Failures = failures
	o.crossValidate(result.Records)

	state = StateDone
	o.logger.Info().
		Str("batch_id", result.BatchID.String()).
		Int("succeeded", len(result.Records)).
		Int("failed", len(result.Failures)).
		Str("state", state.String()).
		Msg("batch done")
	return result, nil
}

// ProcessDocument runs the full per-document pipeline: acquisition,
// extraction, cache backfill, amount and word-form reconciliation, and
// finally the cache update. It is not interruptible mid-document.
func (o *Orchestrator) ProcessDocument(ctx context.Context, file string) (*invoice.Record, error) {
	text, err := o.source.AcquireText(ctx, file)
	if err != nil {
		return nil, err
	}

	rec := invoice.ExtractRecord(file, text)
	o.backfillFromCache(rec)
	invoice.ReconcileAmounts(rec, o.logger)
	invoice.ReconcileWords(rec, o.logger)
	o.updateCache(rec)
	return rec, nil
}

// backfillFromCache fills a missing tax id (or company name) from
// whatever earlier documents established. Each call holds the cache lock
// only for the duration of a single lookup.
func (o *Orchestrator) backfillFromCache(rec *invoice.Record) {
	if invoice.Known(rec.BuyerName) && !invoice.Known(rec.BuyerTaxID) {
		if taxID, ok := o.cache.Lookup(rec.BuyerName); ok && taxID != rec.SellerTaxID {
			rec.BuyerTaxID = taxID
		}
	}
	if invoice.Known(rec.SellerName) && !invoice.Known(rec.SellerTaxID) {
		if taxID, ok := o.cache.Lookup(rec.SellerName); ok && taxID != rec.BuyerTaxID {
			rec.SellerTaxID = taxID
		}
	}
	if !invoice.Known(rec.BuyerName) && invoice.Known(rec.BuyerTaxID) {
		if company, ok := o.cache.LookupCompany(rec.BuyerTaxID); ok && company != rec.SellerName {
			rec.BuyerName = company
		}
	}
	if !invoice.Known(rec.SellerName) && invoice.Known(rec.SellerTaxID) {
		if company, ok := o.cache.LookupCompany(rec.SellerTaxID); ok && company != rec.BuyerName {
			rec.SellerName = company
		}
	}
}

// updateCache reaffirms the pairings this document resolved.
func (o *Orchestrator) updateCache(rec *invoice.Record) {
	if invoice.Known(rec.BuyerName) && invoice.Known(rec.BuyerTaxID) {
		o.cache.Associate(rec.BuyerName, rec.BuyerTaxID)
	}
	if invoice.Known(rec.SellerName) && invoice.Known(rec.SellerTaxID) {
		o.cache.Associate(rec.SellerName, rec.SellerTaxID)
	}
}

// crossValidate builds a frequency table of (company, taxID) pairings
// seen across the whole batch and backfills any record where a
// counterparty name is known but its tax id is not, using the most
// frequent tax id for that name within the batch. The reconciler runs
// once more afterwards; it is idempotent, so re-invocation is safe.
func (o *Orchestrator) crossValidate(records []*invoice.Record) {
	freq := make(map[string]map[string]int)
	observe := func(name, taxID string) {
		if !invoice.Known(name) || !invoice.Known(taxID) {
			return
		}
		if freq[name] == nil {
			freq[name] = make(map[string]int)
		}
		freq[name][taxID]++
	}
	for _, rec := range records {
		observe(rec.BuyerName, rec.BuyerTaxID)
		observe(rec.SellerName, rec.SellerTaxID)
	}

	for _, rec := range records {
		if invoice.Known(rec.BuyerName) && !invoice.Known(rec.BuyerTaxID) {
			if taxID, ok := mostFrequent(freq[rec.BuyerName]); ok && taxID != rec.SellerTaxID {
				rec.BuyerTaxID = taxID
			}
		}
		if invoice.Known(rec.SellerName) && !invoice.Known(rec.SellerTaxID) {
			if taxID, ok := mostFrequent(freq[rec.SellerName]); ok && taxID != rec.BuyerTaxID {
				rec.SellerTaxID = taxID
			}
		}
		invoice.ReconcileAmounts(rec, o.logger)
		invoice.ReconcileWords(rec, o.logger)
	}
}

// mostFrequent picks the highest-count tax id, breaking count ties by
// lexical order so the result is deterministic across runs.
func mostFrequent(counts map[string]int) (string, bool) {
	if len(counts) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestCount := "", -1
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best, true
}
