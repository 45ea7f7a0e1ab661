// Package storetest is a conformance suite for store.Store backends. Each
// backend's tests call Run with a factory returning a fresh, migrated,
// empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/store"
)

// Factory returns a fresh store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the full conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("PrinterCRUD", func(t *testing.T) { testPrinterCRUD(t, newStore(t)) })
	t.Run("PrinterNameUnique", func(t *testing.T) { testPrinterNameUnique(t, newStore(t)) })
	t.Run("PrinterListOrder", func(t *testing.T) { testPrinterListOrder(t, newStore(t)) })
	t.Run("PrinterDeleteRestricted", func(t *testing.T) { testPrinterDeleteRestricted(t, newStore(t)) })
	t.Run("JobCRUD", func(t *testing.T) { testJobCRUD(t, newStore(t)) })
	t.Run("JobNameUnique", func(t *testing.T) { testJobNameUnique(t, newStore(t)) })
	t.Run("JobNameImmutable", func(t *testing.T) { testJobNameImmutable(t, newStore(t)) })
	t.Run("ClaimJob", func(t *testing.T) { testClaimJob(t, newStore(t)) })
	t.Run("ClaimJobConcurrent", func(t *testing.T) { testClaimJobConcurrent(t, newStore(t)) })
	t.Run("ListQueuedFIFO", func(t *testing.T) { testListQueuedFIFO(t, newStore(t)) })
	t.Run("ListAndCount", func(t *testing.T) { testListAndCount(t, newStore(t)) })
	t.Run("Sequence", func(t *testing.T) { testSequence(t, newStore(t)) })
}

// NewPrinter returns a printer ready to be stored.
func NewPrinter(name string, priority int) *printer.Printer {
	p := printer.New(name, printer.TypeReceipt)
	p.ID = id.NewPrinterID()
	p.Priority = priority
	p.Entity = spool.NewEntity()
	return p
}

// NewJob returns a queued job ready to be stored.
func NewJob(printerID id.PrinterID, name string, submitted time.Time, priority int) *job.Job {
	return &job.Job{
		Entity:       spool.NewEntity(),
		ID:           id.NewJobID(),
		Name:         name,
		DocumentType: job.DocTypeReceipt,
		PrinterID:    printerID,
		Data:         []byte("payload:" + name),
		Format:       job.FormatHTML,
		Copies:       1,
		Priority:     priority,
		State:        job.StateQueued,
		SubmittedAt:  &submitted,
	}
}

func mustCreatePrinter(t *testing.T, s store.Store, p *printer.Printer) *printer.Printer {
	t.Helper()
	if err := s.CreatePrinter(context.Background(), p); err != nil {
		t.Fatalf("CreatePrinter(%s): %v", p.Name, err)
	}
	return p
}

func mustCreateJob(t *testing.T, s store.Store, j *job.Job) *job.Job {
	t.Helper()
	if err := s.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob(%s): %v", j.Name, err)
	}
	return j
}

func testPrinterCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := NewPrinter("front-desk", 10)
	p.Location = "store-1"
	p.Department = "sales"
	p.SupportsESCPOS = true
	p.Address = "10.0.0.5:9100"
	mustCreatePrinter(t, s, p)

	got, err := s.GetPrinter(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPrinter: %v", err)
	}
	if got.Name != "front-desk" || got.Location != "store-1" || got.Department != "sales" {
		t.Errorf("GetPrinter = %+v", got)
	}
	if !got.SupportsESCPOS || got.SupportsZPL || !got.SupportsHTML {
		t.Errorf("capabilities not round-tripped: %+v", got)
	}
	if got.Address != "10.0.0.5:9100" {
		t.Errorf("Address = %q", got.Address)
	}

	byName, err := s.GetPrinterByName(ctx, "front-desk")
	if err != nil {
		t.Fatalf("GetPrinterByName: %v", err)
	}
	if byName.ID != p.ID {
		t.Errorf("GetPrinterByName ID = %s, want %s", byName.ID, p.ID)
	}

	got.Active = false
	got.Priority = 3
	if err := s.UpdatePrinter(ctx, got); err != nil {
		t.Fatalf("UpdatePrinter: %v", err)
	}
	updated, _ := s.GetPrinter(ctx, p.ID)
	if updated.Active || updated.Priority != 3 {
		t.Errorf("update not persisted: %+v", updated)
	}

	if err := s.DeletePrinter(ctx, p.ID); err != nil {
		t.Fatalf("DeletePrinter: %v", err)
	}
	if _, err := s.GetPrinter(ctx, p.ID); !errors.Is(err, spool.ErrPrinterNotFound) {
		t.Errorf("GetPrinter after delete = %v, want ErrPrinterNotFound", err)
	}
	if _, err := s.GetPrinterByName(ctx, "missing"); !errors.Is(err, spool.ErrPrinterNotFound) {
		t.Errorf("GetPrinterByName(missing) = %v, want ErrPrinterNotFound", err)
	}
}

func testPrinterNameUnique(t *testing.T, s store.Store) {
	ctx := context.Background()

	a := mustCreatePrinter(t, s, NewPrinter("shared", 1))
	if err := s.CreatePrinter(ctx, NewPrinter("shared", 2)); !errors.Is(err, spool.ErrPrinterExists) {
		t.Errorf("duplicate CreatePrinter = %v, want ErrPrinterExists", err)
	}

	b := mustCreatePrinter(t, s, NewPrinter("other", 1))
	b.Name = a.Name
	if err := s.UpdatePrinter(ctx, b); !errors.Is(err, spool.ErrPrinterExists) {
		t.Errorf("renaming onto an existing name = %v, want ErrPrinterExists", err)
	}
}

func testPrinterListOrder(t *testing.T, s store.Store) {
	ctx := context.Background()

	low := mustCreatePrinter(t, s, NewPrinter("low", 1))
	high := mustCreatePrinter(t, s, NewPrinter("high", 50))
	off := NewPrinter("off", 99)
	off.Active = false
	mustCreatePrinter(t, s, off)
	label := NewPrinter("label", 20)
	label.Type = printer.TypeLabel
	mustCreatePrinter(t, s, label)

	all, err := s.ListPrinters(ctx, printer.ListOpts{})
	if err != nil {
		t.Fatalf("ListPrinters: %v", err)
	}
	if len(all) != 4 || all[0].Name != "off" || all[3].ID != low.ID {
		t.Errorf("ListPrinters order = %v", names(all))
	}

	active, _ := s.ListPrinters(ctx, printer.ListOpts{ActiveOnly: true})
	if len(active) != 3 || active[0].ID != high.ID {
		t.Errorf("ActiveOnly = %v", names(active))
	}

	labels, _ := s.ListPrinters(ctx, printer.ListOpts{Type: printer.TypeLabel})
	if len(labels) != 1 || labels[0].Name != "label" {
		t.Errorf("Type filter = %v", names(labels))
	}

	page, _ := s.ListPrinters(ctx, printer.ListOpts{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].ID != high.ID {
		t.Errorf("page = %v", names(page))
	}
}

func testPrinterDeleteRestricted(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := mustCreatePrinter(t, s, NewPrinter("busy", 1))
	mustCreateJob(t, s, NewJob(p.ID, "receipt-busy-00001", time.Now().UTC(), 5))

	if err := s.DeletePrinter(ctx, p.ID); !errors.Is(err, spool.ErrPrinterInUse) {
		t.Errorf("DeletePrinter with jobs = %v, want ErrPrinterInUse", err)
	}
}

func testJobCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := mustCreatePrinter(t, s, NewPrinter("p", 1))
	j := NewJob(p.ID, "receipt-p-00001", time.Now().UTC().Truncate(time.Millisecond), 7)
	j.TemplateRef = "receipt"
	j.TemplateData = map[string]any{"total": "12.50"}
	j.User = "cashier"
	j.ParentModel = "pos.order"
	j.ParentID = "42"
	mustCreateJob(t, s, j)

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Name != j.Name || got.Priority != 7 || got.Format != job.FormatHTML {
		t.Errorf("GetJob = %+v", got)
	}
	if string(got.Data) != string(j.Data) {
		t.Errorf("Data = %q, want %q", got.Data, j.Data)
	}
	if got.TemplateData["total"] != "12.50" {
		t.Errorf("TemplateData = %v", got.TemplateData)
	}
	if got.User != "cashier" || got.ParentModel != "pos.order" || got.ParentID != "42" {
		t.Errorf("provenance not round-tripped: %+v", got)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(*j.SubmittedAt) {
		t.Errorf("SubmittedAt = %v, want %v", got.SubmittedAt, j.SubmittedAt)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	got.State = job.StateFailed
	got.Error = "printer busy"
	got.RetryCount = 2
	got.CompletedAt = &now
	if err := s.UpdateJob(ctx, got); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	updated, _ := s.GetJob(ctx, j.ID)
	if updated.State != job.StateFailed || updated.Error != "printer busy" || updated.RetryCount != 2 {
		t.Errorf("update not persisted: %+v", updated)
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", updated.CompletedAt, now)
	}

	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, spool.ErrJobNotFound) {
		t.Errorf("GetJob(missing) = %v, want ErrJobNotFound", err)
	}
	missing := NewJob(p.ID, "nope", now, 1)
	if err := s.UpdateJob(ctx, missing); !errors.Is(err, spool.ErrJobNotFound) {
		t.Errorf("UpdateJob(missing) = %v, want ErrJobNotFound", err)
	}
}

func testJobNameUnique(t *testing.T, s store.Store) {
	p := mustCreatePrinter(t, s, NewPrinter("p", 1))
	mustCreateJob(t, s, NewJob(p.ID, "dup", time.Now().UTC(), 1))

	err := s.CreateJob(context.Background(), NewJob(p.ID, "dup", time.Now().UTC(), 1))
	if !errors.Is(err, spool.ErrJobAlreadyExists) {
		t.Errorf("duplicate name CreateJob = %v, want ErrJobAlreadyExists", err)
	}
}

func testJobNameImmutable(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := mustCreatePrinter(t, s, NewPrinter("p", 1))
	j := mustCreateJob(t, s, NewJob(p.ID, "original", time.Now().UTC(), 1))

	j.Name = "renamed"
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	got, _ := s.GetJob(ctx, j.ID)
	if got.Name != "original" {
		t.Errorf("Name = %q, want original", got.Name)
	}
}

func testClaimJob(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := mustCreatePrinter(t, s, NewPrinter("p", 1))
	j := mustCreateJob(t, s, NewJob(p.ID, "claim", time.Now().UTC(), 1))

	claimed, err := s.ClaimJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if claimed.State != job.StatePrinting {
		t.Errorf("claimed state = %s, want printing", claimed.State)
	}

	if _, err := s.ClaimJob(ctx, j.ID); !errors.Is(err, spool.ErrJobClaimed) {
		t.Errorf("second ClaimJob = %v, want ErrJobClaimed", err)
	}
	if _, err := s.ClaimJob(ctx, id.NewJobID()); !errors.Is(err, spool.ErrJobNotFound) {
		t.Errorf("ClaimJob(missing) = %v, want ErrJobNotFound", err)
	}

	stored, _ := s.GetJob(ctx, j.ID)
	if stored.State != job.StatePrinting {
		t.Errorf("stored state = %s, want printing", stored.State)
	}
}

func testClaimJobConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := mustCreatePrinter(t, s, NewPrinter("p", 1))
	j := mustCreateJob(t, s, NewJob(p.ID, "race", time.Now().UTC(), 1))

	const workers = 8
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ClaimJob(ctx, j.ID); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("%d claims succeeded, want exactly 1", got)
	}
}

func testListQueuedFIFO(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := mustCreatePrinter(t, s, NewPrinter("p", 1))
	other := mustCreatePrinter(t, s, NewPrinter("other", 1))

	base := time.Now().UTC().Truncate(time.Second)
	late := mustCreateJob(t, s, NewJob(p.ID, "late", base.Add(time.Minute), 100))
	earlyLow := mustCreateJob(t, s, NewJob(p.ID, "early-low", base, 1))
	earlyHigh := mustCreateJob(t, s, NewJob(p.ID, "early-high", base, 9))
	mustCreateJob(t, s, NewJob(other.ID, "elsewhere", base, 1))
	done := NewJob(p.ID, "done", base, 1)
	done.State = job.StateCompleted
	mustCreateJob(t, s, done)

	got, err := s.ListQueuedJobs(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListQueuedJobs: %v", err)
	}
	want := []id.JobID{earlyHigh.ID, earlyLow.ID, late.ID}
	if len(got) != len(want) {
		t.Fatalf("ListQueuedJobs returned %d jobs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i].Name, want[i])
		}
	}
}

func testListAndCount(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := mustCreatePrinter(t, s, NewPrinter("p", 1))
	q := mustCreatePrinter(t, s, NewPrinter("q", 1))
	now := time.Now().UTC()
	mustCreateJob(t, s, NewJob(p.ID, "a", now, 1))
	mustCreateJob(t, s, NewJob(p.ID, "b", now, 1))
	failed := NewJob(q.ID, "c", now, 1)
	failed.State = job.StateFailed
	mustCreateJob(t, s, failed)

	all, err := s.ListJobs(ctx, job.ListOpts{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListJobs returned %d, want 3", len(all))
	}

	queued, _ := s.ListJobs(ctx, job.ListOpts{State: job.StateQueued})
	if len(queued) != 2 {
		t.Errorf("queued = %d, want 2", len(queued))
	}
	forQ, _ := s.ListJobs(ctx, job.ListOpts{PrinterID: q.ID})
	if len(forQ) != 1 || forQ[0].Name != "c" {
		t.Errorf("printer filter = %d jobs", len(forQ))
	}
	limited, _ := s.ListJobs(ctx, job.ListOpts{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit = %d, want 1", len(limited))
	}

	n, err := s.CountJobs(ctx, job.CountOpts{PrinterID: p.ID})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if n != 2 {
		t.Errorf("CountJobs(printer p) = %d, want 2", n)
	}
	n, _ = s.CountJobs(ctx, job.CountOpts{State: job.StateFailed})
	if n != 1 {
		t.Errorf("CountJobs(failed) = %d, want 1", n)
	}
}

func testSequence(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, err := s.NextJobSequence(ctx)
	if err != nil {
		t.Fatalf("NextJobSequence: %v", err)
	}
	second, err := s.NextJobSequence(ctx)
	if err != nil {
		t.Fatalf("NextJobSequence: %v", err)
	}
	if second <= first {
		t.Errorf("sequence not increasing: %d then %d", first, second)
	}
}

func names(ps []*printer.Printer) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
