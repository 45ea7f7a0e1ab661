// Package spool is a centralized print-job broker. Clients submit documents
// (receipts, labels, invoices) for one of many printers; the broker selects a
// printer, queues the job, drives it through its lifecycle and retries or
// escalates on failure.
//
// spool is designed as a library first. The daemon in cmd/spoold wires the
// packages together, but every component can be embedded on its own.
//
// # Quick Start
//
//	st := memory.New()
//	eng, err := engine.New(
//	    engine.WithStore(st),
//	    engine.WithSink(socket.New()),
//	    engine.WithConfig(spool.DefaultConfig()),
//	)
//
//	p, _ := eng.Printers().Register(ctx, &printer.Printer{Name: "front-desk", Type: printer.TypeReceipt})
//	j, _ := eng.Submit(ctx, &job.Job{PrinterID: p.ID, DocumentType: "receipt", Format: job.FormatHTML, Copies: 1, Data: html})
//
// # Architecture
//
// Each subsystem (job, printer) defines its own store interface and a single
// backend implements all of them. The engine package owns the job lifecycle:
// submission, processing, completion, failure, retry and cancellation. The
// queue processor drains each printer's backlog in FIFO order, merging label
// jobs into batches, and is triggered both by the cron scheduler and by
// printer activation events.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package spool
