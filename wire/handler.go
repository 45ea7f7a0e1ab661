package wire

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/xraph/spool"
	"github.com/xraph/spool/engine"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/service"
	"github.com/xraph/spool/stream"
)

// Handler dispatches request frames to engine operations.
type Handler struct {
	eng    *engine.Engine
	svc    *service.Service
	broker *stream.Broker
	conns  *ConnectionManager
	logger *slog.Logger
}

// NewHandler creates a method handler. Submissions go through svc so
// they get printer selection and template rendering.
func NewHandler(eng *engine.Engine, svc *service.Service, broker *stream.Broker, logger *slog.Logger) *Handler {
	return &Handler{eng: eng, svc: svc, broker: broker, logger: logger}
}

// Handle processes a single request frame and returns a response.
func (h *Handler) Handle(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	switch frame.Method {
	case MethodJobSubmit:
		return h.handleJobSubmit(ctx, frame, conn)
	case MethodJobGet:
		return h.handleJobGet(ctx, frame)
	case MethodJobList:
		return h.handleJobList(ctx, frame)
	case MethodJobCancel:
		return h.handleJobCancel(ctx, frame)
	case MethodJobRetry:
		return h.handleJobRetry(ctx, frame)
	case MethodPrinterList:
		return h.handlePrinterList(ctx, frame)
	case MethodQueueProcess:
		return h.handleQueueProcess(ctx, frame)
	case MethodSubscribe:
		return h.handleSubscribe(frame)
	case MethodUnsubscribe:
		return h.handleUnsubscribe(frame)
	case MethodStats:
		return h.handleStats(frame)
	default:
		return NewErrorFrame(frame.ID, ErrCodeMethodNotFound, "unknown method: "+frame.Method)
	}
}

// ErrorCode maps an engine error to a wire error code. The codes are HTTP
// status codes, so the REST API shares the mapping.
func ErrorCode(err error) int {
	switch {
	case spool.IsValidation(err),
		errors.Is(err, spool.ErrNoPrinterAvailable),
		errors.Is(err, spool.ErrPrinterInactive):
		return ErrCodeUnprocessable
	case spool.IsNotFound(err):
		return ErrCodeNotFound
	case errors.Is(err, spool.ErrInvalidState),
		errors.Is(err, spool.ErrJobClaimed),
		errors.Is(err, spool.ErrJobAlreadyExists),
		errors.Is(err, spool.ErrPrinterExists),
		errors.Is(err, spool.ErrPrinterInUse),
		errors.Is(err, spool.ErrMaxRetriesExceeded):
		return ErrCodeConflict
	default:
		return ErrCodeInternal
	}
}

// Submit routes req through svc: a template is rendered, raw data is
// printed as is. user is recorded when the request names none.
func Submit(ctx context.Context, svc *service.Service, req JobSubmitRequest, user string) (*job.Job, error) {
	opts := service.Options{
		Printer:      req.Printer,
		DocumentType: req.DocumentType,
		Location:     req.Location,
		Department:   req.Department,
		Copies:       req.Copies,
		Priority:     req.Priority,
		User:         req.User,
		ParentModel:  req.ParentModel,
		ParentID:     req.ParentID,
	}
	if opts.User == "" {
		opts.User = user
	}
	if req.Template != "" {
		return svc.PrintDocument(ctx, req.Template, req.TemplateData, opts)
	}
	return svc.PrintRaw(ctx, req.Data, job.Format(req.Format), opts)
}

func errorFrame(frameID string, err error) *Frame {
	return NewErrorFrame(frameID, ErrorCode(err), err.Error())
}

// mustResponseFrame creates a response frame, returning an error frame on
// marshal failure.
func mustResponseFrame(frameID string, data any) *Frame {
	resp, err := NewResponseFrame(frameID, data)
	if err != nil {
		return NewErrorFrame(frameID, ErrCodeInternal, "marshal response: "+err.Error())
	}
	return resp
}

func decode(frame *Frame, v any) *Frame {
	if len(frame.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}
	return nil
}

func (h *Handler) handleJobSubmit(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	var req JobSubmitRequest
	if errFrame := decode(frame, &req); errFrame != nil {
		return errFrame
	}

	user := ""
	if conn != nil && conn.Identity != nil {
		user = conn.Identity.Subject
	}
	j, err := Submit(ctx, h.svc, req, user)
	if err != nil {
		return errorFrame(frame.ID, err)
	}

	return mustResponseFrame(frame.ID, JobSubmitResponse{
		JobID:     j.ID.String(),
		Name:      j.Name,
		PrinterID: j.PrinterID.String(),
		State:     string(j.State),
		Offline:   j.Offline,
	})
}

func (h *Handler) parseJobID(frame *Frame) (id.JobID, *Frame) {
	var req JobRequest
	if errFrame := decode(frame, &req); errFrame != nil {
		return id.JobID{}, errFrame
	}
	jobID, err := id.ParseJobID(req.JobID)
	if err != nil {
		return id.JobID{}, NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid job ID: "+err.Error())
	}
	return jobID, nil
}

func (h *Handler) handleJobGet(ctx context.Context, frame *Frame) *Frame {
	jobID, errFrame := h.parseJobID(frame)
	if errFrame != nil {
		return errFrame
	}
	j, err := h.eng.Get(ctx, jobID)
	if err != nil {
		return errorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, j)
}

func (h *Handler) handleJobList(ctx context.Context, frame *Frame) *Frame {
	var req JobListRequest
	if errFrame := decode(frame, &req); errFrame != nil {
		return errFrame
	}

	opts := job.ListOpts{
		State:  job.State(req.State),
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if req.PrinterID != "" {
		pid, err := id.ParsePrinterID(req.PrinterID)
		if err != nil {
			return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid printer ID: "+err.Error())
		}
		opts.PrinterID = pid
	}

	jobs, err := h.eng.List(ctx, opts)
	if err != nil {
		return errorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, jobs)
}

func (h *Handler) handleJobCancel(ctx context.Context, frame *Frame) *Frame {
	jobID, errFrame := h.parseJobID(frame)
	if errFrame != nil {
		return errFrame
	}
	ok, err := h.eng.Cancel(ctx, jobID)
	if err != nil {
		return errorFrame(frame.ID, err)
	}
	return h.actionResponse(ctx, frame, jobID, ok)
}

func (h *Handler) handleJobRetry(ctx context.Context, frame *Frame) *Frame {
	jobID, errFrame := h.parseJobID(frame)
	if errFrame != nil {
		return errFrame
	}
	ok, err := h.eng.Retry(ctx, jobID)
	if err != nil {
		return errorFrame(frame.ID, err)
	}
	return h.actionResponse(ctx, frame, jobID, ok)
}

func (h *Handler) actionResponse(ctx context.Context, frame *Frame, jobID id.JobID, ok bool) *Frame {
	j, err := h.eng.Get(ctx, jobID)
	if err != nil {
		return errorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, JobActionResponse{
		JobID: jobID.String(),
		OK:    ok,
		State: string(j.State),
	})
}

func (h *Handler) handlePrinterList(ctx context.Context, frame *Frame) *Frame {
	var req PrinterListRequest
	if errFrame := decode(frame, &req); errFrame != nil {
		return errFrame
	}
	printers, err := h.eng.Printers().List(ctx, printer.ListOpts{
		Type:       printer.Type(req.Type),
		ActiveOnly: req.ActiveOnly,
	})
	if err != nil {
		return errorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, printers)
}

func (h *Handler) handleQueueProcess(ctx context.Context, frame *Frame) *Frame {
	sum, err := h.eng.Processor().ProcessQueue(ctx)
	if err != nil {
		return errorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, sum)
}

func (h *Handler) handleSubscribe(frame *Frame) *Frame {
	var req SubscribeRequest
	if errFrame := decode(frame, &req); errFrame != nil {
		return errFrame
	}
	if err := stream.ValidateTopic(req.Channel); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, err.Error())
	}

	// The server loop performs the subscription once the response is sent.
	return mustResponseFrame(frame.ID, map[string]string{
		"channel": req.Channel,
		"status":  "subscribed",
	})
}

func (h *Handler) handleUnsubscribe(frame *Frame) *Frame {
	var req UnsubscribeRequest
	if errFrame := decode(frame, &req); errFrame != nil {
		return errFrame
	}
	return mustResponseFrame(frame.ID, map[string]string{
		"channel": req.Channel,
		"status":  "unsubscribed",
	})
}

func (h *Handler) handleStats(frame *Frame) *Frame {
	stats := map[string]any{
		"broker": h.broker.Stats(),
	}
	if h.conns != nil {
		stats["connections"] = h.conns.Count()
	}
	return mustResponseFrame(frame.ID, stats)
}
