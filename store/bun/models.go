package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// ── Printer model ─────────────────────────────────────────────────

type printerModel struct {
	bun.BaseModel `bun:"table:spool_printers,alias:p"`

	ID             string    `bun:"id,pk"`
	Name           string    `bun:"name,notnull"`
	SystemName     string    `bun:"system_name,notnull,default:''"`
	Description    string    `bun:"description,notnull,default:''"`
	Type           string    `bun:"type,notnull"`
	SupportsPDF    bool      `bun:"supports_pdf,notnull"`
	SupportsHTML   bool      `bun:"supports_html,notnull"`
	SupportsESCPOS bool      `bun:"supports_escpos,notnull"`
	SupportsZPL    bool      `bun:"supports_zpl,notnull"`
	Location       string    `bun:"location,notnull,default:''"`
	Department     string    `bun:"department,notnull,default:''"`
	IsDefault      bool      `bun:"is_default,notnull"`
	Priority       int       `bun:"priority,notnull,default:10"`
	Active         bool      `bun:"active,notnull"`
	PaperSize      string    `bun:"paper_size,notnull,default:''"`
	Orientation    string    `bun:"orientation,notnull,default:''"`
	Quality        string    `bun:"quality,notnull,default:''"`
	Address        string    `bun:"address,notnull,default:''"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

func toPrinterModel(p *printer.Printer) *printerModel {
	return &printerModel{
		ID:             p.ID.String(),
		Name:           p.Name,
		SystemName:     p.SystemName,
		Description:    p.Description,
		Type:           string(p.Type),
		SupportsPDF:    p.SupportsPDF,
		SupportsHTML:   p.SupportsHTML,
		SupportsESCPOS: p.SupportsESCPOS,
		SupportsZPL:    p.SupportsZPL,
		Location:       p.Location,
		Department:     p.Department,
		IsDefault:      p.IsDefault,
		Priority:       p.Priority,
		Active:         p.Active,
		PaperSize:      string(p.PaperSize),
		Orientation:    string(p.Orientation),
		Quality:        string(p.Quality),
		Address:        p.Address,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPrinterModel(m *printerModel) (*printer.Printer, error) {
	parsedID, err := id.ParsePrinterID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("spool/bun: parse printer id %q: %w", m.ID, err)
	}
	return &printer.Printer{
		Entity: spool.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             parsedID,
		Name:           m.Name,
		SystemName:     m.SystemName,
		Description:    m.Description,
		Type:           printer.Type(m.Type),
		SupportsPDF:    m.SupportsPDF,
		SupportsHTML:   m.SupportsHTML,
		SupportsESCPOS: m.SupportsESCPOS,
		SupportsZPL:    m.SupportsZPL,
		Location:       m.Location,
		Department:     m.Department,
		IsDefault:      m.IsDefault,
		Priority:       m.Priority,
		Active:         m.Active,
		PaperSize:      printer.PaperSize(m.PaperSize),
		Orientation:    printer.Orientation(m.Orientation),
		Quality:        printer.Quality(m.Quality),
		Address:        m.Address,
	}, nil
}

// ── Job model ─────────────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:spool_jobs,alias:j"`

	ID            string         `bun:"id,pk"`
	Name          string         `bun:"name,notnull"`
	DocumentType  string         `bun:"document_type,notnull,default:''"`
	PrinterID     string         `bun:"printer_id,notnull"`
	User          string         `bun:"user_name,notnull,default:''"`
	Data          []byte         `bun:"data"`
	TemplateRef   string         `bun:"template_ref,notnull,default:''"`
	TemplateData  map[string]any `bun:"template_data"`
	Format        string         `bun:"format,notnull"`
	Copies        int            `bun:"copies,notnull,default:1"`
	Priority      int            `bun:"priority,notnull,default:5"`
	State         string         `bun:"state,notnull"`
	Error         string         `bun:"error_message,notnull,default:''"`
	RetryCount    int            `bun:"retry_count,notnull,default:0"`
	Offline       bool           `bun:"offline,notnull"`
	ParentModel   string         `bun:"parent_model,notnull,default:''"`
	ParentID      string         `bun:"parent_id,notnull,default:''"`
	SubmittedAt   *time.Time     `bun:"submitted_at"`
	CompletedAt   *time.Time     `bun:"completed_at"`
	NextAttemptAt *time.Time     `bun:"next_attempt_at"`
	CreatedAt     time.Time      `bun:"created_at,notnull"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:            j.ID.String(),
		Name:          j.Name,
		DocumentType:  j.DocumentType,
		PrinterID:     j.PrinterID.String(),
		User:          j.User,
		Data:          j.Data,
		TemplateRef:   j.TemplateRef,
		TemplateData:  j.TemplateData,
		Format:        string(j.Format),
		Copies:        j.Copies,
		Priority:      j.Priority,
		State:         string(j.State),
		Error:         j.Error,
		RetryCount:    j.RetryCount,
		Offline:       j.Offline,
		ParentModel:   j.ParentModel,
		ParentID:      j.ParentID,
		SubmittedAt:   j.SubmittedAt,
		CompletedAt:   j.CompletedAt,
		NextAttemptAt: j.NextAttemptAt,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("spool/bun: parse job id %q: %w", m.ID, err)
	}
	printerID, err := id.ParsePrinterID(m.PrinterID)
	if err != nil {
		return nil, fmt.Errorf("spool/bun: parse printer id %q: %w", m.PrinterID, err)
	}

	return &job.Job{
		Entity: spool.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            parsedID,
		Name:          m.Name,
		DocumentType:  m.DocumentType,
		PrinterID:     printerID,
		User:          m.User,
		Data:          m.Data,
		TemplateRef:   m.TemplateRef,
		TemplateData:  m.TemplateData,
		Format:        job.Format(m.Format),
		Copies:        m.Copies,
		Priority:      m.Priority,
		State:         job.State(m.State),
		Error:         m.Error,
		RetryCount:    m.RetryCount,
		Offline:       m.Offline,
		ParentModel:   m.ParentModel,
		ParentID:      m.ParentID,
		SubmittedAt:   m.SubmittedAt,
		CompletedAt:   m.CompletedAt,
		NextAttemptAt: m.NextAttemptAt,
	}, nil
}

// ── Bookkeeping models ────────────────────────────────────────────

type migrationModel struct {
	bun.BaseModel `bun:"table:spool_migrations"`

	Name      string    `bun:"name,pk"`
	AppliedAt time.Time `bun:"applied_at,notnull"`
}

type sequenceModel struct {
	bun.BaseModel `bun:"table:spool_sequences"`

	Name  string `bun:"name,pk"`
	Value int64  `bun:"value,notnull"`
}
