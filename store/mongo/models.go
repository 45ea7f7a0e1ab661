package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// ── Printer model ─────────────────────────────────────────────────

type printerModel struct {
	ID             string    `bson:"_id"`
	Name           string    `bson:"name"`
	SystemName     string    `bson:"system_name"`
	Description    string    `bson:"description"`
	Type           string    `bson:"type"`
	SupportsPDF    bool      `bson:"supports_pdf"`
	SupportsHTML   bool      `bson:"supports_html"`
	SupportsESCPOS bool      `bson:"supports_escpos"`
	SupportsZPL    bool      `bson:"supports_zpl"`
	Location       string    `bson:"location"`
	Department     string    `bson:"department"`
	IsDefault      bool      `bson:"is_default"`
	Priority       int       `bson:"priority"`
	Active         bool      `bson:"active"`
	PaperSize      string    `bson:"paper_size"`
	Orientation    string    `bson:"orientation"`
	Quality        string    `bson:"quality"`
	Address        string    `bson:"address"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
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
		return nil, fmt.Errorf("spool/mongo: parse printer id %q: %w", m.ID, err)
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
	ID            string         `bson:"_id"`
	Name          string         `bson:"name"`
	DocumentType  string         `bson:"document_type"`
	PrinterID     string         `bson:"printer_id"`
	User          string         `bson:"user"`
	Data          []byte         `bson:"data,omitempty"`
	TemplateRef   string         `bson:"template_ref"`
	TemplateData  map[string]any `bson:"template_data,omitempty"`
	Format        string         `bson:"format"`
	Copies        int            `bson:"copies"`
	Priority      int            `bson:"priority"`
	State         string         `bson:"state"`
	Error         string         `bson:"error_message"`
	RetryCount    int            `bson:"retry_count"`
	Offline       bool           `bson:"offline"`
	ParentModel   string         `bson:"parent_model"`
	ParentID      string         `bson:"parent_id"`
	SubmittedAt   *time.Time     `bson:"submitted_at,omitempty"`
	CompletedAt   *time.Time     `bson:"completed_at,omitempty"`
	NextAttemptAt *time.Time     `bson:"next_attempt_at,omitempty"`
	CreatedAt     time.Time      `bson:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at"`
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
		return nil, fmt.Errorf("spool/mongo: parse job id %q: %w", m.ID, err)
	}
	printerID, err := id.ParsePrinterID(m.PrinterID)
	if err != nil {
		return nil, fmt.Errorf("spool/mongo: parse printer id %q: %w", m.PrinterID, err)
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

