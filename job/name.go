package job

import "fmt"

// Name builds a job name from the document type, the printer name and a
// store-issued sequence number, e.g. "receipt-front-desk-00042". The job's
// own ID never takes part, so the name is known before the job is persisted.
func Name(documentType, printerName string, seq int64) string {
	if documentType == "" {
		documentType = DocTypeOther
	}
	if printerName == "" {
		printerName = "Unknown"
	}
	return fmt.Sprintf("%s-%s-%05d", documentType, printerName, seq)
}
