package models

// DocumentState tracks how far a document made it through the pipeline.
type DocumentState string

const (
	StatePending             DocumentState = "PENDING"
	StateParsed              DocumentState = "PARSED"
	StateExtracted           DocumentState = "EXTRACTED"
	StatePersistedRelational DocumentState = "PERSISTED_RELATIONAL"
	StateChunked             DocumentState = "CHUNKED"
	StatePersistedVector     DocumentState = "PERSISTED_VECTOR"
	StateDone                DocumentState = "DONE"
	StateFailed              DocumentState = "FAILED"
)

// ProcessingResult is the per-document outcome. It is returned to the
// caller, never persisted. Success means the document made it through the
// pipeline; extraction and persistence problems are recorded in Errors
// without flipping Success, only a parse failure (or a not-started document
// after cancellation) is fatal.
type ProcessingResult struct {
	Success         bool          `json:"success"`
	PDFPath         string        `json:"pdf_path"`
	DocumentType    string        `json:"document_type"`
	State           DocumentState `json:"state"`
	PostgresRecords int           `json:"postgres_records"`
	VectorChunks    int           `json:"vector_chunks"`
	Errors          []string      `json:"errors,omitempty"`
}

// BatchResult aggregates the per-document outcomes of one batch run.
type BatchResult struct {
	Results    []ProcessingResult `json:"results"`
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
}
