package domain

import "time"

type UploadStatus string

const (
	UploadStatusUploaded   UploadStatus = "uploaded"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusReady      UploadStatus = "ready"
	UploadStatusFailed     UploadStatus = "failed"
)

// Upload is the metadata record of one source file pushed into the corpus.
type Upload struct {
	ID            string       `json:"file_id"`
	Filename      string       `json:"filename"`
	MimeType      string       `json:"mime_type"`
	StoragePath   string       `json:"storage_path"`
	Status        UploadStatus `json:"status"`
	SentenceCount int          `json:"total_sentences"`
	MaxDocLevel   int          `json:"max_level"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// FileUploadedEvent is the queue message telling the indexing worker a
// stored file is waiting. UploadedAt lets the worker measure queue lag
// without a repository round trip.
type FileUploadedEvent struct {
	UploadID   string    `json:"upload_id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// CorpusStats summarizes the indexed corpus.
type CorpusStats struct {
	TotalDocuments  int  `json:"total_documents"`
	MaxDocLevel     int  `json:"max_level"`
	LevelsAvailable int  `json:"levels_available"`
	Ready           bool `json:"ready"`
}
