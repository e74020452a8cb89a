package domain

// SentenceRecord is the unit of indexing: one sentence of the corpus with
// its embedding. Records are immutable after ingestion and owned by the
// search backend.
type SentenceRecord struct {
	Text          string    `json:"text"`
	Embedding     []float32 `json:"embedding"`
	DocLevel      int       `json:"level"`
	SentenceIndex int       `json:"sentence_index"`
	SourceFileID  string    `json:"source_file_id,omitempty"`
}

// SentenceHit is a raw search-backend match before retrieval tagging.
type SentenceHit struct {
	Text          string  `json:"text"`
	DocLevel      int     `json:"level"`
	Score         float64 `json:"score"`
	SentenceIndex int     `json:"sentence_index"`
}

// RetrievedSentence is a SentenceHit plus the metadata of the cascade
// stage that produced it. It lives only for the duration of one request;
// its Text is folded into the session's used-set afterwards.
type RetrievedSentence struct {
	Text            string   `json:"text"`
	DocLevel        int      `json:"level"`
	Score           float64  `json:"score"`
	SentenceIndex   int      `json:"sentence_index"`
	RetrievalLevel  int      `json:"retrieval_level"`
	IsPrimarySource bool     `json:"is_primary_source"`
	AuxWordUsed     string   `json:"aux_word_used,omitempty"`
	SynonymUsed     string   `json:"synonym_used,omitempty"`
	KeywordCombo    []string `json:"keyword_combo,omitempty"`
	SourceLabel     string   `json:"source_type_label"`
}

type Answer struct {
	Text    string              `json:"text"`
	Sources []RetrievedSentence `json:"sources"`
}
