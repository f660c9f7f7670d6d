package models

// DocumentChunk is a bounded span of a document's text, the unit embedded
// for semantic search. ChunkID is "<document stem>_chunk_<index>" and is
// unique within a collection; re-processing a document supersedes its
// previous chunks rather than merging with them.
type DocumentChunk struct {
	ChunkID      string                 `json:"chunk_id"`
	DocumentName string                 `json:"document_name"`
	ChunkText    string                 `json:"chunk_text"`
	ChunkIndex   int                    `json:"chunk_index"`
	Embedding    []float32              `json:"-"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// SearchResult is one semantic search hit: a stored chunk plus its cosine
// distance to the query (smaller is closer).
type SearchResult struct {
	Chunk    DocumentChunk `json:"chunk"`
	Distance float64       `json:"distance"`
}

// CollectionStats describes a vector collection, for observability only.
type CollectionStats struct {
	CollectionName string `json:"collection_name"`
	TotalChunks    int    `json:"total_chunks"`
	Location       string `json:"location"`
}

// ParsedDocument is the output of the PDF parsing collaborator: the full
// concatenated text plus the individual structural elements.
type ParsedDocument struct {
	FullText string    `json:"full_text"`
	Elements []Element `json:"elements"`
}

// Element is one structural piece of a parsed document (paragraph, table,
// title) as reported by the parser.
type Element struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Page int    `json:"page,omitempty"`
}
