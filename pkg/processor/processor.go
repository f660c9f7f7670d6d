package processor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xhad/sitedocs/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int // characters per chunk
	ChunkOverlap int // characters shared between neighboring chunks
}

// Processor splits document text into fixed-size overlapping chunks for
// embedding. Chunking is deterministic: the same text and configuration
// always yield the same chunk sequence, so re-processing a document
// reproduces its chunk IDs.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}

	return Processor{
		config: config,
	}
}

// Chunk splits text into ordered chunk stubs (no embeddings yet). Each chunk
// carries its positional metadata; chunk IDs are derived from the document
// name stem and the chunk index. Empty or whitespace-only text yields zero
// chunks.
func (p Processor) Chunk(documentName, text string) []models.DocumentChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	stem := strings.TrimSuffix(documentName, filepath.Ext(documentName))
	step := p.config.ChunkSize - p.config.ChunkOverlap

	var chunks []models.DocumentChunk
	runes := []rune(text)
	for start, index := 0, 0; start < len(runes); start, index = start+step, index+1 {
		end := start + p.config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunkText := string(runes[start:end])
		chunks = append(chunks, models.DocumentChunk{
			ChunkID:      fmt.Sprintf("%s_chunk_%d", stem, index),
			DocumentName: documentName,
			ChunkText:    chunkText,
			ChunkIndex:   index,
			Metadata: map[string]interface{}{
				"start_char": start,
				"end_char":   end,
				"chunk_size": len(chunkText),
			},
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}
