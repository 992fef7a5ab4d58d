// Package indexer builds the retrieval artifacts from a chunk corpus:
// the metadata store, the lexical index, and the vector store, all
// written into one data directory as a consistent generation.
package indexer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/qanoon-search/qanoon/internal/qerrors"
)

// corpusMaxLineBytes bounds a single corpus line; legal article chunks
// run long but not this long.
const corpusMaxLineBytes = 4 * 1024 * 1024

// RawChunk is one corpus record as it appears on disk, before
// normalization and role tagging.
type RawChunk struct {
	// ID is the stable chunk identifier, e.g. "labor_law::art12".
	ID string `json:"id"`
	// DocID names the source document, e.g. "labor_law.pdf".
	DocID string `json:"doc_id"`
	// ArticleNo is the article or section reference.
	ArticleNo string `json:"article_no"`
	// Pages are the source page numbers.
	Pages []int `json:"pages"`
	// Text is the chunk text.
	Text string `json:"text"`
}

// ReadCorpus reads a JSONL corpus file: one chunk object per line,
// blank lines skipped. IDs must be unique and chunks must carry an ID,
// a document name, and text.
func ReadCorpus(path string) ([]*RawChunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, qerrors.New(qerrors.ErrCodeConfigNotFound, "cannot open corpus: "+path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), corpusMaxLineBytes)

	var chunks []*RawChunk
	seen := make(map[string]struct{})
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk RawChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, qerrors.ValidationError(
				fmt.Sprintf("corpus line %d is not valid JSON", lineNo), err)
		}
		if chunk.ID == "" {
			return nil, qerrors.ValidationError(
				fmt.Sprintf("corpus line %d has no chunk id", lineNo), nil)
		}
		if chunk.DocID == "" {
			return nil, qerrors.ValidationError(
				fmt.Sprintf("corpus line %d (%s) has no document id", lineNo, chunk.ID), nil)
		}
		if strings.TrimSpace(chunk.Text) == "" {
			return nil, qerrors.ValidationError(
				fmt.Sprintf("corpus line %d (%s) has no text", lineNo, chunk.ID), nil)
		}
		if _, dup := seen[chunk.ID]; dup {
			return nil, qerrors.ValidationError(
				fmt.Sprintf("corpus line %d repeats chunk id %s", lineNo, chunk.ID), nil)
		}
		seen[chunk.ID] = struct{}{}
		chunks = append(chunks, &chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, qerrors.ValidationError("corpus read failed", err)
	}
	if len(chunks) == 0 {
		return nil, qerrors.ValidationError("corpus is empty: "+path, nil)
	}

	return chunks, nil
}
