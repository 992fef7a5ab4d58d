package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStatusInfo() StatusInfo {
	return StatusInfo{
		DataDir:       ".qanoon",
		TotalChunks:   120,
		TotalDocs:     4,
		BuiltAt:       time.Now().Add(-2 * time.Hour),
		MetadataSize:  2048,
		BM25Size:      4096,
		VectorSize:    1 << 20,
		TotalSize:     2048 + 4096 + 1<<20,
		EmbedderModel: "nomic-embed-text",
		Dimensions:    768,
	}
}

func TestStatusRendererRender(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)

	require.NoError(t, r.Render(testStatusInfo()))

	out := buf.String()
	assert.Contains(t, out, "Index status: .qanoon")
	assert.Contains(t, out, "Chunks:    120")
	assert.Contains(t, out, "Documents: 4")
	assert.Contains(t, out, "nomic-embed-text")
	assert.Contains(t, out, "2 hours ago")
}

func TestStatusRendererRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)

	require.NoError(t, r.RenderJSON(testStatusInfo()))

	var decoded StatusInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 120, decoded.TotalChunks)
	assert.Equal(t, 768, decoded.Dimensions)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 MB", FormatBytes(3*1024*1024/2))
	assert.Equal(t, "2.0 GB", FormatBytes(2*1024*1024*1024))
}
