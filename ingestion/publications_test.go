package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/litreview/core"
)

const samplePublications = `[
  {
    "title": "Edge AI Survey",
    "authors": ["A. Author", "B. Author"],
    "year": 2023,
    "journal": "Computing Surveys",
    "doi": "10.1145/3555802",
    "abstract": "A survey of edge inference.",
    "pdf_url": "https://example.org/edge.pdf",
    "quality_rating": 4
  },
  {
    "title": "Sparse Retrieval Revisited",
    "authors": "C. Author",
    "year": "2021",
    "arxiv_id": "2101.00001",
    "abstract": "BM25 still works.",
    "full_text": null
  },
  {
    "title": "Untitled Preprint",
    "year": null
  }
]`

func TestLoadPublications(t *testing.T) {
	pubs, err := LoadPublications(strings.NewReader(samplePublications))
	require.NoError(t, err)
	require.Len(t, pubs, 3)

	assert.Equal(t, "A. Author, B. Author", string(pubs[0].Authors))
	assert.Equal(t, 2023, pubs[0].year())
	assert.Equal(t, "4", string(pubs[0].QualityRating))
	assert.Equal(t, "C. Author", string(pubs[1].Authors))
	assert.Equal(t, 2021, pubs[1].year())
	assert.Equal(t, 0, pubs[2].year())

	t.Run("wrapped object", func(t *testing.T) {
		pubs, err := LoadPublications(strings.NewReader(`{"publications": [{"title": "X"}]}`))
		require.NoError(t, err)
		require.Len(t, pubs, 1)
		assert.Equal(t, "X", pubs[0].Title)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := LoadPublications(strings.NewReader(`[{"title": {}}]`))
		assert.ErrorIs(t, err, ErrInvalidPublications)

		_, err = LoadPublications(strings.NewReader(`not json`))
		assert.ErrorIs(t, err, ErrInvalidPublications)
	})
}

func TestPublicationDocument(t *testing.T) {
	pubs, err := LoadPublications(strings.NewReader(samplePublications))
	require.NoError(t, err)
	docs := Documents(pubs)

	t.Run("doi base id and openalex source", func(t *testing.T) {
		doc := docs[0]
		assert.Equal(t, "10_1145_3555802", doc.BaseID)
		assert.Equal(t, core.SourceOpenAlex, doc.Metadata.Source)
		assert.Equal(t, "Title: Edge AI Survey\n\nAbstract: A survey of edge inference.", doc.Text)
		assert.Equal(t, "https://example.org/edge.pdf", doc.Metadata.Extra["pdf_url"])
		assert.Equal(t, "4", doc.Metadata.Extra["quality_rating"])
	})

	t.Run("arxiv base id and source", func(t *testing.T) {
		doc := docs[1]
		assert.Equal(t, "2101_00001", doc.BaseID)
		assert.Equal(t, core.SourceArxiv, doc.Metadata.Source)
		assert.Equal(t, 2021, doc.Metadata.Year)
		assert.Nil(t, doc.Metadata.Extra)
	})

	t.Run("positional fallback id", func(t *testing.T) {
		assert.Equal(t, "paper_2", docs[2].BaseID)
	})

	t.Run("full text used when long enough", func(t *testing.T) {
		body := strings.Repeat("full text body ", 10)
		doc := Publication{Title: "T", Abstract: "A", FullText: body}.Document(0)
		assert.Equal(t, strings.TrimSpace(body), doc.Text)

		short := Publication{Title: "T", Abstract: "A", FullText: "too short"}.Document(0)
		assert.Equal(t, "Title: T\n\nAbstract: A", short.Text)
	})
}

func TestLoadPublicationsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.json")
	require.NoError(t, os.WriteFile(path, []byte(samplePublications), 0o644))

	pubs, err := LoadPublicationsFile(path)
	require.NoError(t, err)
	assert.Len(t, pubs, 3)

	_, err = LoadPublicationsFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
