package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/litreview/core"
)

// minFullTextLength is the shortest full text worth indexing on its own.
// Shorter bodies are replaced by the title and abstract.
const minFullTextLength = 100

// Publication is one entry of a harvested publication list.
type Publication struct {
	Title         string      `json:"title"`
	Authors       authorList  `json:"authors"`
	Year          looseString `json:"year"`
	Journal       string      `json:"journal"`
	DOI           string      `json:"doi"`
	ArxivID       string      `json:"arxiv_id"`
	Abstract      string      `json:"abstract"`
	FullText      string      `json:"full_text"`
	PDFURL        string      `json:"pdf_url"`
	QualityRating looseString `json:"quality_rating"`
}

// authorList accepts either a single string or a list of names.
type authorList string

func (a *authorList) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		*a = authorList(strings.Join(names, ", "))
		return nil
	}
	var s looseString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = authorList(s)
	return nil
}

// looseString accepts strings, numbers and null.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = looseString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*l = looseString(n.String())
	return nil
}

// year parses the publication year. Unparseable or missing years are 0.
func (p Publication) year() int {
	s := string(p.Year)
	if i := strings.IndexAny(s, ".-"); i > 0 {
		s = s[:i]
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 0 {
		return 0
	}
	return y
}

// Document converts the publication into an ingestion document.
// idx is the position in its list, used for the base id when the
// publication carries neither a DOI nor an arXiv id.
func (p Publication) Document(idx int) Document {
	text := strings.TrimSpace(p.FullText)
	if len(text) < minFullTextLength {
		text = fmt.Sprintf("Title: %s\n\nAbstract: %s", strings.TrimSpace(p.Title), strings.TrimSpace(p.Abstract))
	}

	source := core.SourceOpenAlex
	if strings.TrimSpace(p.ArxivID) != "" {
		source = core.SourceArxiv
	}

	baseID := core.BaseIDFor(p.DOI, p.ArxivID, "paper_"+strconv.Itoa(idx))

	var extra map[string]string
	if p.PDFURL != "" || p.QualityRating != "" {
		extra = make(map[string]string, 2)
		if p.PDFURL != "" {
			extra["pdf_url"] = p.PDFURL
		}
		if p.QualityRating != "" {
			extra["quality_rating"] = string(p.QualityRating)
		}
	}

	return Document{
		BaseID: baseID,
		Text:   text,
		Metadata: core.ChunkMetadata{
			Title:   strings.TrimSpace(p.Title),
			Authors: string(p.Authors),
			Year:    p.year(),
			Source:  source,
			BaseID:  baseID,
			Journal: p.Journal,
			DOI:     strings.TrimSpace(p.DOI),
			ArxivID: strings.TrimSpace(p.ArxivID),
			Extra:   extra,
		},
	}
}

// LoadPublications decodes a publication list. The input is either a JSON
// array of publications or an object holding one under "publications".
func LoadPublications(r io.Reader) ([]Publication, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var pubs []Publication
		if err := json.Unmarshal(trimmed, &pubs); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPublications, err)
		}
		return pubs, nil
	}

	var wrapped struct {
		Publications []Publication `json:"publications"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublications, err)
	}
	return wrapped.Publications, nil
}

// LoadPublicationsFile reads a publication list from disk.
func LoadPublicationsFile(path string) ([]Publication, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pubs, err := LoadPublications(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pubs, nil
}

// Documents converts a publication list into ingestion documents.
func Documents(pubs []Publication) []Document {
	docs := make([]Document, len(pubs))
	for i, p := range pubs {
		docs[i] = p.Document(i)
	}
	return docs
}
