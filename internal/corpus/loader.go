// Package corpus reads the documents and unsafe-intent phrases that feed the
// offline index build.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"saferag/internal/domain"
)

// LoadDocuments expands glob patterns and reads every supported file:
// .json (array of {title, content}), .txt/.md (title is the file name) and
// .pdf (plain text extracted, title is the file name).
func LoadDocuments(patterns []string) ([]domain.Document, error) {
	var documents []domain.Document
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		sort.Strings(matches)
		for _, m := range matches {
			docs, err := loadFile(m)
			if err != nil {
				return nil, err
			}
			documents = append(documents, docs...)
		}
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no documents found")
	}
	return documents, nil
}

func loadFile(path string) ([]domain.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadArticles(path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []domain.Document{{Title: titleFromPath(path), Content: string(data)}}, nil
	case ".pdf":
		text, err := readPDF(path)
		if err != nil {
			return nil, fmt.Errorf("read pdf %s: %w", path, err)
		}
		return []domain.Document{{Title: titleFromPath(path), Content: text}}, nil
	default:
		return nil, nil
	}
}

func loadArticles(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []domain.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode articles %s: %w", path, err)
	}
	return docs, nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadPhrases reads a JSON array of unsafe-intent phrases. A missing file
// yields no phrases and no error.
func LoadPhrases(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var phrases []string
	if err := json.Unmarshal(data, &phrases); err != nil {
		return nil, fmt.Errorf("decode phrases %s: %w", path, err)
	}
	return phrases, nil
}
