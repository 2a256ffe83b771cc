package parser

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"document-qa/internal/models"
)

// Extractor turns one file into its raw text
type Extractor func(path string) (models.Document, error)

// Loader walks a directory tree and extracts every supported file.
type Loader struct {
	workers    int
	extractors map[models.DocType]Extractor
}

const defaultWorkers = 4

// NewLoader creates a loader extracting up to workers files concurrently.
func NewLoader(workers int) *Loader {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Loader{
		workers: workers,
		extractors: map[models.DocType]Extractor{
			models.PDF:      parsePDF,
			models.Markdown: parseMarkdown,
			models.Text:     parseText,
		},
	}
}

// WithExtractor replaces the extractor used for a document type
func (l *Loader) WithExtractor(t models.DocType, fn Extractor) *Loader {
	l.extractors[t] = fn
	return l
}

// Scan returns the absolute, sorted paths of all supported files under root.
// Unsupported extensions are skipped silently. Unreadable subdirectories are
// returned as UnreadableFileErrors next to the paths.
func (l *Loader) Scan(root string) ([]string, []error, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("open directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", abs)
	}

	var (
		paths    []string
		problems []error
	)
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			problems = append(problems, &models.UnreadableFileError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if _, ok := models.DocTypeFromExt(filepath.Ext(path)); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", abs, err)
	}
	sort.Strings(paths)
	return paths, problems, nil
}

// LoadFile extracts a single supported file.
func (l *Loader) LoadFile(path string) (models.Document, error) {
	docType, ok := models.DocTypeFromExt(filepath.Ext(path))
	if !ok {
		return models.Document{}, fmt.Errorf("unsupported file format: %s", filepath.Ext(path))
	}
	doc, err := l.extractors[docType](path)
	if err != nil {
		return models.Document{}, &models.UnreadableFileError{Path: path, Err: err}
	}
	doc.Path = path
	doc.Type = docType
	return doc, nil
}

type loadResult struct {
	doc models.Document
	err error
}

// Documents lazily yields the documents found under root. Per-file failures
// are yielded as *models.UnreadableFileError and the scan continues; a
// failure to walk root itself is yielded once and ends the sequence.
// Files are extracted by a bounded pool of workers, so the order in which
// documents arrive is not the order of Scan. Cancelling ctx stops the
// workers before they pick up another file.
func (l *Loader) Documents(ctx context.Context, root string) iter.Seq2[models.Document, error] {
	return func(yield func(models.Document, error) bool) {
		paths, problems, err := l.Scan(root)
		if err != nil {
			yield(models.Document{}, err)
			return
		}
		log.Debug().Str("root", root).Int("files", len(paths)).Msg("Scanned directory")
		for _, p := range problems {
			if !yield(models.Document{}, p) {
				return
			}
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		results := make(chan loadResult)
		go func() {
			defer close(results)
			var g errgroup.Group
			g.SetLimit(l.workers)
			for _, path := range paths {
				if ctx.Err() != nil {
					break
				}
				g.Go(func() error {
					if ctx.Err() != nil {
						return nil
					}
					doc, err := l.LoadFile(path)
					select {
					case results <- loadResult{doc: doc, err: err}:
					case <-ctx.Done():
					}
					return nil
				})
			}
			_ = g.Wait()
		}()

		for res := range results {
			if res.err != nil {
				log.Warn().Err(res.err).Msg("Skipping file")
			}
			if !yield(res.doc, res.err) {
				cancel()
				for range results {
				}
				return
			}
		}
	}
}

func parseText(filePath string) (models.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{Text: string(data), Pages: 1}, nil
}
