package parser

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

var errNoText = errors.New("no extractable text")

func parsePDF(filePath string) (doc models.Document, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupt pdf: %v", r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return models.Document{}, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return models.Document{}, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return models.Document{}, err
	}

	var (
		pages  []string
		failed int
	)
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			failed++
			log.Warn().Err(err).Str("path", filePath).Int("page", i).Msg("Skipping unreadable page")
			continue
		}
		pages = append(pages, pageText)
	}
	if numPages > 0 && failed == numPages {
		return models.Document{}, errNoText
	}

	return models.Document{
		Text:  strings.Join(pages, "\n"),
		Pages: numPages,
	}, nil
}
