package httpapi

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractText returns the complaint text of an uploaded attachment.
func extractText(filename string, content []byte) (string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return extractPDF(content)
	}
	return string(content), nil
}

func extractPDF(content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// skip pages that fail to extract
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}
