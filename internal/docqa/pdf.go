package docqa

import (
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/imkarma/crew/internal/errors"
)

// loadPDF returns one Document per page that carries text. Sources are
// source#N with N counted from 1.
func loadPDF(path, source string) (docs []Document, err error) {
	defer func() {
		// The reader panics on some malformed streams.
		if r := recover(); r != nil {
			docs, err = nil, errors.Wrapf(errors.ErrParse, "pdf %s: %v", source, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrParse, "pdf %s: %v", source, err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range p.Fonts() {
			font := p.Font(name)
			fonts[name] = &font
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrParse, "pdf %s page %d: %v", source, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{Source: source + "#" + strconv.Itoa(i), Text: text})
	}
	return docs, nil
}
