package mail

import (
	"embed"
	"fmt"
	htmlTemplate "html/template"
	"io/fs"
	"os"
	textTemplate "text/template"
)

//go:embed templates/*.html templates/*.txt
var embeddedTemplates embed.FS

const codeTemplate = "otp_code"

type templateSet struct {
	html *htmlTemplate.Template
	text *textTemplate.Template
}

// loadTemplates parses the code templates from dir, or from the embedded
// defaults when dir is empty.
func loadTemplates(dir string) (*templateSet, error) {
	var source fs.FS
	if dir != "" {
		source = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, err
		}
		source = sub
	}

	html, err := htmlTemplate.ParseFS(source, codeTemplate+".html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML template: %w", err)
	}

	text, err := textTemplate.ParseFS(source, codeTemplate+".txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}

	return &templateSet{html: html, text: text}, nil
}
