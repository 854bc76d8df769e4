package pipeline

import (
	"fmt"
	"strings"
	"text/template"
)

// PromptData is what prompt templates can refer to.
type PromptData struct {
	Date   string
	Prompt string
}

// PromptTemplate renders the working prompt for a date.
type PromptTemplate struct {
	tmpl *template.Template
}

// ParsePrompt compiles a text/template. Unknown fields are an error.
func ParsePrompt(name, text string) (*PromptTemplate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("prompt template %s is empty", name)
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template %s: %w", name, err)
	}
	return &PromptTemplate{tmpl: t}, nil
}

func (p *PromptTemplate) Format(data PromptData) (string, error) {
	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", p.tmpl.Name(), err)
	}
	return sb.String(), nil
}
