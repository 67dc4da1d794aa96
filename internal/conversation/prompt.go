package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// PromptLoader loads preamble templates from a directory of markdown files
type PromptLoader struct {
	promptsDir string
}

// NewPromptLoader creates a PromptLoader
func NewPromptLoader(promptsDir string) *PromptLoader {
	return &PromptLoader{
		promptsDir: promptsDir,
	}
}

// PromptTemplate is a preamble template with optional frontmatter
type PromptTemplate struct {
	Name         string
	Title        string
	Description  string
	Content      string
	SystemPrompt string
}

// Load reads <promptsDir>/<name>.md
func (l *PromptLoader) Load(name string) (*PromptTemplate, error) {
	path := filepath.Join(l.promptsDir, name+".md")

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt: %w", err)
	}

	return l.Parse(string(content)), nil
}

// Parse splits frontmatter from the template body
func (l *PromptLoader) Parse(content string) *PromptTemplate {
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return &PromptTemplate{
			Name:         "default",
			Content:      content,
			SystemPrompt: strings.TrimSpace(content),
		}
	}

	frontmatter := parts[1]
	systemPrompt := strings.TrimSpace(parts[2])

	template := &PromptTemplate{
		Content:      content,
		SystemPrompt: systemPrompt,
	}

	lines := strings.Split(frontmatter, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "name:") {
			template.Name = strings.TrimSpace(strings.TrimPrefix(line, "name:"))
			template.Name = strings.Trim(template.Name, `"`)
		} else if strings.HasPrefix(line, "title:") {
			template.Title = strings.TrimSpace(strings.TrimPrefix(line, "title:"))
			template.Title = strings.Trim(template.Title, `"`)
		} else if strings.HasPrefix(line, "description:") {
			template.Description = strings.TrimSpace(strings.TrimPrefix(line, "description:"))
			template.Description = strings.Trim(template.Description, `"`)
		}
	}

	if template.Name == "" {
		template.Name = "default"
	}

	return template
}

// List returns every template in the directory
func (l *PromptLoader) List() ([]*PromptTemplate, error) {
	entries, err := os.ReadDir(l.promptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts directory: %w", err)
	}

	var prompts []*PromptTemplate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".md")
		prompt, err := l.Load(name)
		if err != nil {
			continue
		}

		prompts = append(prompts, prompt)
	}

	return prompts, nil
}

// PreambleData fills a preamble template.
type PreambleData struct {
	// Environment is the active environment tag, e.g. "gnome".
	Environment string

	// Preferences is the environment-filtered preference document.
	Preferences string
}

// Render executes the template body with data.
func (t *PromptTemplate) Render(data PreambleData) (string, error) {
	tmpl, err := template.New(t.Name).Option("missingkey=error").Parse(t.SystemPrompt)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt %s: %w", t.Name, err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", t.Name, err)
	}
	return b.String(), nil
}
