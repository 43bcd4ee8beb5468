package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// AnalysisPromptData feeds the analysis template.
type AnalysisPromptData struct {
	Title       string
	Channel     string
	Description string
	Transcript  string
}

// ReportPromptData feeds the report template.
type ReportPromptData struct {
	FormatType   string
	Title        string
	Category     string
	Summary      string
	Topics       string
	Segments     string
	Instructions string
}

// PromptManager handles loading and processing one prompt template, either
// the analysis or the report prompt
type PromptManager struct {
	promptFile   string
	promptString string
	defaultFile  string
}

// NewPromptManager creates a prompt manager. promptSetting may be an inline
// template or a path; when empty the template is read from defaultFile in
// configDir.
func NewPromptManager(configDir, defaultFile, promptSetting string) *PromptManager {
	pm := &PromptManager{
		defaultFile: filepath.Join(configDir, defaultFile),
	}

	// Configure prompt based on config setting
	if promptSetting != "" {
		if IsLikelyFilePath(promptSetting) && FileExists(promptSetting) {
			pm.promptFile = promptSetting
		} else {
			pm.promptString = promptSetting
		}
	}

	return pm
}

// NewInlinePromptManager uses tmpl as the template.
func NewInlinePromptManager(tmpl string) *PromptManager {
	return &PromptManager{promptString: tmpl}
}

// CreatePrompt renders the template with data.
func (pm *PromptManager) CreatePrompt(data any) (string, error) {
	tmplContent, err := pm.template()
	if err != nil {
		return "", err
	}

	// Parse the template
	tmpl, err := template.New("prompt").Parse(tmplContent)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}

	// Execute the template
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}

	return buf.String(), nil
}

func (pm *PromptManager) template() (string, error) {
	// Use custom prompt string
	if pm.promptString != "" {
		return pm.promptString, nil
	}

	// Use prompt file (custom or default from config directory)
	promptFile := pm.promptFile
	if promptFile == "" {
		promptFile = pm.defaultFile
	}

	content, err := os.ReadFile(promptFile)
	if err != nil {
		// fall back to the built-in template
		embedded, embedErr := defaultFS.ReadFile(filepath.Base(pm.defaultFile))
		if pm.promptFile != "" || embedErr != nil {
			return "", fmt.Errorf("reading prompt template: %w", err)
		}
		return string(embedded), nil
	}
	return string(content), nil
}

// IsLikelyFilePath uses heuristics to determine if a string is likely a file path
func IsLikelyFilePath(s string) bool {
	// Check for path separators
	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	// Check for common template extensions
	if strings.Contains(s, ".txt") || strings.Contains(s, ".md") ||
		strings.Contains(s, ".template") || strings.Contains(s, ".tmpl") {
		return true
	}

	// If it's longer than 200 characters, it's likely a prompt string
	if len(s) > 200 {
		return false
	}

	// Default to treating as file path if it doesn't contain spaces and newlines
	return !strings.Contains(s, " ") && !strings.Contains(s, "\n")
}
