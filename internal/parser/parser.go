// Package parser turns Markdown task drafts into task fields.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/tasktracker/internal/models"
)

// ErrInvalidDraft marks drafts that cannot be turned into a task.
var ErrInvalidDraft = errors.New("invalid draft")

// Draft holds the task fields extracted from a Markdown file. Range checks
// on Priority are left to the store.
type Draft struct {
	Title       string
	Description string
	Priority    int
	// Status is nil when the draft does not ask for one.
	Status *models.Status
}

type frontmatter struct {
	Title    string `yaml:"title"`
	Priority *int   `yaml:"priority"`
	Status   string `yaml:"status"`
}

// Parse extracts a Draft from raw Markdown bytes. The title comes from the
// frontmatter "title" key, falling back to the first H1 heading, which is then
// dropped from the description.
func Parse(data []byte) (Draft, error) {
	block, body, ok := splitFrontmatter(data)
	if !ok {
		return Draft{}, fmt.Errorf("%w: missing frontmatter", ErrInvalidDraft)
	}

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return Draft{}, fmt.Errorf("%w: frontmatter: %v", ErrInvalidDraft, err)
	}
	if fm.Priority == nil {
		return Draft{}, fmt.Errorf("%w: priority is required", ErrInvalidDraft)
	}

	d := Draft{Title: fm.Title, Priority: *fm.Priority}
	if strings.TrimSpace(d.Title) == "" {
		d.Title, body = takeHeading(body)
	}
	d.Description = strings.TrimSpace(body)

	if fm.Status != "" {
		st, err := models.ParseStatus(fm.Status)
		if err != nil {
			return Draft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
		}
		d.Status = &st
	}
	return d, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body.
func splitFrontmatter(data []byte) ([]byte, string, bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", false
	}

	block := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")
	return block, body, true
}

// takeHeading returns the text of the first H1 heading and the body without
// that line. It returns an empty title when there is none.
func takeHeading(body string) (string, string) {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			rest := append(lines[:i:i], lines[i+1:]...)
			return strings.TrimSpace(trimmed[2:]), strings.Join(rest, "\n")
		}
	}
	return "", body
}
