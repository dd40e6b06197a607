package program

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kruetob/moodle-tool-certificate/internal/models"
)

// Display modes supported by the program element. The program* aliases are
// accepted for configurations written by older releases.
const (
	DisplayCertificationName = "certificationname"
	DisplayProgramName       = "programname"
	DisplayCompletionDate    = "completiondate"
	DisplayCompletedCourses  = "completedcourses"

	displayProgramCompletionDate   = "programcompletiondate"
	displayProgramCompletedCourses = "programcompletedcourses"
)

var displayAliases = map[string]string{
	displayProgramCompletionDate:   DisplayCompletionDate,
	displayProgramCompletedCourses: DisplayCompletedCourses,
}

// Placeholder strings shown when previewing a template without an issue.
var placeholders = map[string]string{
	DisplayCertificationName: "Certification name",
	DisplayProgramName:       "Program name",
	DisplayCompletionDate:    "Completion date",
	DisplayCompletedCourses:  "Completed courses",
}

var lineBreakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)

// ErrUnknownDisplayMode reports an unrecognised display selector.
var ErrUnknownDisplayMode = errors.New("program element: unknown display mode")

// Config is the persisted element configuration.
type Config struct {
	Display string `json:"display"`
}

// Element formats program completion data for one display mode.
type Element struct {
	display string
}

// New builds an element for the given display mode, resolving legacy aliases.
func New(display string) (*Element, error) {
	display = strings.ToLower(strings.TrimSpace(display))
	if canonical, ok := displayAliases[display]; ok {
		display = canonical
	}
	if _, ok := placeholders[display]; !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDisplayMode, display)
	}
	return &Element{display: display}, nil
}

// NewFromJSON builds an element from a stored JSON configuration.
func NewFromJSON(raw []byte) (*Element, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("program element: decode config: %w", err)
	}
	return New(cfg.Display)
}

// Display returns the canonical display mode.
func (e *Element) Display() string {
	return e.display
}

// Config serialises the element configuration for storage. The decoded form
// always equals a Config holding the canonical display mode.
func (e *Element) Config() ([]byte, error) {
	return json.Marshal(Config{Display: e.display})
}

// FormatPreviewData returns the placeholder shown on template previews.
func (e *Element) FormatPreviewData() string {
	if e.display == DisplayCompletionDate {
		return time.Now().Format("2 January 2006")
	}
	return placeholders[e.display]
}

// FormatIssueData returns the display-mode field from the issue's custom
// data. HTML line breaks are normalised to their self-closing form.
func (e *Element) FormatIssueData(issue *models.Issue) (string, error) {
	if issue == nil || len(issue.Data) == 0 {
		return "", nil
	}

	var fields map[string]string
	if err := json.Unmarshal(issue.Data, &fields); err != nil {
		return "", fmt.Errorf("program element: decode issue data: %w", err)
	}

	return NormalizeLineBreaks(fields[e.display]), nil
}

// NormalizeLineBreaks rewrites every <br> variant as <br />.
func NormalizeLineBreaks(s string) string {
	return lineBreakPattern.ReplaceAllString(s, "<br />")
}
