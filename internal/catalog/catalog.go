// Package catalog holds the ordered, immutable question list that a
// participant walks through. The catalog is injected at startup so the
// persistence layer never depends on question text.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vytor/assessment/internal/models"
)

type QuestionType string

const (
	TypeText     QuestionType = "TEXT"
	TypeTextArea QuestionType = "TEXTAREA"
	TypeSingle   QuestionType = "SINGLE"
	TypeMultiple QuestionType = "MULTIPLE"
	TypeScale    QuestionType = "SCALE"
)

// Localized is a prompt in each supported language.
type Localized struct {
	EN string `yaml:"en" json:"en"`
	FR string `yaml:"fr" json:"fr"`
	AR string `yaml:"ar" json:"ar"`
}

// In returns the text for lang, falling back to English when missing.
func (l Localized) In(lang models.Language) string {
	switch lang {
	case models.LanguageFrench:
		if l.FR != "" {
			return l.FR
		}
	case models.LanguageArabic:
		if l.AR != "" {
			return l.AR
		}
	}
	return l.EN
}

type Option struct {
	ID   string    `yaml:"id" json:"id"`
	Text Localized `yaml:"text" json:"text"`
}

type Scale struct {
	Min      int       `yaml:"min" json:"min"`
	Max      int       `yaml:"max" json:"max"`
	MinLabel Localized `yaml:"min_label" json:"min_label"`
	MaxLabel Localized `yaml:"max_label" json:"max_label"`
}

type Question struct {
	ID       int          `yaml:"id" json:"id"`
	Section  string       `yaml:"section" json:"section"`
	Type     QuestionType `yaml:"type" json:"type"`
	Text     Localized    `yaml:"text" json:"text"`
	Options  []Option     `yaml:"options,omitempty" json:"options,omitempty"`
	Scale    *Scale       `yaml:"scale,omitempty" json:"scale,omitempty"`
	IsPuzzle bool         `yaml:"puzzle,omitempty" json:"is_puzzle"`
}

// Prompt returns the question text in lang.
func (q Question) Prompt(lang models.Language) string {
	return q.Text.In(lang)
}

// HasOption reports whether id names one of the question's options.
func (q Question) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

type Catalog struct {
	questions []Question
	byID      map[int]int
	sections  []string
}

type file struct {
	Questions []Question `yaml:"questions"`
}

//go:embed default.yaml
var defaultCatalog []byte

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(f.Questions)
}

// New validates questions and builds a Catalog preserving their order.
func New(questions []Question) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("catalog has no questions")
	}
	c := &Catalog{
		questions: make([]Question, len(questions)),
		byID:      make(map[int]int, len(questions)),
	}
	copy(c.questions, questions)

	seenSection := map[string]bool{}
	for i, q := range c.questions {
		if err := validateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		c.byID[q.ID] = i
		if !seenSection[q.Section] {
			seenSection[q.Section] = true
			c.sections = append(c.sections, q.Section)
		}
	}
	return c, nil
}

func validateQuestion(q Question) error {
	if q.ID <= 0 {
		return fmt.Errorf("id must be positive")
	}
	if q.Section == "" {
		return fmt.Errorf("section is required")
	}
	if q.Text.EN == "" {
		return fmt.Errorf("english text is required")
	}
	switch q.Type {
	case TypeText, TypeTextArea:
	case TypeSingle, TypeMultiple:
		if len(q.Options) == 0 {
			return fmt.Errorf("%s requires options", q.Type)
		}
		seen := map[string]bool{}
		for _, o := range q.Options {
			if o.ID == "" {
				return fmt.Errorf("option id is required")
			}
			if seen[o.ID] {
				return fmt.Errorf("duplicate option id %q", o.ID)
			}
			seen[o.ID] = true
		}
	case TypeScale:
		if q.Scale == nil {
			return fmt.Errorf("SCALE requires bounds")
		}
		if q.Scale.Min >= q.Scale.Max {
			return fmt.Errorf("scale min %d must be below max %d", q.Scale.Min, q.Scale.Max)
		}
	default:
		return fmt.Errorf("unknown type %q", q.Type)
	}
	return nil
}

// Len is the number of questions.
func (c *Catalog) Len() int { return len(c.questions) }

// At returns the question at a position in the walk order.
func (c *Catalog) At(index int) (Question, bool) {
	if index < 0 || index >= len(c.questions) {
		return Question{}, false
	}
	return c.questions[index], true
}

func (c *Catalog) ByID(id int) (Question, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}

// IndexOf returns the walk position of a question id, or -1.
func (c *Catalog) IndexOf(id int) int {
	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}

// FirstSection is the section a fresh session starts in.
func (c *Catalog) FirstSection() string { return c.questions[0].Section }

// Sections lists section names in first-appearance order.
func (c *Catalog) Sections() []string {
	out := make([]string, len(c.sections))
	copy(out, c.sections)
	return out
}

// Questions returns a copy of the ordered list.
func (c *Catalog) Questions() []Question {
	out := make([]Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// Progress is the completed fraction when the participant sits at index.
func (c *Catalog) Progress(index int) float64 {
	if index < 0 {
		return 0
	}
	if index >= len(c.questions) {
		return 1
	}
	return float64(index+1) / float64(len(c.questions))
}
