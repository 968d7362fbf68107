package bot

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GTDGit/dealfinder/internal/service"
)

//go:embed messages.yaml
var defaultMessages []byte

// Messages holds every user-facing string of the bot.
type Messages struct {
	Medals []string `yaml:"medals"`
	Icons  struct {
		Cart  string `yaml:"cart"`
		Star  string `yaml:"star"`
		Money string `yaml:"money"`
		Link  string `yaml:"link"`
	} `yaml:"icons"`
	Lines struct {
		Title  string `yaml:"title"`
		Sales  string `yaml:"sales"`
		Rating string `yaml:"rating"`
		Price  string `yaml:"price"`
		Link   string `yaml:"link"`
	} `yaml:"lines"`
	Signature       string            `yaml:"signature"`
	MoreButton      string            `yaml:"more_button"`
	SearchInProcess string            `yaml:"search_in_process"`
	MissingValue    string            `yaml:"missing_value"`
	Errors          map[string]string `yaml:"errors"`
}

const (
	msgNoActivation  = "no_activation"
	msgNoProductName = "no_product_name"
)

// LoadMessages parses the embedded templates and, when path is set, overlays
// the file at path on top of them.
func LoadMessages(path string) (*Messages, error) {
	var m Messages
	if err := yaml.Unmarshal(defaultMessages, &m); err != nil {
		return nil, fmt.Errorf("failed to parse embedded messages: %w", err)
	}
	if path == "" {
		return &m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	var override Messages
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse messages file %s: %w", path, err)
	}
	m.merge(&override)
	return &m, nil
}

func (m *Messages) merge(o *Messages) {
	pick := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	if len(o.Medals) > 0 {
		m.Medals = o.Medals
	}
	pick(&m.Icons.Cart, o.Icons.Cart)
	pick(&m.Icons.Star, o.Icons.Star)
	pick(&m.Icons.Money, o.Icons.Money)
	pick(&m.Icons.Link, o.Icons.Link)
	pick(&m.Lines.Title, o.Lines.Title)
	pick(&m.Lines.Sales, o.Lines.Sales)
	pick(&m.Lines.Rating, o.Lines.Rating)
	pick(&m.Lines.Price, o.Lines.Price)
	pick(&m.Lines.Link, o.Lines.Link)
	pick(&m.Signature, o.Signature)
	pick(&m.MoreButton, o.MoreButton)
	pick(&m.SearchInProcess, o.SearchInProcess)
	pick(&m.MissingValue, o.MissingValue)
	for k, v := range o.Errors {
		if m.Errors == nil {
			m.Errors = map[string]string{}
		}
		m.Errors[k] = v
	}
}

// Error returns the message for key with {query} substituted.
func (m *Messages) Error(key, query string) string {
	text, ok := m.Errors[key]
	if !ok {
		text = m.Errors[string(service.OutcomeFailed)]
	}
	return strings.ReplaceAll(text, "{query}", query)
}

// Outcome returns the user message for a non-OK outcome.
func (m *Messages) Outcome(o service.Outcome, query string) string {
	return m.Error(string(o), query)
}

// Medal returns the icon for a zero-based position on a page.
func (m *Messages) Medal(position int) string {
	if position >= 0 && position < len(m.Medals) {
		return m.Medals[position]
	}
	return fmt.Sprintf("%d.", position+1)
}
