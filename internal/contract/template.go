package contract

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

//go:embed templates/default.yaml
var defaultTemplateYAML []byte

// Template describes the text of a contract.
//
// Body and Optional lines may contain placeholders:
//
//	{{id}} {{name}} {{created_at}} {{generated_at}}
//	{{company}} {{logo_path}} {{contract_id}}
//	{{extra_fields}}   one "Key: Value" line per extra field
//	{{field:Key}}      value of a single extra field
//
// Required lists extra field keys the client must have.
type Template struct {
	Title          string   `yaml:"title"`
	Body           string   `yaml:"body"`
	Optional       []string `yaml:"optional"`
	Required       []string `yaml:"required"`
	SignatureLabel string   `yaml:"signature_label"`
	Footer         string   `yaml:"footer"`
	DateFormat     string   `yaml:"date_format"`
}

var placeholderRE = regexp.MustCompile(`\{\{\s*(field:[^}]*?|[a-z_]+)\s*\}\}`)

var knownPlaceholders = map[string]bool{
	"id":           true,
	"name":         true,
	"created_at":   true,
	"generated_at": true,
	"company":      true,
	"logo_path":    true,
	"contract_id":  true,
	"extra_fields": true,
}

// DefaultTemplate returns the built-in German contract template.
func DefaultTemplate() Template {
	t, err := ParseTemplate(defaultTemplateYAML)
	if err != nil {
		panic(fmt.Sprintf("contract: embedded template invalid: %v", err))
	}
	return t
}

// LoadTemplate reads and validates a YAML template file.
func LoadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, record.NewIOError("load_template", path, err)
	}
	t, err := ParseTemplate(data)
	if err != nil {
		return Template{}, fmt.Errorf("template %s: %w", path, err)
	}
	return t, nil
}

// ParseTemplate decodes and validates a YAML template.
func ParseTemplate(data []byte) (Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, record.NewValidationError("parse_template", fmt.Sprintf("invalid YAML: %v", err))
	}
	if err := t.Validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

// Validate rejects templates with no body or unknown placeholders.
func (t Template) Validate() error {
	const op = "template"

	if strings.TrimSpace(t.Body) == "" {
		return record.NewValidationError(op, "body must not be empty")
	}
	texts := append([]string{t.Title, t.Body, t.Footer}, t.Optional...)
	for _, text := range texts {
		for _, m := range placeholderRE.FindAllStringSubmatch(text, -1) {
			name := m[1]
			if strings.HasPrefix(name, "field:") {
				if record.NormalizeKey(strings.TrimPrefix(name, "field:")) == "" {
					return record.NewValidationError(op, "placeholder {{field:}} needs a key")
				}
				continue
			}
			if !knownPlaceholders[name] {
				return record.NewValidationError(op, fmt.Sprintf("unknown placeholder {{%s}}", name))
			}
		}
	}
	for _, k := range t.Required {
		if record.NormalizeKey(k) == "" {
			return record.NewValidationError(op, "required key must not be empty")
		}
	}
	return nil
}

func (t Template) dateFormat() string {
	if t.DateFormat == "" {
		return "02.01.2006"
	}
	return t.DateFormat
}

// Meta carries the per-rendering values that are not part of the snapshot.
type Meta struct {
	ContractID string
}

// Text is a fully substituted contract.
type Text struct {
	Title          string
	Body           string
	SignatureLabel string
	Footer         string
}

// ComposeText substitutes snapshot and branding values into the template.
// Returns a validation error naming every required key the snapshot lacks.
//
// A line made only of placeholders that expand to nothing is dropped.
// An optional line is kept only when every placeholder in it is non-empty;
// kept optional lines follow the body after one blank line.
func ComposeText(snap record.Snapshot, tmpl Template, b record.Branding, meta Meta) (Text, error) {
	var missing []string
	for _, k := range tmpl.Required {
		if _, ok := snap.Value(record.NormalizeKey(k)); !ok {
			missing = append(missing, record.NormalizeKey(k))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		e := record.NewValidationError("compose", "missing required fields: "+strings.Join(missing, ", "))
		e.ClientID = snap.ClientID()
		return Text{}, e
	}

	values := map[string]string{
		"id":           strconv.FormatInt(snap.ClientID(), 10),
		"name":         snap.Name(),
		"created_at":   snap.CreatedAt().UTC().Format(tmpl.dateFormat()),
		"generated_at": snap.TakenAt().UTC().Format(tmpl.dateFormat()),
		"company":      b.CompanyName,
		"logo_path":    b.LogoPath,
		"contract_id":  meta.ContractID,
		"extra_fields": extraFieldLines(snap.Fields()),
	}
	lookup := func(name string) string {
		if key, ok := strings.CutPrefix(name, "field:"); ok {
			v, _ := snap.Value(record.NormalizeKey(key))
			return v
		}
		return values[name]
	}

	var lines []string
	for _, line := range strings.Split(tmpl.Body, "\n") {
		out, empty := substitute(line, lookup)
		if empty && strings.TrimSpace(placeholderRE.ReplaceAllString(line, "")) == "" && placeholderRE.MatchString(line) {
			continue
		}
		lines = append(lines, out)
	}

	var optional []string
	for _, line := range tmpl.Optional {
		if !placeholderRE.MatchString(line) {
			continue
		}
		out, anyEmpty := substituteStrict(line, lookup)
		if anyEmpty {
			continue
		}
		optional = append(optional, out)
	}
	if len(optional) > 0 {
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		lines = append(lines, "")
		lines = append(lines, optional...)
	}

	title, _ := substitute(tmpl.Title, lookup)
	footer, _ := substitute(tmpl.Footer, lookup)
	label := tmpl.SignatureLabel
	if label == "" {
		label = "Signatur"
	}

	return Text{
		Title:          title,
		Body:           normalizeText(strings.Join(lines, "\n")),
		SignatureLabel: label,
		Footer:         footer,
	}, nil
}

// substitute replaces every placeholder. empty reports whether all
// placeholders in s expanded to the empty string.
func substitute(s string, lookup func(string) string) (out string, empty bool) {
	empty = true
	out = placeholderRE.ReplaceAllStringFunc(s, func(m string) string {
		v := lookup(placeholderRE.FindStringSubmatch(m)[1])
		if v != "" {
			empty = false
		}
		return v
	})
	return out, empty
}

// substituteStrict replaces every placeholder and reports whether any of
// them expanded to the empty string.
func substituteStrict(s string, lookup func(string) string) (out string, anyEmpty bool) {
	out = placeholderRE.ReplaceAllStringFunc(s, func(m string) string {
		v := lookup(placeholderRE.FindStringSubmatch(m)[1])
		if v == "" {
			anyEmpty = true
		}
		return v
	})
	return out, anyEmpty
}

func extraFieldLines(fs record.Fields) string {
	lines := make([]string, 0, len(fs))
	for _, f := range fs {
		lines = append(lines, f.Key+": "+f.Value)
	}
	return strings.Join(lines, "\n")
}

// normalizeText unifies line endings, trims trailing blanks on every line
// and ends the text with exactly one newline.
func normalizeText(in string) string {
	s := strings.ReplaceAll(in, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}
