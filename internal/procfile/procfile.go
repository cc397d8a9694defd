package procfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Spec is one process declaration. It is immutable once parsed.
type Spec struct {
	Group   string
	Name    string
	Command string
	// Order is the zero-based position of the declaration in the source.
	Order int
}

// Label renders the spec the way it is written in a Procfile.
func (s Spec) Label() string {
	if s.Group == s.Name {
		return s.Name
	}
	return s.Group + "[" + s.Name + "]"
}

// DefinitionError reports a malformed declaration.
type DefinitionError struct {
	Line   int
	Text   string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Line <= 0 {
		return "procfile: " + e.Reason
	}
	return fmt.Sprintf("procfile line %d: %s (%q)", e.Line, e.Reason, e.Text)
}

// Load reads and parses the Procfile at path.
func Load(path string) ([]Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open procfile: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse turns Procfile text into specs, preserving source order.
// Blank lines and lines starting with '#' are skipped, even when they contain
// a ':', so "#web: ./server" comments an entry out.
func Parse(r io.Reader) ([]Spec, error) {
	var specs []Spec
	seen := make(map[key]int)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		spec, err := parseLine(raw)
		if err != nil {
			return nil, &DefinitionError{Line: lineNo, Text: raw, Reason: err.Error()}
		}
		k := key{spec.Group, spec.Name}
		if first, dup := seen[k]; dup {
			return nil, &DefinitionError{
				Line:   lineNo,
				Text:   raw,
				Reason: fmt.Sprintf("duplicate process %s (first declared on line %d)", spec.Label(), first),
			}
		}
		seen[k] = lineNo
		spec.Order = len(specs)
		specs = append(specs, spec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read procfile: %w", err)
	}
	return specs, nil
}

type key struct{ group, name string }

func parseLine(line string) (Spec, error) {
	label, command, ok := strings.Cut(line, ":")
	if !ok {
		return Spec{}, fmt.Errorf("missing ':' between label and command")
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return Spec{}, fmt.Errorf("empty command")
	}
	group, name, err := splitLabel(label)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Group: group, Name: name, Command: command}, nil
}

// splitLabel accepts "group[name]" or a bare "name".
func splitLabel(raw string) (string, string, error) {
	label := strings.TrimSpace(raw)
	open := strings.IndexByte(label, '[')
	if open < 0 {
		if strings.ContainsRune(label, ']') {
			return "", "", fmt.Errorf("unexpected ']' in label %q", label)
		}
		name, err := normalizeName(label)
		if err != nil {
			return "", "", err
		}
		return name, name, nil
	}
	if !strings.HasSuffix(label, "]") {
		return "", "", fmt.Errorf("unterminated '[' in label %q", label)
	}
	group, err := normalizeName(label[:open])
	if err != nil {
		return "", "", err
	}
	name, err := normalizeName(label[open+1 : len(label)-1])
	if err != nil {
		return "", "", err
	}
	return group, name, nil
}
