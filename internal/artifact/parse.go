package artifact

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies how a structured artifact is encoded.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatTOML    Format = "toml"
	FormatINI     Format = "ini"
	FormatUnknown Format = ""
)

// DetectFormat guesses the encoding of a config artifact from its name.
func DetectFormat(rel string) Format {
	base := strings.ToLower(path.Base(rel))
	switch path.Ext(base) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	case ".ini", ".cfg":
		return FormatINI
	}
	switch base {
	case ".flake8", ".coveragerc":
		return FormatINI
	}
	return FormatUnknown
}

// ParseConfig decodes a YAML, JSON or TOML artifact into a generic map.
// INI files are returned with one nested map per section.
func ParseConfig(rel string, data []byte) (map[string]any, error) {
	out := map[string]any{}
	var err error

	switch DetectFormat(rel) {
	case FormatYAML:
		err = yaml.Unmarshal(data, &out)
	case FormatJSON:
		err = json.Unmarshal(data, &out)
	case FormatTOML:
		err = toml.Unmarshal(data, &out)
	case FormatINI:
		var sections map[string]map[string]string
		sections, err = ParseINI(data)
		for name, kv := range sections {
			m := make(map[string]any, len(kv))
			for k, v := range kv {
				m[k] = v
			}
			out[name] = m
		}
	default:
		err = fmt.Errorf("unsupported config format")
	}
	if err != nil {
		return nil, Unparsable(rel, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// ParseYAMLDocuments decodes every document in a multi-document YAML stream.
// Empty documents are skipped.
func ParseYAMLDocuments(rel string, data []byte) ([]map[string]any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []map[string]any
	for {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Unparsable(rel, err)
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

var iniSection = regexp.MustCompile(`^\[([^\]]+)\]$`)

// ParseINI reads the section/key layout used by setup.cfg, tox.ini and
// pytest.ini. Continuation lines are appended to the previous key.
func ParseINI(data []byte) (map[string]map[string]string, error) {
	sections := map[string]map[string]string{}
	current := ""
	lastKey := ""

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if m := iniSection.FindStringSubmatch(line); m != nil {
			current = strings.TrimSpace(m[1])
			if _, ok := sections[current]; !ok {
				sections[current] = map[string]string{}
			}
			lastKey = ""
			continue
		}

		if current == "" {
			return nil, fmt.Errorf("line %d: key outside of a section", lineNo)
		}

		if lastKey != "" && (strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")) {
			sections[current][lastKey] = strings.TrimSpace(sections[current][lastKey] + "\n" + line)
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			key, value, ok = strings.Cut(line, ":")
		}
		if !ok {
			return nil, fmt.Errorf("line %d: expected key = value", lineNo)
		}
		lastKey = strings.TrimSpace(key)
		sections[current][lastKey] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

// Lookup walks nested maps by key and reports whether the full path exists.
func Lookup(m map[string]any, keys ...string) (any, bool) {
	var cur any = m
	for _, k := range keys {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// FirstMatchLine returns the 1-based line of the first regex match, or 0.
func FirstMatchLine(data []byte, re *regexp.Regexp) int {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), DefaultMaxBytes)
	line := 0
	for scanner.Scan() {
		line++
		if re.Match(scanner.Bytes()) {
			return line
		}
	}
	return 0
}

// ContainsFold reports whether data contains any of the words,
// ignoring case.
func ContainsFold(data []byte, words ...string) bool {
	lower := bytes.ToLower(data)
	for _, w := range words {
		if bytes.Contains(lower, []byte(strings.ToLower(w))) {
			return true
		}
	}
	return false
}

// MentionsFailure reports whether a log mentions an error or a failure.
func MentionsFailure(data []byte) bool {
	return ContainsFold(data, "error", "failed")
}
