package seed

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Loader reads a seed file. Both the flat layout and a Homepage
// services.yaml are accepted.
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewLoader creates a new seed loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
		lookup:   os.LookupEnv,
	}
}

// Load reads and parses the seed file into entries, in file order.
func (l *Loader) Load() ([]Entry, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(expandTemplateVariables(data, l.lookup))
}

// Parse decodes seed YAML. A top-level mapping is the flat layout, a
// top-level sequence is a Homepage services.yaml.
func Parse(data []byte) ([]Entry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.MappingNode:
		var f File
		if err := doc.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode seed file: %w", err)
		}
		return f.Services, nil
	case yaml.SequenceNode:
		var cfg HomepageConfig
		if err := doc.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to decode homepage services: %w", err)
		}
		return fromHomepage(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported seed layout at line %d", doc.Line)
	}
}

// fromHomepage flattens Homepage groups. siteMonitor wins over href since
// it is the URL Homepage itself probes.
func fromHomepage(cfg HomepageConfig) []Entry {
	var entries []Entry
	for _, group := range cfg {
		for _, services := range group {
			for _, svc := range services {
				for name, props := range svc {
					target := strings.TrimSpace(props.SiteMonitor)
					if target == "" {
						target = strings.TrimSpace(props.Href)
					}
					if target == "" {
						continue
					}
					entries = append(entries, Entry{Name: name, URL: target})
				}
			}
		}
	}
	return entries
}

// expandTemplateVariables replaces {{VAR}} with the value of VAR from the
// environment, or an empty string when unset.
// Example: href: {{HEARTBEAT_VAR_GRAFANA_URL}}
func expandTemplateVariables(data []byte, lookup func(string) (string, bool)) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := templateVar.FindSubmatch(m)[1]
		val, _ := lookup(string(name))
		return []byte(val)
	})
}
