package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads an installation from a YAML file and applies defaults.
// Unknown keys are rejected.
func Load(path string) (*Installation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read installation model: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes an installation from YAML and applies defaults.
func Parse(data []byte) (*Installation, error) {
	m := &Installation{}
	if err := decodeStrict(data, m); err != nil {
		return nil, err
	}
	m.ApplyDefaults()
	return m, nil
}

// ApplyOverrides sets fields from dotted YAML keys, for example
// "xpack.license" or "node.http_port". Values are parsed as YAML scalars.
// Defaults are re-applied afterwards for fields that are still empty.
func (m *Installation) ApplyOverrides(overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		doc, err := overrideDocument(key, overrides[key])
		if err != nil {
			return err
		}
		if err := decodeStrict(doc, m); err != nil {
			return fmt.Errorf("invalid override %s: %w", key, err)
		}
	}
	m.ApplyDefaults()
	return nil
}

// ParseOverrides splits key=value pairs as given on the command line.
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("override %q must have the form key=value", p)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}

// overrideDocument builds a nested YAML mapping for a dotted key. The value
// is left untagged so it resolves to whatever the target field needs.
func overrideDocument(key, value string) ([]byte, error) {
	parts := strings.Split(key, ".")
	leaf := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	if value == "" {
		leaf.Tag = "!!str"
	}
	node := leaf
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			return nil, fmt.Errorf("invalid override key %q", key)
		}
		node = &yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: parts[i]},
				node,
			},
		}
	}
	return yaml.Marshal(node)
}

func decodeStrict(data []byte, out *Installation) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// String renders the installation for logs. Passwords are never printed,
// only whether each one is set.
func (m *Installation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", m.ProductName, m.Version)
	if m.ExistingVersionInstalled() {
		fmt.Fprintf(&b, " (upgrading from %s)", m.ExistingVersion)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, " - install dir: %s\n", m.Locations.InstallDir)
	fmt.Fprintf(&b, " - config dir: %s\n", m.Locations.ConfigDir)
	fmt.Fprintf(&b, " - data dir: %s\n", m.Locations.DataDir)
	fmt.Fprintf(&b, " - logs dir: %s\n", m.Locations.LogsDir)
	fmt.Fprintf(&b, " - http: %s:%d\n", orDefault(m.Node.NetworkHost, "localhost"), m.Node.HTTPPort)
	fmt.Fprintf(&b, " - service: install=%t start=%t name=%s\n",
		m.Service.Install, m.Service.StartAfterInstall, m.Service.Name)
	fmt.Fprintf(&b, " - xpack: enabled=%t security=%t license=%s license_file=%s\n",
		m.XPack.Enabled, m.XPack.SecurityEnabled, orDefault(string(m.XPack.License), "none"),
		orDefault(m.XPack.LicenseFile, "none"))
	fmt.Fprintf(&b, " - passwords: bootstrap=%s elastic=%s kibana=%s logstash_system=%s skip=%t",
		redact(m.XPack.BootstrapPassword), redact(m.XPack.ElasticUserPassword),
		redact(m.XPack.KibanaUserPassword), redact(m.XPack.LogstashSystemUserPassword),
		m.XPack.SkipSettingPasswords)
	return b.String()
}

func redact(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
