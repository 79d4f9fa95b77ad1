package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"
)

// LoadAllowList reads an allow-list document. The decoder is chosen by file extension
// (.json, .yaml/.yml, .toml). JSON files may also hold the bare command map used by older
// gatekeeper configs.
func LoadAllowList(path string) (AllowListDocument, error) {
	var doc AllowListDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("reading allow-list %s: %w", path, err)
	}
	if err := decode(path, data, &doc); err != nil {
		return doc, fmt.Errorf("decoding allow-list %s: %w", path, err)
	}
	if len(doc.Commands) == 0 && formatOf(path) == "json" {
		var bare map[string]CommandDefinition
		if err := json.Unmarshal(data, &bare); err == nil && len(bare) > 0 {
			doc.Commands = bare
		}
	}
	if len(doc.Commands) == 0 {
		return doc, fmt.Errorf("allow-list %s defines no commands", path)
	}
	return doc, nil
}

// LoadRiskProfiles reads a risk-profile document. The decoder is chosen by file extension.
func LoadRiskProfiles(path string) (RiskProfileDocument, error) {
	var doc RiskProfileDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("reading risk profiles %s: %w", path, err)
	}
	if err := decode(path, data, &doc); err != nil {
		return doc, fmt.Errorf("decoding risk profiles %s: %w", path, err)
	}
	return doc, nil
}

// LoadOrDefault loads both documents, falling back to the built-in policy for empty paths.
func LoadOrDefault(allowListPath, riskProfilesPath string) (AllowListDocument, RiskProfileDocument, error) {
	allow := DefaultAllowList()
	risk := DefaultRiskProfiles()

	if allowListPath != "" {
		doc, err := LoadAllowList(allowListPath)
		if err != nil {
			return allow, risk, err
		}
		allow = doc
	}
	if riskProfilesPath != "" {
		doc, err := LoadRiskProfiles(riskProfilesPath)
		if err != nil {
			return allow, risk, err
		}
		risk = doc
	}
	return allow, risk, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

func decode(path string, data []byte, v any) error {
	switch formatOf(path) {
	case "yaml":
		return yaml.Unmarshal(data, v)
	case "toml":
		_, err := toml.Decode(string(data), v)
		return err
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		return dec.Decode(v)
	}
}
