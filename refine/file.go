package refine

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadJargonFile reads a YAML mapping of term to canonical form, e.g.
//
//	kubectl: kubectl
//	terraform: Terraform
//	"gcp console": GCP Console
func LoadJargonFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing jargon file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || strings.TrimSpace(v) == "" {
			continue
		}
		out[k] = v
	}
	return out, nil
}
