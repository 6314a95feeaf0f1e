package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// recipientsFile mirrors the YAML layout of notifications.recipients_file:
//
//	lists:
//	  upload: [ops@example.com]
//	  approval: [lead@example.com]
type recipientsFile struct {
	Lists map[string][]string `yaml:"lists"`
}

// RecipientLists merges the inline notification lists with the optional
// recipients file. Entries from both sources are kept; duplicates are removed
// later by the dispatcher.
func (c *Config) RecipientLists() (map[string][]string, error) {
	merged := make(map[string][]string, len(c.Notifications.Lists))
	for event, recipients := range c.Notifications.Lists {
		merged[event] = append([]string(nil), recipients...)
	}
	path := c.Notifications.RecipientsFile
	if path == "" {
		return merged, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return merged, nil
		}
		return nil, fmt.Errorf("read recipients file: %w", err)
	}
	var parsed recipientsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse recipients file %q: %w", path, err)
	}
	for event, recipients := range parsed.Lists {
		key := strings.ToLower(strings.TrimSpace(event))
		if _, ok := knownEventLists[key]; !ok {
			return nil, fmt.Errorf("recipients file %q: unknown event type %q", path, event)
		}
		merged[key] = append(merged[key], trimList(recipients)...)
	}
	return merged, nil
}
