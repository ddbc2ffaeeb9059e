// Package file provides YAML file based persistence for rules.
package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dukex/ruleflow/pkg/models"
	"github.com/dukex/ruleflow/pkg/persistence"
	"gopkg.in/yaml.v3"
)

// document is the layout of a rules file.
type document struct {
	Rules []*models.Rule `yaml:"rules"`
}

// Persistence reads rules from a YAML file or from every *.yaml and *.yml
// file of a directory. Files are read on every call so that edits are
// picked up without restart.
type Persistence struct {
	root string
}

func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	_, err := os.Stat(fp.root)

	return err
}

func (fp *Persistence) Rules(_ context.Context) ([]*models.Rule, error) {
	files, err := fp.files()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	rules := make([]*models.Rule, 0)

	for _, file := range files {
		loaded, err := readRules(file)
		if err != nil {
			return nil, err
		}

		for _, rule := range loaded {
			if seen[rule.ID] {
				return nil, persistence.NewRuleError("Load", rule.ID, persistence.ErrDuplicateRule)
			}

			seen[rule.ID] = true

			rules = append(rules, rule)
		}
	}

	return rules, nil
}

func (fp *Persistence) RuleByID(ctx context.Context, id string) (*models.Rule, error) {
	rules, err := fp.Rules(ctx)
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if rule.ID == id {
			return rule, nil
		}
	}

	return nil, persistence.NewRuleError("RuleByID", id, persistence.ErrRuleNotFound)
}

func (fp *Persistence) files() ([]string, error) {
	info, err := os.Stat(fp.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules location: %w", err)
	}

	if !info.IsDir() {
		return []string{fp.root}, nil
	}

	root := os.DirFS(fp.root)

	yamlFiles, err := fs.Glob(root, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	ymlFiles, err := fs.Glob(root, "*.yml")
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	names := append(yamlFiles, ymlFiles...)
	slices.Sort(names)

	files := make([]string, 0, len(names))
	for _, name := range names {
		files = append(files, filepath.Join(fp.root, name))
	}

	return files, nil
}

func readRules(path string) ([]*models.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}

	var doc document

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}

	return doc.Rules, nil
}
