// Package category serves the static three-level industry classification.
package category

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// MaxLevel is the depth of the deepest category nodes
const MaxLevel = 3

const (
	entryPrefix     = "├── "
	lastEntryPrefix = "└── "
	verticalLine    = "│   "
	indentPrefix    = "    "
)

//go:embed tree.yaml
var treeYAML []byte

var (
	loadOnce sync.Once
	loaded   []models.CategoryNode
	loadErr  error
)

// Tree returns a copy of the static category tree. Callers may modify the result.
func Tree() ([]models.CategoryNode, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(treeYAML)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return cloneNodes(loaded), nil
}

// Parse decodes a YAML category tree and checks its shape: ids, codes and
// names are unique, roots are level 1 and each child is one level below its
// parent.
func Parse(data []byte) ([]models.CategoryNode, error) {
	var nodes []models.CategoryNode
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("%w: category tree: %w", utils.ErrParsing, err)
	}

	ids := make(map[int]bool)
	codes := make(map[string]bool)
	names := make(map[string]bool)
	var check func(list []models.CategoryNode, level int) error
	check = func(list []models.CategoryNode, level int) error {
		for _, n := range list {
			if n.Level != level || level > MaxLevel {
				return fmt.Errorf("%w: category %q has level %d, expected %d", utils.ErrValidation, n.Code, n.Level, level)
			}
			if strings.TrimSpace(n.Name) == "" || n.Code == "" {
				return fmt.Errorf("%w: category id %d needs a name and code", utils.ErrValidation, n.ID)
			}
			if ids[n.ID] {
				return fmt.Errorf("%w: duplicate category id %d", utils.ErrValidation, n.ID)
			}
			if codes[n.Code] {
				return fmt.Errorf("%w: duplicate category code %q", utils.ErrValidation, n.Code)
			}
			if names[n.Name] {
				return fmt.Errorf("%w: duplicate category name %q", utils.ErrValidation, n.Name)
			}
			ids[n.ID] = true
			codes[n.Code] = true
			names[n.Name] = true
			if err := check(n.Children, level+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(nodes, 1); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Find looks a node up by its code or name anywhere in nodes. Cards store
// either form.
func Find(nodes []models.CategoryNode, key string) (models.CategoryNode, bool) {
	for _, n := range nodes {
		if matches(n, key) {
			return n, true
		}
		if found, ok := Find(n.Children, key); ok {
			return found, true
		}
	}
	return models.CategoryNode{}, false
}

// Path returns the names from the root down to the node matching key,
// joined by " > "
func Path(nodes []models.CategoryNode, key string) (string, bool) {
	for _, n := range nodes {
		if matches(n, key) {
			return n.Name, true
		}
		if rest, ok := Path(n.Children, key); ok {
			return n.Name + " > " + rest, true
		}
	}
	return "", false
}

func matches(n models.CategoryNode, key string) bool {
	return key != "" && (n.Code == key || n.Name == key)
}

// WriteTree renders nodes as an indented text tree
func WriteTree(w io.Writer, nodes []models.CategoryNode) error {
	return writeLevel(w, nodes, "")
}

func writeLevel(w io.Writer, nodes []models.CategoryNode, currentIndent string) error {
	for i, n := range nodes {
		prefix, childIndent := entryPrefix, currentIndent+verticalLine
		if i == len(nodes)-1 {
			prefix, childIndent = lastEntryPrefix, currentIndent+indentPrefix
		}
		if _, err := fmt.Fprintf(w, "%s%s%s (%s)\n", currentIndent, prefix, n.Name, n.Code); err != nil {
			return err
		}
		if err := writeLevel(w, n.Children, childIndent); err != nil {
			return err
		}
	}
	return nil
}

func cloneNodes(nodes []models.CategoryNode) []models.CategoryNode {
	if nodes == nil {
		return nil
	}
	out := make([]models.CategoryNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Children = cloneNodes(n.Children)
	}
	return out
}
