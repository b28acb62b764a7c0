package core

import (
	"crypto/sha512"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GeneratorNode mirrors the recursive structure original_source's
// Generators builds from generators.yaml: a directory entry has Type
// "directory" and further named children; a testcase entry names an
// input/solution/visualizer command template.
type GeneratorNode struct {
	Path       string
	Type       string // "directory" | "testcase"
	Input      string
	Solution   string
	Visualizer string
	RandomSalt string
	Children   map[string]*GeneratorNode

	// Seed and ResolvedInput are populated for testcase nodes: Seed is the
	// per-case digest fed into {seed}, ResolvedInput is Input with its
	// {name}/{seed} tokens substituted.
	Seed          string
	ResolvedInput string
}

// GeneratorsChecker parses generators.yaml into the GeneratorNode tree and
// validates its shape; it does not invoke generator programs to produce
// test data (compiling/running generators is out of scope per spec.md §1's
// "generator compilation" non-goal).
type GeneratorsChecker struct {
	ProblemAspect
	path string
	Root *GeneratorNode
}

func NewGeneratorsChecker(diag *RunDiagnostics, problemdir string) *GeneratorsChecker {
	return &GeneratorsChecker{ProblemAspect: NewProblemAspect(diag, "generators"), path: filepath.Join(problemdir, "generators", "generators.yaml")}
}

type rawGeneratorElement struct {
	Type string                          `yaml:"type"`
	Data map[string]rawGeneratorElement  `yaml:"data"`
	Input      string `yaml:"input"`
	Solution   string `yaml:"solution"`
	Visualizer string `yaml:"visualizer"`
	RandomSalt string `yaml:"random_salt"`
}

func (g *GeneratorsChecker) Check() {
	data, err := os.ReadFile(g.path)
	if err != nil {
		// Generators are optional; absence is not an error.
		return
	}
	var root map[string]map[string]rawGeneratorElement
	if err := yaml.Unmarshal(data, &root); err != nil {
		g.Error("malformed generators.yaml: %v", err)
		return
	}
	for key, el := range root {
		if key != "data" {
			continue
		}
		g.Root = &GeneratorNode{Path: "data", Type: "directory", Children: map[string]*GeneratorNode{}}
		for name, child := range el {
			if name != "sample" && name != "secret" {
				g.Warning("generators.yaml data entry %q is neither sample nor secret", name)
			}
			if child.Type != "" && child.Type != "directory" {
				g.Error(`generators.yaml data entry %q must have type "directory"`, name)
				continue
			}
			g.Root.Children[name] = g.parseElement(name, child, "")
		}
	}
}

func (g *GeneratorsChecker) parseElement(path string, el rawGeneratorElement, inheritedSalt string) *GeneratorNode {
	salt := firstNonEmpty(el.RandomSalt, inheritedSalt)
	node := &GeneratorNode{Path: path, Input: el.Input, Solution: el.Solution, Visualizer: el.Visualizer, RandomSalt: salt}
	if el.Type == "directory" || len(el.Data) > 0 {
		node.Type = "directory"
		node.Children = map[string]*GeneratorNode{}
		for name, child := range el.Data {
			node.Children[name] = g.parseElement(path+"/"+name, child, salt)
		}
		return node
	}
	node.Type = "testcase"
	name := filepath.Base(path)
	node.Seed = generatorSeed(path, salt)
	node.ResolvedInput = resolveTemplate(node.Input, name, node.Seed)
	return node
}

// generatorSeed resolves the {seed} template token used inside generator
// commands: a deterministic digest of the case's path and the group's
// random_salt, mirroring the original tool's per-case seeding so re-running
// generation is reproducible.
func generatorSeed(path, randomSalt string) string {
	h := sha512.Sum512([]byte(path + "\x00" + randomSalt))
	return hex.EncodeToString(h[:])[:16]
}

// resolveTemplate substitutes {name} and {seed} tokens in a generator
// command template.
func resolveTemplate(template, name, seed string) string {
	return strings.NewReplacer("{name}", name, "{seed}", seed).Replace(template)
}
