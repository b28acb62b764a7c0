package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// Concrete scenario: a testcase entry's {name}/{seed} tokens resolve to the
// case's own path-derived name and a deterministic per-case seed.
func TestGeneratorsResolvesNameAndSeedTokens(t *testing.T) {
	dir := t.TempDir()
	genDir := filepath.Join(dir, "generators")
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		t.Fatal(err)
	}
	yamlContent := `
data:
  secret:
    random_salt: "fixed-salt"
    data:
      case1:
        input: "gen.py {name} --seed {seed}"
`
	if err := os.WriteFile(filepath.Join(genDir, "generators.yaml"), []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	diag := NewRunDiagnostics(zerolog.Nop(), false, false, 15)
	gc := NewGeneratorsChecker(diag, dir)
	gc.Check()

	if gc.Root == nil {
		t.Fatal("expected a parsed generator tree")
	}
	secret := gc.Root.Children["secret"]
	if secret == nil {
		t.Fatal("expected a \"secret\" child")
	}
	case1 := secret.Children["case1"]
	if case1 == nil {
		t.Fatal("expected a \"case1\" testcase node")
	}
	if case1.Seed == "" {
		t.Fatal("expected a non-empty resolved seed")
	}
	want := "gen.py case1 --seed " + case1.Seed
	if case1.ResolvedInput != want {
		t.Fatalf("ResolvedInput = %q, want %q", case1.ResolvedInput, want)
	}
}

// Two cases under the same random_salt must get different seeds, since the
// seed digest is derived from each case's own path.
func TestGeneratorsSeedsDifferPerCase(t *testing.T) {
	dir := t.TempDir()
	genDir := filepath.Join(dir, "generators")
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		t.Fatal(err)
	}
	yamlContent := `
data:
  secret:
    random_salt: "same-salt"
    data:
      case1:
        input: "gen.py --seed {seed}"
      case2:
        input: "gen.py --seed {seed}"
`
	if err := os.WriteFile(filepath.Join(genDir, "generators.yaml"), []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	diag := NewRunDiagnostics(zerolog.Nop(), false, false, 15)
	gc := NewGeneratorsChecker(diag, dir)
	gc.Check()

	secret := gc.Root.Children["secret"]
	c1, c2 := secret.Children["case1"], secret.Children["case2"]
	if c1.Seed == c2.Seed {
		t.Fatalf("expected distinct seeds for distinct case paths, got %q for both", c1.Seed)
	}
}
