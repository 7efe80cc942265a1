package brand

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleKit = `
name: Acme Coffee
tagline: Wake up better
industry: specialty coffee
competitors:
  - Blue Bottle
  - Stumptown
target_audience: urban professionals 25-40
voice:
  tone: [warm, confident]
  avoid: [jargon, hype]
colors: ["#3B2F2F", "#D9A441"]
fonts: [Inter]
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brand.yaml")
	if err := os.WriteFile(path, []byte(sampleKit), 0o644); err != nil {
		t.Fatal(err)
	}

	kit, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if kit.Name != "Acme Coffee" || kit.Industry != "specialty coffee" {
		t.Fatalf("kit = %+v", kit)
	}
	if len(kit.Competitors) != 2 || len(kit.Voice.Tone) != 2 {
		t.Fatalf("lists not parsed: %+v", kit)
	}
}

func TestParse_RequiresName(t *testing.T) {
	if _, err := Parse([]byte("tagline: nameless")); err == nil {
		t.Fatal("expected kit without a name to be rejected")
	}
	if _, err := Parse([]byte("name: [not a string")); err == nil {
		t.Fatal("expected malformed yaml to be rejected")
	}
}

func TestPromptBlock(t *testing.T) {
	kit, err := Parse([]byte(sampleKit))
	if err != nil {
		t.Fatal(err)
	}
	block := kit.PromptBlock()
	for _, want := range []string{"Brand: Acme Coffee", "Competitors: Blue Bottle, Stumptown", "Voice avoid: jargon, hype"} {
		if !strings.Contains(block, want) {
			t.Fatalf("prompt block missing %q:\n%s", want, block)
		}
	}
	if strings.HasSuffix(block, "\n") {
		t.Fatal("trailing newline")
	}

	minimal := Kit{Name: "Solo"}
	if got := minimal.PromptBlock(); got != "Brand: Solo" {
		t.Fatalf("minimal block = %q", got)
	}
}
