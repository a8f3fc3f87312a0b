package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// Names the generated code may never reference, even as bare identifiers.
var blockedNames = map[string]bool{
	"import":  true,
	"eval":    true,
	"exec":    true,
	"compile": true,
	"open":    true,
	"input":   true,
	"os":      true,
	"sys":     true,
	"exit":    true,
	"panic":   true,
	"go":      true,
	"func":    true,
	"http":    true,
	"socket":  true,
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*`)

// Validate runs the static checks every script must pass before a worker
// process is even spawned. Violations are terminal; the orchestrator never
// retries them.
func Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("empty visualization code")
	}
	for _, tok := range identRe.FindAllString(stripStrings(code), -1) {
		root := tok
		if i := strings.Index(tok, "."); i >= 0 {
			root = tok[:i]
		}
		if blockedNames[root] {
			return fmt.Errorf("use of blocked name: %s", root)
		}
	}
	return nil
}

// stripStrings blanks out string literals so their contents can't trip the
// identifier scan.
func stripStrings(code string) string {
	var b strings.Builder
	inString := false
	var quote byte
	for i := 0; i < len(code); i++ {
		c := code[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				inString = false
				b.WriteByte(quote)
			}
			continue
		}
		if c == '"' || c == '\'' {
			inString = true
			quote = c
		}
		b.WriteByte(c)
	}
	return b.String()
}
