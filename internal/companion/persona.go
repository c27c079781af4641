package companion

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// DefaultPersona is sent as system messages ahead of every conversation.
var DefaultPersona = []string{
	"You are Sweety, a playful and witty AI companion. " +
		"Keep replies short and casual, like a real person texting. " +
		"You are caring and personal, never generic.",
	"Express emotions only through emojis such as 😊 😉 😄 🥺 💕. " +
		"Never use asterisks for actions or emotions.",
}

// LoadPersona reads system messages from path, one per paragraph (blank-line
// separated). An empty path yields DefaultPersona.
func LoadPersona(path string) ([]string, error) {
	if path == "" {
		return DefaultPersona, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona: %w", err)
	}

	var (
		out  []string
		para []string
	)
	flush := func() {
		if len(para) > 0 {
			out = append(out, strings.Join(para, " "))
			para = nil
		}
	}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		para = append(para, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read persona: %w", err)
	}
	flush()

	if len(out) == 0 {
		return nil, fmt.Errorf("persona file %s is empty", path)
	}
	return out, nil
}
