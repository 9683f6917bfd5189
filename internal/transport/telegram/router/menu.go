package router

import (
	"html"
	"sort"
	"strings"
	"unicode"

	kit "menubot/internal/transport"
)

// sanitizeTelegramCommand converts a command name or alias into a
// Telegram-safe command. Telegram restricts names to [a-z0-9_]{1,32}.
func sanitizeTelegramCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if r == '_' {
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
			continue
		}
		// Common separators become underscores.
		if r == '-' || unicode.IsSpace(r) || r == '/' {
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
			continue
		}
		// drop anything else
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return ""
	}
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	if out == "" {
		return ""
	}
	// Telegram clients generally expect commands to start with a letter.
	if out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
		if len(out) > 32 {
			out = strings.TrimRight(out[:32], "_")
		}
	}
	return out
}

// buildMenuCommands lists the command table for Telegram's command menu,
// sorted by name. Aliases are not listed.
func buildMenuCommands(table map[string]*Command) []kit.BotCommand {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]kit.BotCommand, 0, len(names))
	for _, name := range names {
		desc := strings.ReplaceAll(strings.TrimSpace(table[name].Description), "\n", " ")
		if desc == "" {
			desc = name
		}
		out = append(out, kit.BotCommand{Command: name, Description: desc})
		if len(out) >= 100 {
			break
		}
	}
	return out
}

// helpText renders the command list in HTML parse mode.
func (r *Router) helpText() string {
	r.mu.RLock()
	cmds := buildMenuCommands(r.cmds)
	aliases := map[string][]string{}
	for a, c := range r.alias {
		aliases[c.Name] = append(aliases[c.Name], a)
	}
	r.mu.RUnlock()

	var b strings.Builder
	b.WriteString("<b>Commands</b>\n")
	for _, c := range cmds {
		b.WriteString("/")
		b.WriteString(c.Command)
		if as := aliases[c.Command]; len(as) > 0 {
			sort.Strings(as)
			b.WriteString(" (/")
			b.WriteString(strings.Join(as, ", /"))
			b.WriteString(")")
		}
		b.WriteString(" - ")
		b.WriteString(html.EscapeString(c.Description))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
