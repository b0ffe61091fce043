// Package catalog renders the command listing: which commands and plugin
// capabilities exist and whether each is enabled in the current environment.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/pkg/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Format selects the catalog rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatMarkdown, FormatText, FormatJSON, FormatYAML}

// ParseFormat validates a format name. Empty means markdown.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatMarkdown, nil
	}
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want markdown, text, json or yaml)", s)
}

var categoryTitles = map[string]string{
	command.CategoryFile:  "File Operations",
	command.CategoryGit:   "Git Operations",
	command.CategoryShell: "Execute Code",
	command.CategoryTask:  "Task Statuses",
}

// Title returns the heading for a category or plugin name.
func Title(name string) string {
	if t, ok := categoryTitles[name]; ok {
		return t
	}
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	caser := cases.Title(language.Und, cases.NoLower)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// Filter keeps the commands whose category or plugin equals name.
func Filter(infos []types.CommandInfo, name string) []types.CommandInfo {
	if name == "" {
		return infos
	}
	var out []types.CommandInfo
	for _, info := range infos {
		if strings.EqualFold(info.Category, name) || strings.EqualFold(info.Plugin, name) {
			out = append(out, info)
		}
	}
	return out
}

// Render writes infos to w. infos are expected in catalog order.
func Render(w io.Writer, infos []types.CommandInfo, f Format) error {
	switch f {
	case FormatMarkdown, "":
		_, err := io.WriteString(w, Markdown(infos))
		return err
	case FormatText:
		_, err := io.WriteString(w, Text(infos))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nonNil(infos))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(nonNil(infos)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", f)
}

func nonNil(infos []types.CommandInfo) []types.CommandInfo {
	if infos == nil {
		return []types.CommandInfo{}
	}
	return infos
}

type section struct {
	title string
	items []types.CommandInfo
}

// group splits infos into built-in category sections and plugin sections,
// preserving order.
func group(infos []types.CommandInfo) (builtin, plugins []*section) {
	index := map[string]*section{}
	for _, info := range infos {
		key, list := info.Category, &builtin
		if info.Plugin != "" {
			key, list = "plugin:"+info.Plugin, &plugins
		}
		s, ok := index[key]
		if !ok {
			title := Title(info.Category)
			if info.Plugin != "" {
				title = Title(info.Plugin)
			}
			s = &section{title: title}
			index[key] = s
			*list = append(*list, s)
		}
		s.items = append(s.items, info)
	}
	return builtin, plugins
}

// Line renders one checklist entry.
func Line(info types.CommandInfo) string {
	var sb strings.Builder
	if info.Enabled {
		sb.WriteString("- [x] ")
	} else {
		sb.WriteString("- [ ] ")
	}
	fmt.Fprintf(&sb, "%s: %s", info.Name, info.Label)
	if sig := info.Signature(); sig != "" {
		fmt.Fprintf(&sb, " (args: %s)", sig)
	}
	if !info.Enabled && info.DisabledFor != "" {
		fmt.Fprintf(&sb, " _(env disabled: %s)_", info.DisabledFor)
	}
	return sb.String()
}

// Markdown renders the checklist document.
func Markdown(infos []types.CommandInfo) string {
	builtin, plugins := group(infos)

	var sb strings.Builder
	sb.WriteString("# Commands\n")
	for _, s := range builtin {
		fmt.Fprintf(&sb, "\n## %s\n\n", s.title)
		for _, info := range s.items {
			sb.WriteString(Line(info) + "\n")
		}
	}
	if len(plugins) > 0 {
		sb.WriteString("\n## Plugins\n")
		for _, s := range plugins {
			fmt.Fprintf(&sb, "\n### %s\n\n", s.title)
			for _, info := range s.items {
				sb.WriteString(Line(info) + "\n")
			}
		}
	}
	return sb.String()
}

var (
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9D61FF"))
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	reasonStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Italic(true)
	nameStyle     = lipgloss.NewStyle().Bold(true)
)

// Text renders a styled terminal listing with aligned names.
func Text(infos []types.CommandInfo) string {
	builtin, plugins := group(infos)

	width := 0
	for _, info := range infos {
		width = max(width, len(info.Name))
	}
	nameCol := nameStyle.Width(width + 2)

	var sb strings.Builder
	write := func(s *section) {
		sb.WriteString(headingStyle.Render(s.title) + "\n")
		for _, info := range s.items {
			status := enabledStyle.Render("✓")
			if !info.Enabled {
				status = disabledStyle.Render("✗")
			}
			line := lipgloss.JoinHorizontal(lipgloss.Top,
				"  ", status, " ", nameCol.Render(info.Name), info.Label)
			if !info.Enabled && info.DisabledFor != "" {
				line += " " + reasonStyle.Render("("+info.DisabledFor+")")
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}
	for _, s := range builtin {
		write(s)
	}
	for _, s := range plugins {
		s.title = "Plugin: " + s.title
		write(s)
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
