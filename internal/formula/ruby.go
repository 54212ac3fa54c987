package formula

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports a problem at a specific line of a Ruby formula.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var (
	classLineRe   = regexp.MustCompile(`^class\s+([A-Z][A-Za-z0-9]*)\s*<\s*Formula$`)
	stanzaRe      = regexp.MustCompile(`^([a-z0-9_]+)\s+(.+)$`)
	binInstallRe  = regexp.MustCompile(`^bin\.install\s+(.+)$`)
	defInstallRe  = regexp.MustCompile(`^def\s+install$`)
	rubyStanzaSet = map[string]bool{
		"desc": true, "homepage": true, "url": true, "sha256": true, "license": true, "version": true,
	}
)

type rubyState int

const (
	stateTop rubyState = iota
	stateClass
	stateInstall
	stateDone
)

// ParseRuby reads a Homebrew formula. Only the declarative subset used by
// simple script formulae is understood: metadata stanzas and an install
// method made of bin.install lines.
func ParseRuby(r io.Reader) (*Formula, error) {
	f := &Formula{}
	seen := make(map[string]int)
	state := stateTop
	lineNo := 0

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch state {
		case stateTop:
			m := classLineRe.FindStringSubmatch(line)
			if m == nil {
				return nil, &ParseError{lineNo, fmt.Sprintf("expected formula class declaration, got %q", line)}
			}
			f.Class = m[1]
			state = stateClass

		case stateClass:
			if line == "end" {
				state = stateDone
				continue
			}
			if defInstallRe.MatchString(line) {
				if len(f.Install) > 0 || seen["install"] > 0 {
					return nil, &ParseError{lineNo, "install method defined twice"}
				}
				seen["install"] = lineNo
				state = stateInstall
				continue
			}
			m := stanzaRe.FindStringSubmatch(line)
			if m == nil || !rubyStanzaSet[m[1]] {
				return nil, &ParseError{lineNo, fmt.Sprintf("unsupported statement %q", line)}
			}
			if prev, dup := seen[m[1]]; dup {
				return nil, &ParseError{lineNo, fmt.Sprintf("%s already declared on line %d", m[1], prev)}
			}
			value, rest, err := readRubyString(m[2])
			if err != nil {
				return nil, &ParseError{lineNo, fmt.Sprintf("%s: %v", m[1], err)}
			}
			if !isTrailingComment(rest) {
				return nil, &ParseError{lineNo, fmt.Sprintf("%s: unexpected %q after value", m[1], rest)}
			}
			seen[m[1]] = lineNo
			setStanza(f, m[1], value)

		case stateInstall:
			if line == "end" {
				state = stateClass
				continue
			}
			m := binInstallRe.FindStringSubmatch(line)
			if m == nil {
				return nil, &ParseError{lineNo, fmt.Sprintf("unsupported install step %q", line)}
			}
			actions, err := parseBinInstall(m[1])
			if err != nil {
				return nil, &ParseError{lineNo, err.Error()}
			}
			f.Install = append(f.Install, actions...)

		case stateDone:
			return nil, &ParseError{lineNo, fmt.Sprintf("unexpected %q after end of class", line)}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read formula: %w", err)
	}

	switch state {
	case stateTop:
		return nil, &ParseError{lineNo, "no formula class found"}
	case stateClass, stateInstall:
		return nil, &ParseError{lineNo, "unterminated class body"}
	}

	f.normalize()
	return f, nil
}

func setStanza(f *Formula, key, value string) {
	switch key {
	case "desc":
		f.Desc = value
	case "homepage":
		f.Homepage = value
	case "url":
		f.URL = value
	case "sha256":
		f.SHA256 = value
	case "license":
		f.License = value
	case "version":
		f.Version = value
	}
}

// parseBinInstall handles the argument list of bin.install:
//
//	"a"              -> a installed as a
//	"a", "b"         -> a and b installed under their own names
//	"a" => "b"       -> a installed as b
func parseBinInstall(args string) ([]InstallAction, error) {
	var actions []InstallAction
	rest := args
	for {
		src, after, err := readRubyString(rest)
		if err != nil {
			return nil, fmt.Errorf("bin.install: %w", err)
		}
		action := InstallAction{Dir: DirBin, Source: src}
		after = strings.TrimSpace(after)
		if strings.HasPrefix(after, "=>") {
			target, tail, err := readRubyString(strings.TrimSpace(after[2:]))
			if err != nil {
				return nil, fmt.Errorf("bin.install target: %w", err)
			}
			action.Target = target
			after = strings.TrimSpace(tail)
		}
		actions = append(actions, action)

		if isTrailingComment(after) {
			return actions, nil
		}
		if !strings.HasPrefix(after, ",") {
			return nil, fmt.Errorf("bin.install: unexpected %q", after)
		}
		if action.Target != "" {
			return nil, fmt.Errorf("bin.install: a renamed source must be the only argument")
		}
		rest = strings.TrimSpace(after[1:])
	}
}

// readRubyString reads a single- or double-quoted Ruby string literal from
// the start of s and returns its value and the remaining text.
func readRubyString(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("expected string literal")
	}
	quote := s[0]
	if quote != '"' && quote != '\'' {
		return "", "", fmt.Errorf("expected string literal, got %q", s)
	}

	end := -1
	for i := 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == quote {
			end = i
			break
		}
	}
	if end < 0 {
		return "", "", fmt.Errorf("unterminated string %s", s)
	}

	body := s[1:end]
	rest := s[end+1:]
	if quote == '\'' {
		body = strings.NewReplacer(`\\`, `\`, `\'`, `'`).Replace(body)
		return body, rest, nil
	}
	for i := strings.Index(body, "#{"); i >= 0; {
		if i == 0 || body[i-1] != '\\' {
			return "", "", fmt.Errorf("string interpolation is not supported")
		}
		next := strings.Index(body[i+2:], "#{")
		if next < 0 {
			break
		}
		i += 2 + next
	}
	body = strings.ReplaceAll(body, `\#`, "#")
	value, err := strconv.Unquote(`"` + body + `"`)
	if err != nil {
		return "", "", fmt.Errorf("invalid string %s: %w", s[:end+1], err)
	}
	return value, rest, nil
}

func isTrailingComment(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.HasPrefix(s, "#")
}

// Ruby renders f as a Homebrew formula.
func (f *Formula) Ruby() string {
	var sb strings.Builder
	class := f.Class
	if class == "" {
		class = ClassName(f.Name)
	}
	fmt.Fprintf(&sb, "class %s < Formula\n", class)
	writeStanza(&sb, "desc", f.Desc)
	writeStanza(&sb, "homepage", f.Homepage)
	writeStanza(&sb, "url", f.URL)
	writeStanza(&sb, "version", f.Version)
	writeStanza(&sb, "sha256", f.SHA256)
	writeStanza(&sb, "license", f.License)
	sb.WriteString("  def install\n")
	for _, a := range f.Install {
		if a.Target == "" || a.Target == path.Base(a.Source) {
			fmt.Fprintf(&sb, "    bin.install %s\n", rubyQuote(a.Source))
			continue
		}
		fmt.Fprintf(&sb, "    bin.install %s => %s\n", rubyQuote(a.Source), rubyQuote(a.Target))
	}
	sb.WriteString("  end\n")
	sb.WriteString("end\n")
	return sb.String()
}

func writeStanza(sb *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "  %s %s\n", key, rubyQuote(value))
}

func rubyQuote(s string) string {
	q := strconv.Quote(s)
	// "#{" would start interpolation in Ruby.
	return strings.ReplaceAll(q, "#{", `\#{`)
}
