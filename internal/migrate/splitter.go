package migrate

import (
	"regexp"
	"strings"
)

// The splitter turns a unit script into individually executable
// statements. It is a two-state machine: in the normal state a
// semicolon terminates a statement; inside a compound body (a trigger
// definition) semicolons belong to the body, which stays one atomic
// statement until its closing END. The scanner also tracks string
// literals and `--` line comments, so neither a quoted semicolon nor
// one inside a comment terminates a statement.

var compoundHeader = regexp.MustCompile(`(?i)^\s*create\s+(temp\s+|temporary\s+)?trigger\b`)

// SplitStatements splits script on statement terminators, keeping
// trigger bodies whole and dropping empty or comment-only fragments.
func SplitStatements(script string) []string {
	var statements []string
	var buf strings.Builder

	inCompound := false
	inString := false
	inComment := false
	var prev rune

	flush := func() {
		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		if stmt != "" && !commentOnly(stmt) {
			statements = append(statements, stmt)
		}
	}

	for _, r := range script {
		if inComment {
			buf.WriteRune(r)
			if r == '\n' {
				inComment = false
			}
			prev = r
			continue
		}
		if !inString && r == '-' && prev == '-' {
			inComment = true
			buf.WriteRune(r)
			prev = r
			continue
		}
		if r == '\'' {
			inString = !inString
		}
		if r != ';' || inString {
			buf.WriteRune(r)
			prev = r
			continue
		}
		prev = r

		// Leading comment lines must not hide a trigger header.
		if !inCompound && compoundHeader.MatchString(stripLeadingComments(buf.String())) {
			inCompound = true
		}

		if inCompound {
			if endsWithEnd(buf.String()) {
				inCompound = false
				flush()
				continue
			}
			// Semicolon inside the trigger body.
			buf.WriteRune(r)
			continue
		}

		flush()
	}
	flush()

	return statements
}

// stripLeadingComments drops blank and `--` comment lines from the
// start of a chunk so header matching sees the first SQL line.
func stripLeadingComments(chunk string) string {
	lines := strings.Split(chunk, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		return strings.Join(lines[i:], "\n")
	}
	return ""
}

// endsWithEnd reports whether the accumulated chunk's last token is
// the END that closes a compound body.
func endsWithEnd(chunk string) bool {
	trimmed := strings.TrimRight(chunk, " \t\r\n")
	if len(trimmed) < 3 {
		return false
	}
	tail := trimmed[len(trimmed)-3:]
	if !strings.EqualFold(tail, "end") {
		return false
	}
	if len(trimmed) == 3 {
		return true
	}
	before := trimmed[len(trimmed)-4]
	return before == ' ' || before == '\t' || before == '\n' || before == '\r'
}

func commentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return false
	}
	return true
}
