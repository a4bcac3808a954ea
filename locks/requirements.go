package locks

import (
	"regexp"
	"strings"
)

// AppendNodeps appends requirement lines that should reach the lock without
// having their own dependencies solved. Comment and blank lines are skipped.
func AppendNodeps(compiled, nodeps string) string {
	lines := []string{strings.TrimRight(compiled, "\n")}
	for _, line := range strings.Split(nodeps, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n"
}

// Exclude drops every line whose requirement name matches name, so an
// additive install leaves the named tool untouched.
func Exclude(content, name string) string {
	var kept []string
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		if requirementName(line) == normalizeName(name) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n") + "\n"
}

// requirementName extracts the normalized project name from a requirement
// line, or "" for comments and blanks.
func requirementName(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	end := len(line)
	for i, r := range line {
		if strings.ContainsRune(" [=~><!@;", r) {
			end = i
			break
		}
	}
	return normalizeName(line[:end])
}

// normalizeName folds case and separator per the PEP 503 naming rules.
func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

// dependencyPattern matches a pinned dependency in requirements or
// pyproject.toml form, quoted or bare, capturing its specifier detail and
// version.
func dependencyPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(
		`(?m)^(?P<pre>\s*")?` + regexp.QuoteMeta(name) +
			`(?P<detail>(?:\[[^\]]*\])?[=~><]=)(?P<version>[^\n"]+?)(?P<post>",?)?$`,
	)
}

// SyncPaired rewrites the dst dependency's pin to track the src dependency's
// pinned version, maintaining coupled releases such as pandas and
// pandas-stubs. A missing src pin leaves the content unchanged.
func SyncPaired(content, src, dst string) string {
	srcPattern := dependencyPattern(src)
	match := srcPattern.FindStringSubmatch(content)
	if match == nil {
		return content
	}
	version := match[srcPattern.SubexpIndex("version")]
	return dependencyPattern(dst).ReplaceAllString(
		content,
		"${pre}"+dst+"${detail}"+version+"${post}",
	)
}

// pinnedPattern matches a commit-pinned requirement such as
// name @ git+https://github.com/org/name@<commit>, quoted or bare.
func pinnedPattern(name string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(name)
	return regexp.MustCompile(
		`(?m)^(?P<pre>\s*"?` + quoted + ` @ git\+https://github\.com/[^/\n]+/` + quoted + `@)` +
			`(?P<commit>[^\n"]+?)(?P<post>",?)?$`,
	)
}

// SyncPinned rewrites a commit-pinned requirement to the given commit,
// keeping submodule-sourced dependencies on the submodule's tracked commit.
func SyncPinned(content, name, commit string) string {
	return pinnedPattern(name).ReplaceAllString(content, "${pre}"+commit+"${post}")
}
