// SPDX-License-Identifier: MPL-2.0

package pacman

import (
	"bufio"
	"strings"
)

// Repository is a [name] section of pacman.conf.
type Repository struct {
	Name   string
	Server string
}

// HasRepository reports whether content already declares the section,
// commented-out sections excluded.
func HasRepository(content []byte, name string) bool {
	header := "[" + name + "]"
	sc := bufio.NewScanner(strings.NewReader(string(content)))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == header {
			return true
		}
	}
	return false
}

// EnsureRepository appends repo to content when it is not declared yet.
// changed is false when content already has the section, in which case
// updated is content itself.
func EnsureRepository(content []byte, repo Repository) (updated []byte, changed bool) {
	if HasRepository(content, repo.Name) {
		return content, false
	}

	var sb strings.Builder
	sb.Write(content)
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n[" + repo.Name + "]\n")
	sb.WriteString("Server = " + repo.Server + "\n")

	return []byte(sb.String()), true
}
