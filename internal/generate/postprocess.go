package generate

import (
	"bytes"
	"fmt"
	"path"
)

// Built-in post-generation transforms, addressed by name from manifest
// hooks. They mutate artifacts in place and run sequentially in declared
// order.
var builtinHooks = map[string]func([]Artifact) error{
	"ensure-trailing-newline":   ensureTrailingNewline,
	"strip-trailing-whitespace": stripTrailingWhitespace,
	"make-scripts-executable":   makeScriptsExecutable,
}

func postProcess(artifacts []Artifact, hooks []string) error {
	for _, hook := range hooks {
		fn, ok := builtinHooks[hook]
		if !ok {
			return &PostProcessError{Hook: hook, Cause: fmt.Errorf("unknown hook")}
		}
		if err := fn(artifacts); err != nil {
			return &PostProcessError{Hook: hook, Cause: err}
		}
	}
	return nil
}

func ensureTrailingNewline(artifacts []Artifact) error {
	for i := range artifacts {
		c := artifacts[i].Content
		if len(c) == 0 || c[len(c)-1] != '\n' {
			artifacts[i].Content = append(c, '\n')
		}
	}
	return nil
}

func stripTrailingWhitespace(artifacts []Artifact) error {
	for i := range artifacts {
		lines := bytes.Split(artifacts[i].Content, []byte("\n"))
		for j, line := range lines {
			lines[j] = bytes.TrimRight(line, " \t")
		}
		artifacts[i].Content = bytes.Join(lines, []byte("\n"))
	}
	return nil
}

// makeScriptsExecutable flags shell scripts and Makefiles so the writer
// gives them an executable mode.
func makeScriptsExecutable(artifacts []Artifact) error {
	for i := range artifacts {
		if isScript(artifacts[i].Path) {
			artifacts[i].Executable = true
		}
	}
	return nil
}

func isScript(p string) bool {
	base := path.Base(p)
	if base == "Makefile" || base == "makefile" {
		return true
	}
	switch path.Ext(p) {
	case ".sh", ".bash":
		return true
	}
	return false
}
