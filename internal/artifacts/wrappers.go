// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/zfsbe/zfsbe/pkg/types"

	"mvdan.cc/sh/v3/syntax"
)

//go:embed templates/*.sh.tmpl
var templateFS embed.FS

var wrapperTemplates = template.Must(template.ParseFS(templateFS, "templates/*.sh.tmpl"))

// WrapperData fills the wrapper templates. The values are fallbacks used
// when the generated config cannot be read.
type WrapperData struct {
	ConfigPath  string
	BootEnvTool string
	Signer      string
}

// RenderWrappers renders zbe and zbe-sign. Tool names are inserted into the
// scripts verbatim, so anything a shell would interpret is rejected. Each
// script is parsed as bash before it is returned so a template mistake never
// reaches the host.
func RenderWrappers(data WrapperData) ([]File, error) {
	if data.ConfigPath == "" {
		data.ConfigPath = ConfigPath
	}
	for _, tool := range []string{data.BootEnvTool, data.Signer} {
		if err := types.ToolName(tool).Validate(); err != nil {
			return nil, fmt.Errorf("render wrappers: %w", err)
		}
	}

	specs := []struct {
		tmpl string
		path string
	}{
		{tmpl: "zbe.sh.tmpl", path: BootEnvWrapperPath()},
		{tmpl: "zbe-sign.sh.tmpl", path: SignWrapperPath()},
	}

	files := make([]File, 0, len(specs))
	for _, s := range specs {
		var buf bytes.Buffer
		if err := wrapperTemplates.ExecuteTemplate(&buf, s.tmpl, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", s.path, err)
		}
		if err := ValidateScript(s.path, buf.Bytes()); err != nil {
			return nil, err
		}
		files = append(files, File{Path: s.path, Content: buf.Bytes(), Mode: wrapperMode, Kind: KindWrapper})
	}
	return files, nil
}

// ValidateScript parses content as bash.
func ValidateScript(name string, content []byte) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	if _, err := parser.Parse(bytes.NewReader(content), name); err != nil {
		return fmt.Errorf("invalid shell script %s: %w", name, err)
	}
	return nil
}
