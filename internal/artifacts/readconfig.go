// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"bytes"
	"fmt"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// ParseConfig reads KEY="value" assignments from a shell-sourceable file
// without executing it. Statements other than plain assignments are ignored.
func ParseConfig(name string, content []byte) (map[string]string, error) {
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(bytes.NewReader(content), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	values := make(map[string]string)
	for _, stmt := range file.Stmts {
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok || len(call.Args) > 0 {
			continue
		}
		for _, assign := range call.Assigns {
			if assign.Name == nil || assign.Append || assign.Array != nil {
				continue
			}
			if assign.Value == nil {
				values[assign.Name.Value] = ""
				continue
			}
			v, err := expand.Literal(nil, assign.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", name, assign.Name.Value, err)
			}
			values[assign.Name.Value] = v
		}
	}
	return values, nil
}
