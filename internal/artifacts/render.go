// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/internal/detect"
)

// Settings are the non-detected values written to the generated config.
type Settings struct {
	BootEnvTool string
	Signer      string
	SecureBoot  bool
	// BootFiles are the absolute bootloader images zbe-sign signs.
	BootFiles    []string
	KernelGlob   string
	BundleOutput string
}

// ConfigKeys lists the generated keys in file order.
var ConfigKeys = []string{
	"ZFSBE_POOL",
	"ZFSBE_ROOT_DATASET",
	"ZFSBE_BE_ROOT",
	"ZFSBE_BOOTLOADER",
	"ZFSBE_ESP",
	"ZFSBE_BE_TOOL",
	"ZFSBE_SIGNER",
	"ZFSBE_SECURE_BOOT",
	"ZFSBE_BOOT_FILES",
	"ZFSBE_KERNEL_GLOB",
	"ZFSBE_BUNDLE_OUTPUT",
}

// ConfigValues maps every key in ConfigKeys to its value.
func ConfigValues(r detect.Resolved, s Settings) map[string]string {
	sb := "0"
	if s.SecureBoot {
		sb = "1"
	}
	return map[string]string{
		"ZFSBE_POOL":          string(r.Pool),
		"ZFSBE_ROOT_DATASET":  string(r.RootDataset),
		"ZFSBE_BE_ROOT":       string(r.BootEnvRoot),
		"ZFSBE_BOOTLOADER":    string(r.Bootloader),
		"ZFSBE_ESP":           string(r.ESP),
		"ZFSBE_BE_TOOL":       s.BootEnvTool,
		"ZFSBE_SIGNER":        s.Signer,
		"ZFSBE_SECURE_BOOT":   sb,
		"ZFSBE_BOOT_FILES":    strings.Join(s.BootFiles, " "),
		"ZFSBE_KERNEL_GLOB":   s.KernelGlob,
		"ZFSBE_BUNDLE_OUTPUT": s.BundleOutput,
	}
}

// RenderConfig produces the generated config. Output depends only on its
// inputs, so re-running install rewrites identical bytes.
func RenderConfig(r detect.Resolved, s Settings) []byte {
	values := ConfigValues(r, s)

	var b strings.Builder
	b.WriteString("# Generated by zfsbe. Do not edit; re-run \"zfsbe install\" instead.\n")
	for _, key := range ConfigKeys {
		fmt.Fprintf(&b, "%s=\"%s\"\n", key, escapeDoubleQuoted(values[key]))
	}
	return []byte(b.String())
}

var dqEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

func escapeDoubleQuoted(s string) string {
	return dqEscaper.Replace(s)
}
