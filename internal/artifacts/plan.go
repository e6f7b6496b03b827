// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/pacman"
)

// Generate renders every file install writes: the config, the wrappers and
// the pacman hooks. The signing hook is only included when Secure Boot
// signing is enabled.
func Generate(r detect.Resolved, s Settings) ([]File, error) {
	files := []File{{
		Path:    ConfigPath,
		Content: RenderConfig(r, s),
		Mode:    fileMode,
		Kind:    KindConfig,
	}}

	wrappers, err := RenderWrappers(WrapperData{
		ConfigPath:  ConfigPath,
		BootEnvTool: s.BootEnvTool,
		Signer:      s.Signer,
	})
	if err != nil {
		return nil, err
	}
	files = append(files, wrappers...)

	files = append(files, File{
		Path:    pacman.SnapshotHookPath(),
		Content: pacman.RenderHook(pacman.SnapshotHook(BootEnvWrapperPath())),
		Mode:    fileMode,
		Kind:    KindHook,
	})
	if s.SecureBoot {
		files = append(files, File{
			Path:    pacman.SignHookPath(),
			Content: pacman.RenderHook(pacman.SignHook(SignWrapperPath(), s.Signer)),
			Mode:    fileMode,
			Kind:    KindHook,
		})
	}

	return files, nil
}
