// SPDX-License-Identifier: MPL-2.0

package secureboot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/internal/hostexec"

	"github.com/charmbracelet/log"
)

type (
	// Status is the signing tool's view of keys and firmware.
	Status struct {
		Installed  bool     `json:"installed"`
		GUID       string   `json:"guid"`
		SetupMode  bool     `json:"setup_mode"`
		SecureBoot bool     `json:"secure_boot"`
		Vendors    []string `json:"vendors"`
	}

	// VerifyResult is the outcome of "sbctl verify".
	VerifyResult struct {
		Output   string
		Unsigned []string
	}

	// Signer runs the signing tool.
	Signer struct {
		tool   string
		runner hostexec.Runner
		logger *log.Logger
	}
)

// NewSigner creates a Signer for tool, defaulting to sbctl.
func NewSigner(tool string, runner hostexec.Runner, logger *log.Logger) *Signer {
	if tool == "" {
		tool = "sbctl"
	}
	return &Signer{tool: tool, runner: runner, logger: logger}
}

// Tool returns the binary name.
func (s *Signer) Tool() string { return s.tool }

// Status queries key installation and firmware state.
func (s *Signer) Status(ctx context.Context) (Status, error) {
	res, err := s.runner.Run(ctx, s.tool, "status", "--json")
	if err != nil {
		return Status{}, fmt.Errorf("signing status: %w", err)
	}
	var st Status
	if err := json.Unmarshal([]byte(res.Stdout), &st); err != nil {
		return Status{}, fmt.Errorf("parse %s status: %w", s.tool, err)
	}
	return st, nil
}

// CreateKeys generates a new set of Secure Boot keys.
func (s *Signer) CreateKeys(ctx context.Context) error {
	if _, err := s.runner.Run(ctx, s.tool, "create-keys"); err != nil {
		return fmt.Errorf("create keys: %w", err)
	}
	s.logger.Info("created Secure Boot keys")
	return nil
}

// EnrollKeys enrolls the keys into firmware. microsoft also enrolls the
// Microsoft certificates needed by option ROMs and dual boot.
func (s *Signer) EnrollKeys(ctx context.Context, microsoft bool) error {
	args := []string{"enroll-keys"}
	if microsoft {
		args = append(args, "--microsoft")
	}
	if _, err := s.runner.Run(ctx, s.tool, args...); err != nil {
		return fmt.Errorf("enroll keys: %w", err)
	}
	s.logger.Info("enrolled Secure Boot keys", "microsoft", microsoft)
	return nil
}

// Sign signs path in place and records it for re-signing.
func (s *Signer) Sign(ctx context.Context, path string) error {
	if _, err := s.runner.Run(ctx, s.tool, "sign", "-s", path); err != nil {
		return fmt.Errorf("sign %s: %w", path, err)
	}
	s.logger.Info("signed", "path", path)
	return nil
}

// Verify lists files on the ESP and reports the unsigned ones.
func (s *Signer) Verify(ctx context.Context) (VerifyResult, error) {
	res, err := s.runner.Run(ctx, s.tool, "verify")
	out := VerifyResult{Output: res.Stdout, Unsigned: parseUnsigned(res.Stdout)}
	if err != nil {
		return out, fmt.Errorf("verify: %w", err)
	}
	return out, nil
}

func parseUnsigned(out string) []string {
	var unsigned []string
	for _, line := range hostexec.Lines(out) {
		before, _, found := strings.Cut(line, " is not signed")
		if !found {
			continue
		}
		fields := strings.Fields(before)
		if len(fields) > 0 {
			unsigned = append(unsigned, fields[len(fields)-1])
		}
	}
	return unsigned
}

// Bundle builds and signs a unified kernel image at out.
func (s *Signer) Bundle(ctx context.Context, out, kernel, initramfs string) error {
	args := []string{"bundle", "-s"}
	if kernel != "" {
		args = append(args, "-k", kernel)
	}
	if initramfs != "" {
		args = append(args, "-f", initramfs)
	}
	args = append(args, out)
	if _, err := s.runner.Run(ctx, s.tool, args...); err != nil {
		return fmt.Errorf("bundle %s: %w", out, err)
	}
	s.logger.Info("bundled unified kernel image", "path", out)
	return nil
}
