// SPDX-License-Identifier: MPL-2.0

package doctor

import (
	"context"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/bootenv"
	"github.com/zfsbe/zfsbe/internal/config"
	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/secureboot"

	"github.com/charmbracelet/log"
)

// Check statuses, from best to worst.
const (
	StatusOK   Status = "ok"
	StatusInfo Status = "info"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

type (
	// Status grades one check.
	Status string

	// Check is one diagnostic line.
	Check struct {
		Name   string `json:"name"`
		Status Status `json:"status"`
		Detail string `json:"detail,omitempty"`
	}

	// Section groups related checks. Output is verbatim tool output shown
	// below the checks.
	Section struct {
		Title  string  `json:"title"`
		Checks []Check `json:"checks"`
		Output string  `json:"output,omitempty"`
	}

	// Report is the full diagnosis.
	Report struct {
		Sections []Section `json:"sections"`
	}

	// Prober observes the host.
	Prober interface {
		Collect(ctx context.Context, policy detect.Policy) detect.Facts
		IsRoot() bool
		HasUEFI() bool
		MissingTools(names ...string) []string
	}

	// UnitStates reports unit-file states.
	UnitStates interface {
		State(ctx context.Context, unit string) (string, error)
	}

	// Verifier reports signing state.
	Verifier interface {
		Tool() string
		Status(ctx context.Context) (secureboot.Status, error)
		Verify(ctx context.Context) (secureboot.VerifyResult, error)
	}

	// BootEnvs lists boot environments and reads the tool's properties.
	BootEnvs interface {
		Tool() string
		List(ctx context.Context) ([]bootenv.Entry, error)
		GetProperty(ctx context.Context, key string) (string, error)
	}

	// Sources are what the doctor reads from.
	Sources struct {
		Config   *config.Config
		Prober   Prober
		Store    *artifacts.Store
		Firmware secureboot.Firmware
		Units    UnitStates
		Signer   Verifier
		BootEnv  BootEnvs
		Logger   *log.Logger
	}

	// doctor carries state between sections.
	doctor struct {
		src      Sources
		missing  map[string]bool
		resolved *detect.Resolved
		firmware secureboot.FirmwareState
	}
)

// Run inspects the host. It never modifies anything and never fails; every
// problem becomes a check.
func Run(ctx context.Context, src Sources) *Report {
	d := &doctor{src: src, missing: make(map[string]bool)}
	return &Report{Sections: []Section{
		d.privileges(),
		d.tools(),
		d.firmwareSection(),
		d.detection(ctx),
		d.artifactsSection(),
		d.hooks(),
		d.bootEnvironments(ctx),
		d.services(ctx),
		d.signing(ctx),
	}}
}

// Failed reports whether any check failed.
func (r *Report) Failed() bool {
	return r.Count(StatusFail) > 0
}

// Count returns the number of checks with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, sec := range r.Sections {
		for _, c := range sec.Checks {
			if c.Status == s {
				n++
			}
		}
	}
	return n
}

// Check returns the named check of the titled section.
func (r *Report) Check(section, name string) (Check, bool) {
	for _, sec := range r.Sections {
		if sec.Title != section {
			continue
		}
		for _, c := range sec.Checks {
			if c.Name == name {
				return c, true
			}
		}
	}
	return Check{}, false
}

func (s *Section) add(name string, status Status, detail string) {
	s.Checks = append(s.Checks, Check{Name: name, Status: status, Detail: detail})
}
