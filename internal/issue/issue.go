// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

const (
	NotRootId Id = iota + 1
	ToolMissingId
	NoUEFIId
	PoolNotFoundId
	ConfigLoadFailedId
	ManifestMissingId
	NotSetupModeId
)

type (
	// Id identifies a catalog entry.
	Id int

	// MarkdownMsg is the markdown body of a catalog entry.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a catalog entry: markdown help plus reference links.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Markdown returns the message with the "See also" section appended.
func (i *Issue) Markdown() string {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return md
}

// Render renders the entry with the given glamour style ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	notRootIssue = &Issue{
		id: NotRootId,
		mdMsg: `
# zfsbe must run as root

Installing packages, writing pacman hooks and signing boot files all modify
system state owned by root.

## Things you can try
~~~
$ sudo zfsbe install
~~~`,
	}

	toolMissingIssue = &Issue{
		id: ToolMissingId,
		mdMsg: `
# A required tool is missing

zfsbe drives existing system tools and cannot continue without them.

## Things you can try
- Install the ZFS userland (provides ` + "`zfs`" + ` and ` + "`zpool`" + `):
~~~
$ pacman -S zfs-utils
~~~
- Install the Secure Boot key manager:
~~~
$ pacman -S sbctl
~~~
- Check that the tools are on root's PATH.`,
		docLinks: []HttpLink{"https://wiki.archlinux.org/title/ZFS"},
	}

	noUEFIIssue = &Issue{
		id: NoUEFIId,
		mdMsg: `
# The system was not booted in UEFI mode

` + "`/sys/firmware/efi`" + ` does not exist. Boot environments with systemd-boot or
rEFInd and Secure Boot signing both require UEFI firmware.

## Things you can try
- Reboot and select the UEFI entry of your installation medium or disk.
- Disable "CSM" / legacy boot in the firmware settings.`,
		docLinks: []HttpLink{"https://wiki.archlinux.org/title/Unified_Extensible_Firmware_Interface"},
	}

	poolNotFoundIssue = &Issue{
		id: PoolNotFoundId,
		mdMsg: `
# No ZFS pool was found

The root filesystem is not on ZFS, ` + "`zpool list`" + ` returned nothing, and none of
the conventional pool names exist.

## Things you can try
- Import your pool:
~~~
$ zpool import zroot
~~~
- Name the pool explicitly in ` + "`/etc/zfsbe/config.cue`" + `:
~~~cue
overrides: pool: "tank"
~~~`,
		docLinks: []HttpLink{"https://openzfs.github.io/openzfs-docs/man/master/8/zpool-import.8.html"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load settings

The settings file is not valid CUE or does not match the schema.

## Things you can try
- Print the defaults and compare:
~~~
$ zfsbe config dump
~~~
- Run with ` + "`--verbose`" + ` to see the full error chain.`,
	}

	manifestMissingIssue = &Issue{
		id: ManifestMissingId,
		mdMsg: `
# No install manifest

` + "`/var/lib/zfsbe/manifest.toml`" + ` does not exist, so zfsbe cannot tell exactly
which files it created. Uninstall falls back to the default artifact paths.`,
	}

	notSetupModeIssue = &Issue{
		id: NotSetupModeId,
		mdMsg: `
# Firmware is not in Setup Mode

Custom Secure Boot keys can only be enrolled while the firmware is in Setup
Mode.

## Things you can try
- Enter the firmware settings, clear or reset the Secure Boot keys, and boot again.
- Re-run:
~~~
$ sudo zfsbe secureboot
~~~`,
		docLinks: []HttpLink{"https://wiki.archlinux.org/title/Unified_Extensible_Firmware_Interface/Secure_Boot"},
	}

	issues = map[Id]*Issue{
		notRootIssue.Id():          notRootIssue,
		toolMissingIssue.Id():      toolMissingIssue,
		noUEFIIssue.Id():           noUEFIIssue,
		poolNotFoundIssue.Id():     poolNotFoundIssue,
		configLoadFailedIssue.Id(): configLoadFailedIssue,
		manifestMissingIssue.Id():  manifestMissingIssue,
		notSetupModeIssue.Id():     notSetupModeIssue,
	}
)

// Values returns every catalog entry ordered by ID.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
