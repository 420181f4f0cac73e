// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fuse

import (
	"fmt"
	"os"
	"strings"
)

// MountOptions is the set of kernel-visible options sent as the `-o` string
// to the mount(2) syscall or the fusermount helper: the data= argument to
// the VFS, not behavioral toggles of this library (those live on
// MountConfig alongside the loggers).
//
// Values are accumulated with Combine rather than set on a shared struct
// directly so that a caller can build a partial option set, merge it with
// another, and finish with WithDefaults without the pieces stepping on one
// another's zero values.
type MountOptions struct {
	RootMode          uint32
	DefaultPermissions bool
	AllowOther        bool
	AutoUnmount       bool
	NonEmpty          bool

	UserID  *uint32
	GroupID *uint32

	FSName  string
	Subtype string

	Nosuid  bool
	Nodev   bool
	Noexec  bool
	Noatime bool

	// Extra carries any option this type doesn't model explicitly, for
	// forward compatibility with kernel options added after this library.
	Extra map[string]string
}

// EmptyMountOptions returns the zero-value option set: no kernel options
// beyond whatever WithDefaults later fills in.
func EmptyMountOptions() MountOptions {
	return MountOptions{}
}

// Combine merges other into the receiver, producing a new MountOptions.
// Boolean options OR together; other's FSName/Subtype/RootMode/UserID/
// GroupID win when set (non-zero/non-nil), so combining is associative but
// not commutative for scalar fields — later arguments take precedence,
// mirroring how repeated `-o` flags on a real mount command line behave.
func (m MountOptions) Combine(other MountOptions) MountOptions {
	out := m

	out.DefaultPermissions = m.DefaultPermissions || other.DefaultPermissions
	out.AllowOther = m.AllowOther || other.AllowOther
	out.AutoUnmount = m.AutoUnmount || other.AutoUnmount
	out.NonEmpty = m.NonEmpty || other.NonEmpty
	out.Nosuid = m.Nosuid || other.Nosuid
	out.Nodev = m.Nodev || other.Nodev
	out.Noexec = m.Noexec || other.Noexec
	out.Noatime = m.Noatime || other.Noatime

	if other.RootMode != 0 {
		out.RootMode = other.RootMode
	}
	if other.UserID != nil {
		out.UserID = other.UserID
	}
	if other.GroupID != nil {
		out.GroupID = other.GroupID
	}
	if other.FSName != "" {
		out.FSName = other.FSName
	}
	if other.Subtype != "" {
		out.Subtype = other.Subtype
	}

	if len(other.Extra) > 0 {
		merged := make(map[string]string, len(m.Extra)+len(other.Extra))
		for k, v := range m.Extra {
			merged[k] = v
		}
		for k, v := range other.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}

	return out
}

// WithDefaults fills in the fields the kernel requires on every mount
// (user_id, group_id, rootmode) from the calling process when the caller
// left them unset, mirroring the missing_default step every mount driver
// in the corpus performs before formatting the options string.
func (m MountOptions) WithDefaults() MountOptions {
	out := m

	if out.UserID == nil {
		uid := uint32(os.Getuid())
		out.UserID = &uid
	}
	if out.GroupID == nil {
		gid := uint32(os.Getgid())
		out.GroupID = &gid
	}
	if out.RootMode == 0 {
		out.RootMode = 0040755
	}

	return out
}

// Render formats the option set as the mount(2) data argument: only the
// keys the in-kernel fuse option parser recognizes (fd, rootmode, user_id,
// group_id, default_permissions, allow_other, auto_unmount, fsname,
// subtype, plus Extra). nosuid/nodev/noexec/noatime/nonempty are not
// kernel data-string keys on the direct path (they're applied there as
// MS_* mount(2) flags instead, see directMount); use RenderHelper to get
// those rendered into the fusermount `-o` string, where fusermount itself
// is what turns them into mount flags.
func (m MountOptions) Render(fd uintptr) (string, error) {
	return m.render(fd, false)
}

// RenderHelper formats the option set as the `-o` string passed to an
// external mount helper (fusermount/fusermount3, or macOS's
// mount_osxfusefs), which additionally understands
// nosuid/nodev/noexec/noatime/nonempty as option keys it translates into
// mount(2) flags (or, for nonempty, a check it performs itself) before
// calling mount(2) with its own setuid privilege. fd is whatever
// descriptor the helper will see the kernel side on (0 if the helper
// assigns its own and the caller strips the fd= key afterward, as
// fusermount does).
func (m MountOptions) RenderHelper(fd uintptr) (string, error) {
	return m.render(fd, true)
}

func (m MountOptions) render(fd uintptr, forHelper bool) (string, error) {
	pairs := []struct {
		key, value string
		hasValue   bool
	}{
		{"fd", fmt.Sprintf("%d", fd), true},
		{"rootmode", fmt.Sprintf("%o", m.RootMode), true},
	}

	if m.UserID != nil {
		pairs = append(pairs, struct {
			key, value string
			hasValue   bool
		}{"user_id", fmt.Sprintf("%d", *m.UserID), true})
	}
	if m.GroupID != nil {
		pairs = append(pairs, struct {
			key, value string
			hasValue   bool
		}{"group_id", fmt.Sprintf("%d", *m.GroupID), true})
	}
	if m.DefaultPermissions {
		pairs = append(pairs, struct {
			key, value string
			hasValue   bool
		}{"default_permissions", "", false})
	}
	if m.AllowOther {
		pairs = append(pairs, struct {
			key, value string
			hasValue   bool
		}{"allow_other", "", false})
	}
	if m.AutoUnmount {
		pairs = append(pairs, struct {
			key, value string
			hasValue   bool
		}{"auto_unmount", "", false})
	}
	if m.FSName != "" {
		pairs = append(pairs, struct {
			key, value string
			hasValue   bool
		}{"fsname", m.FSName, true})
	}
	if m.Subtype != "" {
		pairs = append(pairs, struct {
			key, value string
			hasValue   bool
		}{"subtype", m.Subtype, true})
	}

	if forHelper {
		if m.NonEmpty {
			pairs = append(pairs, struct {
				key, value string
				hasValue   bool
			}{"nonempty", "", false})
		}
		if m.Nosuid {
			pairs = append(pairs, struct {
				key, value string
				hasValue   bool
			}{"nosuid", "", false})
		}
		if m.Nodev {
			pairs = append(pairs, struct {
				key, value string
				hasValue   bool
			}{"nodev", "", false})
		}
		if m.Noexec {
			pairs = append(pairs, struct {
				key, value string
				hasValue   bool
			}{"noexec", "", false})
		}
		if m.Noatime {
			pairs = append(pairs, struct {
				key, value string
				hasValue   bool
			}{"noatime", "", false})
		}
	}

	for k, v := range m.Extra {
		pairs = append(pairs, struct {
			key, value string
			hasValue   bool
		}{k, v, true})
	}

	var b strings.Builder
	for i, p := range pairs {
		if strings.ContainsAny(p.key, ",\x00") || strings.ContainsAny(p.value, ",\x00") {
			return "", &InvalidOptionError{Key: p.key, Value: p.value}
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.key)
		if p.hasValue && p.value != "" {
			b.WriteByte('=')
			b.WriteString(p.value)
		}
	}

	return b.String(), nil
}

// InvalidOptionError reports a mount option whose key or value cannot be
// represented in the comma-separated wire format.
type InvalidOptionError struct {
	Key   string
	Value string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("mount option %q=%q contains a comma or NUL byte", e.Key, e.Value)
}
