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
	"strings"
	"testing"
)

func TestMountOptionsRender(t *testing.T) {
	t.Run("basics", func(t *testing.T) {
		uid := uint32(501)
		gid := uint32(20)
		opts := MountOptions{
			RootMode:           0040755,
			UserID:             &uid,
			GroupID:            &gid,
			DefaultPermissions: true,
			FSName:             "myfs",
		}

		got, err := opts.Render(7)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}

		for _, want := range []string{"fd=7", "rootmode=40755", "user_id=501", "group_id=20", "default_permissions", "fsname=myfs"} {
			if !strings.Contains(got, want) {
				t.Errorf("Render() = %q, want substring %q", got, want)
			}
		}
	})

	t.Run("rejects comma in extra value", func(t *testing.T) {
		opts := MountOptions{Extra: map[string]string{"weird": "a,b"}}

		_, err := opts.Render(0)
		if err == nil {
			t.Fatalf("expected an error, got nil")
		}
		if _, ok := err.(*InvalidOptionError); !ok {
			t.Errorf("expected *InvalidOptionError, got %T", err)
		}
	})

	t.Run("omits unset options", func(t *testing.T) {
		got, err := EmptyMountOptions().Render(0)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if strings.Contains(got, "allow_other") {
			t.Errorf("Render() = %q, did not expect allow_other", got)
		}
	})

	t.Run("Render omits helper-only flags", func(t *testing.T) {
		opts := MountOptions{NonEmpty: true, Nosuid: true, Nodev: true, Noexec: true, Noatime: true}

		got, err := opts.Render(0)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		for _, unwanted := range []string{"nonempty", "nosuid", "nodev", "noexec", "noatime"} {
			if strings.Contains(got, unwanted) {
				t.Errorf("Render() = %q, did not expect kernel data string to contain %q", got, unwanted)
			}
		}
	})

	t.Run("RenderHelper includes nonempty and the no* flags", func(t *testing.T) {
		opts := MountOptions{NonEmpty: true, Nosuid: true, Nodev: true, Noexec: true, Noatime: true}

		got, err := opts.RenderHelper(0)
		if err != nil {
			t.Fatalf("RenderHelper: %v", err)
		}
		for _, want := range []string{"nonempty", "nosuid", "nodev", "noexec", "noatime"} {
			if !strings.Contains(got, want) {
				t.Errorf("RenderHelper() = %q, want substring %q", got, want)
			}
		}
	})
}

func TestMountOptionsCombine(t *testing.T) {
	a := MountOptions{AllowOther: true, FSName: "a"}
	b := MountOptions{AutoUnmount: true, FSName: "b"}

	out := a.Combine(b)

	if !out.AllowOther || !out.AutoUnmount {
		t.Errorf("Combine() = %+v, want both bools set", out)
	}
	if out.FSName != "b" {
		t.Errorf("Combine().FSName = %q, want %q (other wins)", out.FSName, "b")
	}
}

func TestMountOptionsWithDefaults(t *testing.T) {
	out := EmptyMountOptions().WithDefaults()

	if out.UserID == nil || out.GroupID == nil {
		t.Fatalf("WithDefaults() left UserID/GroupID nil: %+v", out)
	}
	if out.RootMode == 0 {
		t.Errorf("WithDefaults() left RootMode zero")
	}
}
