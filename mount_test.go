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
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsStaleMountError(t *testing.T) {
	t.Run("bare ENOTCONN", func(t *testing.T) {
		if !isStaleMountError(syscall.ENOTCONN) {
			t.Errorf("expected ENOTCONN to be treated as stale")
		}
	})

	t.Run("wrapped ENOTCONN", func(t *testing.T) {
		wrapped := fmt.Errorf("mount: %w", syscall.ENOTCONN)
		if !isStaleMountError(wrapped) {
			t.Errorf("expected a wrapped ENOTCONN to be treated as stale")
		}
	})

	t.Run("unrelated error", func(t *testing.T) {
		if isStaleMountError(errors.New("boom")) {
			t.Errorf("expected an unrelated error not to be treated as stale")
		}
	})
}

func TestMountRejectsNonDirectory(t *testing.T) {
	_, _, err := mountKernel("/dev/null", EmptyMountOptions())
	if err == nil {
		t.Fatalf("expected an error mounting onto a non-directory")
	}
	var merr *MountError
	if !errors.As(err, &merr) {
		t.Fatalf("expected a *MountError, got %T: %v", err, err)
	}
	if merr.Kind != MountErrorPath {
		t.Errorf("Kind = %v, want MountErrorPath", merr.Kind)
	}
}
