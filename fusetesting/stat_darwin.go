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

package fusetesting

import (
	"fmt"
	"syscall"
	"time"

	"github.com/jacobsa/oglematchers"
)

func extractMtime(sys interface{}) (mtime time.Time, ok bool) {
	stat, ok := sys.(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(stat.Mtimespec.Sec, stat.Mtimespec.Nsec), true
}

// BirthtimeIs matches os.FileInfo values whose underlying stat_t reports
// the given birth time, the one field Darwin's stat(2) has that Linux's
// doesn't.
func BirthtimeIs(expected time.Time) oglematchers.Matcher {
	return oglematchers.NewMatcher(
		func(c interface{}) error { return birthtimeIs(c, expected) },
		fmt.Sprintf("birthtime is %v", expected))
}

func birthtimeIs(c interface{}, expected time.Time) error {
	fi, ok := c.(interface{ Sys() interface{} })
	if !ok {
		return fmt.Errorf("which does not expose Sys()")
	}

	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("which has no *syscall.Stat_t Sys() value")
	}

	got := time.Unix(stat.Birthtimespec.Sec, stat.Birthtimespec.Nsec)
	if got != expected {
		return fmt.Errorf("which has birthtime %v, off by %v", got, got.Sub(expected))
	}

	return nil
}
