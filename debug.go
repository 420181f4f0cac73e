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
	"flag"
	"io"
	"io/ioutil"
	"log"
	"os"
	"sync"
)

var fEnableDebug = flag.Bool(
	"fuse.debug",
	false,
	"Write FUSE debugging messages to stderr.")

var gDebugLogger *log.Logger
var gErrorLogger *log.Logger
var gLoggerOnce sync.Once

func initLoggers() {
	var debugWriter io.Writer = ioutil.Discard
	if flag.Parsed() && *fEnableDebug {
		debugWriter = os.Stderr
	}

	const flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	gDebugLogger = log.New(debugWriter, "fuse: ", flags)
	gErrorLogger = log.New(os.Stderr, "fuse: ", flags)
}

// defaultDebugLogger returns the package-wide debug logger gated by the
// -fuse.debug flag, used by Mount when a MountConfig supplies no
// DebugLogger of its own. Unlike the teacher's single global logger, a
// caller that does pass its own loggers in MountConfig never touches this
// one at all.
func defaultDebugLogger() *log.Logger {
	gLoggerOnce.Do(initLoggers)
	return gDebugLogger
}

// defaultErrorLogger returns the package-wide error logger, always writing
// to stderr regardless of the -fuse.debug flag (errors are never expected
// to be silenced the way routine debug chatter is).
func defaultErrorLogger() *log.Logger {
	gLoggerOnce.Do(initLoggers)
	return gErrorLogger
}
