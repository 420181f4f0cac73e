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

// A simple tool for mounting hellofs at a given directory.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/jacobsa/timeutil"

	fuse "github.com/go-fuse/corefuse"
	"github.com/go-fuse/corefuse/samples/hellofs"
)

var fMountPoint = flag.String("mount_point", "", "Path to mount point.")
var fDebug = flag.Bool("debug", false, "Enable debug logging.")

func main() {
	flag.Parse()

	if *fMountPoint == "" {
		log.Fatalf("You must set --mount_point.")
	}

	fs := hellofs.New(timeutil.RealClock())

	cfg := fuse.MountConfig{}
	if *fDebug {
		cfg.DebugLogger = log.New(os.Stderr, "fuse: ", 0)
	}

	opts := fuse.EmptyMountOptions()
	opts.FSName = "hellofs"

	session, err := fuse.Mount(*fMountPoint, fs, opts, cfg)
	if err != nil {
		log.Fatalf("Mount: %v", err)
	}

	if err := session.Run(); err != nil {
		log.Fatalf("Run: %v", err)
	}
}
