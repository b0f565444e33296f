// Copyright 2018 The gVisor Authors.
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

// Package rt implements the primitive task boundary that the rest of
// taskrt treats as an external collaborator: opaque task handles, kill
// signalling, cooperative yield points, and the inhibit-kill/inhibit-yield
// critical-section counters. Everything above this package only talks to
// tasks through the narrow interface defined here.
//
// There is no underlying OS-level green-thread runtime to bind to, so this
// package plays that role itself, on top of goroutines: a Task is one
// goroutine plus the bookkeeping needed to kill it cooperatively.
package rt
