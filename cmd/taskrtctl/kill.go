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

package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"taskrt.dev/taskrt/pkg/task"
)

// killCmd demonstrates linked failure: one sibling failing kills every
// other linked sibling, but leaves an unlinked bystander running.
type killCmd struct{}

func (*killCmd) Name() string     { return "kill-demo" }
func (*killCmd) Synopsis() string { return "show linked failure propagation" }
func (*killCmd) Usage() string {
	return "kill-demo - spawn linked siblings, fail one, watch the rest die\n"
}
func (*killCmd) SetFlags(*flag.FlagSet) {}

func (*killCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	bystanderDone := make(chan struct{})

	ok := task.Root(func(ctx context.Context) {
		task.SpawnUnlinked(ctx, func(ctx context.Context) {
			defer close(bystanderDone)
			<-time.After(20 * time.Millisecond)
			logrus.Info("unlinked bystander finished, unaffected by its siblings")
		})

		for i := 0; i < 3; i++ {
			i := i
			task.Spawn(ctx, func(ctx context.Context) {
				if i == 0 {
					logrus.Info("sibling 0 failing")
					task.Fail(ctx)
					return
				}
				deadline := time.Now().Add(50 * time.Millisecond)
				for time.Now().Before(deadline) {
					task.Yield(ctx)
				}
				logrus.WithField("sibling", i).Warn("sibling survived to the deadline (should not happen)")
			})
		}

		// Kills are observed at yield points: yield until the failure of
		// sibling 0 reaches the main task too.
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			task.Yield(ctx)
		}
	})

	<-bystanderDone
	if ok {
		logrus.Error("main task should have failed when its linked child failed")
		return subcommands.ExitFailure
	}
	logrus.Info("main task failed as expected, linked failure propagated")
	return subcommands.ExitSuccess
}
