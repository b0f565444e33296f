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

	"taskrt.dev/taskrt/pkg/rt"
	"taskrt.dev/taskrt/pkg/task"
)

// requestID is a task-local value set on the demo's root task, showing
// task.Key in use for something more realistic than a counter. Spawned
// workers do not see it: task-local entries are not inherited.
var requestID = task.NewKey[string]()

type demoCmd struct {
	workers int
}

func (*demoCmd) Name() string     { return "demo" }
func (*demoCmd) Synopsis() string { return "run a small supervised worker tree" }
func (*demoCmd) Usage() string {
	return "demo [-workers N] - spawn N supervised workers under the main task\n"
}

func (c *demoCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.workers, "workers", 3, "number of supervised workers to spawn")
}

func (c *demoCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	ok := task.Root(func(ctx context.Context) {
		self, _ := rt.FromContext(ctx)
		task.Set(self, requestID, "demo-root")

		notify := make(chan task.ExitEvent, c.workers)
		for i := 0; i < c.workers; i++ {
			i := i
			task.NewBuilder().Supervised().NotifyChan(notify).Spawn(ctx, func(ctx context.Context) {
				logrus.WithField("worker", i).Info("worker started")
				task.NonKillable(ctx, func() {
					time.Sleep(10 * time.Millisecond)
				})
				if i == c.workers-1 {
					logrus.WithField("worker", i).Warn("worker failing on purpose")
					task.Fail(ctx)
				}
				logrus.WithField("worker", i).Info("worker exiting cleanly")
			})
		}

		for i := 0; i < c.workers; i++ {
			ev := <-notify
			logrus.WithFields(logrus.Fields{
				"task":   ev.Task,
				"result": ev.Result,
			}).Info("worker exit notification")
		}
	})

	if ok {
		logrus.Info("main task completed successfully")
		return subcommands.ExitSuccess
	}
	logrus.Error("main task failed")
	return subcommands.ExitFailure
}
