// Package cron runs the broker's periodic work: queue processing passes
// and printer connectivity checks.
//
// Tasks are plain functions registered under a name with a cron
// expression, either standard 5-field ("*/5 * * * *") or a descriptor
// ("@every 30s"):
//
//	sched := cron.NewScheduler(logger)
//	sched.Register("process-queue", "@every 30s", func(ctx context.Context) error {
//	    _, err := processor.ProcessQueue(ctx)
//	    return err
//	})
//	sched.Start(ctx)
//
// A task still running when its next tick arrives is skipped for that
// tick. [Scheduler.Trigger] runs a task immediately, outside the schedule.
package cron
