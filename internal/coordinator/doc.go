// Package coordinator is the composition root of the coordination core.
//
// A Coordinator owns one instance of every component (executor registry,
// validation engine, execution wrapper, orchestrator, policy manager, hook
// manager and audit log), built from a single Config. Callers register
// executors, then run tasks or make and execute policy decisions:
//
//	c, err := coordinator.New(coordinator.DefaultConfig(), coordinator.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	e, err := c.NewExecutor("analyst", caps, performer)
//	...
//	res := c.RunTask(ctx, t)
//	d, err := c.Decide(ctx, policy.Context{Goal: "...", Complexity: 6})
//	report := c.Execute(ctx, d)
//
// Reset clears every history and executor load so a process, or a test,
// can start over without rebuilding.
package coordinator
