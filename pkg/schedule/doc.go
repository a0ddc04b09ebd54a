// Package schedule runs engine passes on a cron schedule.
//
// The Runner supplies the pass; typically it creates a fresh state from a
// seed, processes it and reports the results. Ticks that arrive while a
// pass is still running are skipped.
//
//	s, err := schedule.New(&schedule.Config{
//	    Cron:       "@every 5m",
//	    RunOnStart: true,
//	}, runner, logger)
//	if err != nil {
//	    return err
//	}
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	<-ctx.Done()
//	s.Stop()
package schedule
