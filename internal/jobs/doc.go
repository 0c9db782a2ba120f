// Package jobs runs asynchronous log artifact jobs.
//
// A Manager registers each request in a Store as IN_PROGRESS and queues a
// Worker run on a bounded Pool. The worker pauses, collects the rotated log
// files for the requested date from a LogDir, merges them line by line into
// a single artifact and moves the job to COMPLETED or FAILED. Callers poll
// StatusOf and fetch the file through ArtifactOf once it is complete.
//
// Basic wiring:
//
//	store := jobs.NewStore()
//	pool := jobs.NewPool(cfg.Workers)
//	dir := jobs.NewLogDir(fsys, cfg.LogDir, cfg.FilePrefix)
//	worker := jobs.NewWorker(dir, store, clockwork.NewRealClock(), cfg.StartDelay)
//	mgr := jobs.NewManager(store, worker, pool)
//
//	id, err := mgr.Submit(ctx, "2023-10-27")
package jobs
