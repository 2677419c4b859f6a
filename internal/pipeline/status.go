package pipeline

import (
	"reframe/internal/job"
	"reframe/internal/ledger"
)

// Status is the on-disk view of a job without running it.
type Status struct {
	Identity    job.Identity
	State       job.State
	Frames      int
	Done        int
	Outstanding int
	Locked      bool
}

// Status inspects the work directory for (subject, target). It takes no lock
// and creates nothing.
func (r *Runner) Status(subject, target string) (Status, error) {
	id, err := job.Resolve(r.cfg.Paths.WorkDir, subject, target)
	if err != nil {
		return Status{}, err
	}
	return r.StatusOf(id)
}

// StatusOf inspects an already resolved job.
func (r *Runner) StatusOf(id job.Identity) (Status, error) {
	st := Status{Identity: id}
	state, err := job.DetectState(id.WorkDir)
	if err != nil {
		return st, err
	}
	st.State = state
	if st.Locked, err = job.Held(id.WorkDir); err != nil {
		return st, err
	}
	if state == job.Fresh {
		return st, nil
	}
	done, err := ledger.Load(id.WorkDir)
	if err != nil {
		return st, err
	}
	all, err := r.deps.Frames.List(id.WorkDir, nil)
	if err != nil {
		return st, err
	}
	outstanding, err := r.deps.Frames.List(id.WorkDir, done)
	if err != nil {
		return st, err
	}
	st.Frames = len(all)
	st.Outstanding = len(outstanding)
	st.Done = st.Frames - st.Outstanding
	return st, nil
}
