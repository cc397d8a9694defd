package runner

import "github.com/prometheus/procfs"

// groupHasRunningMember reports whether pgid has a member that is not a
// zombie. Orphaned descendants are reaped by init, not by us, so a killed
// member can linger as a zombie for a while. ok is false when /proc cannot
// be read.
func groupHasRunningMember(pgid int) (running, ok bool) {
	procs, err := procfs.AllProcs()
	if err != nil {
		return false, false
	}
	for _, p := range procs {
		st, err := p.Stat()
		if err != nil {
			// Exited between listing and reading.
			continue
		}
		if st.PGRP == pgid && st.State != "Z" && st.State != "X" {
			return true, true
		}
	}
	return false, true
}
