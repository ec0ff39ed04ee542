package nameserver

// SelectForPlacement picks the online, non-syncing storage server with the
// fewest files, the name server's load-balancing policy for CREATE (spec.md
// §4.2: "the least-loaded SS by file count, excluding any SS currently
// mid-recovery"). It returns false if no eligible SS exists.
func SelectForPlacement(ring *Ring) (SSInfo, bool) {
	var best SSInfo
	found := false
	for _, info := range ring.Online() {
		if info.Syncing {
			continue
		}
		if !found || info.FileCount < best.FileCount {
			best = info
			found = true
		}
	}
	return best, found
}
