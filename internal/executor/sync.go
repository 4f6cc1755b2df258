package executor

import "sort"

// RepairActionType names a synchronizer repair.
type RepairActionType string

const (
	// RepairRemovedOrphan removed an executed-phase marker that had no
	// corresponding history record.
	RepairRemovedOrphan RepairActionType = "removed_orphan"
	// RepairAddedMissing added an executed-phase marker for a phase present
	// in the history but missing from the set.
	RepairAddedMissing RepairActionType = "added_missing"
)

// RepairAction records one repair the synchronizer performed.
type RepairAction struct {
	Phase  int              `json:"phase"`
	Action RepairActionType `json:"action"`
}

// synchronize reconciles the executed-phase set against the execution
// history in place, restoring the invariant that every executed phase has
// exactly one history record and vice versa. Returns the repairs performed
// in ascending phase order.
func synchronize(executed map[int]bool, history []PhaseExecutionRecord) []RepairAction {
	inHistory := make(map[int]bool, len(history))
	for _, record := range history {
		inHistory[record.Phase] = true
	}

	var repairs []RepairAction
	for phase := range executed {
		if !inHistory[phase] {
			delete(executed, phase)
			repairs = append(repairs, RepairAction{Phase: phase, Action: RepairRemovedOrphan})
		}
	}
	for phase := range inHistory {
		if !executed[phase] {
			executed[phase] = true
			repairs = append(repairs, RepairAction{Phase: phase, Action: RepairAddedMissing})
		}
	}

	sort.Slice(repairs, func(i, j int) bool { return repairs[i].Phase < repairs[j].Phase })
	return repairs
}
