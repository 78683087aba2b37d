package service

import "github.com/feedbacklab/survey-server/internal/model"

// ResolveAudience returns the team IDs that receive the survey for the given
// filter. The selected set is taken as persisted: IDs of archived or deleted
// teams are not pruned here, display fallback naming is the caller's concern.
func ResolveAudience(filterType string, selectedTeamIDs, allTeamIDs []string) []string {
	switch filterType {
	case model.FilterTypeIncludeSelected:
		selected := toSet(selectedTeamIDs)
		recipients := make([]string, 0, len(selectedTeamIDs))
		for _, teamID := range allTeamIDs {
			if selected[teamID] {
				recipients = append(recipients, teamID)
			}
		}
		return recipients

	case model.FilterTypeExcludeSelected:
		excluded := toSet(selectedTeamIDs)
		recipients := make([]string, 0, len(allTeamIDs))
		for _, teamID := range allTeamIDs {
			if !excluded[teamID] {
				recipients = append(recipients, teamID)
			}
		}
		return recipients

	default:
		// everyone, and the safe fallback for unknown filter types
		recipients := make([]string, len(allTeamIDs))
		copy(recipients, allTeamIDs)
		return recipients
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
