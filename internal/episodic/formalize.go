package episodic

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// FormalizeQueryWithContext implements spec §4.10's
// formalize_query_with_context: runs QueryMemory, then wraps the result in
// a <Summary>/<Episodes>/<Query> envelope suitable for injecting into an
// LM prompt. Short-term and long-term episodes are merged, chronologically
// ordered, with only STRING-typed content included.
func (inst *Instance) FormalizeQueryWithContext(ctx context.Context, query string, limit int, propertyFilter map[string]string) (string, error) {
	result, err := inst.QueryMemory(ctx, query, limit, propertyFilter)
	if err != nil {
		return "", fmt.Errorf("episodic: formalize query with context: %w", err)
	}

	merged := make([]memory.Episode, 0, len(result.ShortTermEpisodes)+len(result.LongTermEpisodes))
	for _, ep := range result.ShortTermEpisodes {
		if ep.ContentType == memory.ContentTypeString {
			merged = append(merged, ep)
		}
	}
	for _, ep := range result.LongTermEpisodes {
		if ep.ContentType == memory.ContentTypeString {
			merged = append(merged, ep)
		}
	}
	sortByTimestamp(merged)

	var episodesBody strings.Builder
	for i, ep := range merged {
		if i > 0 {
			episodesBody.WriteByte('\n')
		}
		episodesBody.WriteString(ep.Content)
	}

	var b strings.Builder
	b.WriteString("<Summary>")
	b.WriteString(result.Summary)
	b.WriteString("</Summary>\n<Episodes>")
	b.WriteString(episodesBody.String())
	b.WriteString("</Episodes>\n<Query>")
	b.WriteString(query)
	b.WriteString("</Query>")
	return b.String(), nil
}

// sortByTimestamp sorts episodes ascending by Timestamp in place, using a
// stable insertion sort (the merged slice is small by construction — it is
// already budget-limited by the two queries it comes from).
func sortByTimestamp(episodes []memory.Episode) {
	for i := 1; i < len(episodes); i++ {
		for j := i; j > 0 && episodes[j-1].Timestamp.After(episodes[j].Timestamp); j-- {
			episodes[j-1], episodes[j] = episodes[j], episodes[j-1]
		}
	}
}
