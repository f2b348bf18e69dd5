package retrieval

import (
	"sort"

	"github.com/becomeliminal/nim-recall/core"
)

// priority breaks similarity ties: memories are explicit user intent and
// win over semantic hits of the same score.
func priority(t core.ItemType) int {
	switch t {
	case core.ItemMemory:
		return 0
	case core.ItemMessage:
		return 1
	case core.ItemFile:
		return 2
	}
	return 3
}

// merge concatenates per-source results in slot order and sorts them by
// similarity, then priority. The sort is stable, so items equal on both
// keep slot order and then their order within the source. Slots are
// filled by position, not completion, so the result does not depend on
// which source answered first. Items from the exclude container are
// dropped whatever source returned them.
func merge(slots [][]core.RetrievedItem, limit int, exclude string) []core.RetrievedItem {
	var n int
	for _, s := range slots {
		n += len(s)
	}
	all := make([]core.RetrievedItem, 0, n)
	for _, s := range slots {
		for _, it := range s {
			if exclude != "" && it.Metadata.ContainerID == exclude {
				continue
			}
			it.Similarity = core.ClampSimilarity(it.Similarity)
			all = append(all, it)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Similarity != all[j].Similarity {
			return all[i].Similarity > all[j].Similarity
		}
		return priority(all[i].Type) < priority(all[j].Type)
	})

	if len(all) > limit {
		all = all[:limit]
	}
	return all
}
