// Package dedup merges findings that describe the same underlying issue
// reported by multiple analysis tasks.
//
// Two mechanisms live here. Merge-based dedup groups findings by
// (semanticType, metric, referencedFile) and collapses each group to one
// representative. The stricter pairwise check (used by the graph's
// duplicate detector) additionally requires keyword overlap, to catch
// near-duplicates that differ only by file-path formatting.
package dedup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

// generalBucket is the merge-key file component for findings that
// reference no particular file.
const generalBucket = "general"

// MergeGroup records one collapsed group for traceability.
type MergeGroup struct {
	// Key is the merge key: "semanticType|metric|file".
	Key string `json:"key"`

	// RepresentativeID is the finding chosen to speak for the group:
	// the highest-confidence member, ties broken by smallest ID in
	// canonical order.
	RepresentativeID string `json:"representative_id"`

	// OriginalCount is how many findings the group collapsed.
	OriginalCount int `json:"original_count"`

	// MemberIDs lists all member finding IDs, sorted.
	MemberIDs []string `json:"member_ids"`

	// TaskIDs lists the distinct producing tasks, sorted.
	TaskIDs []string `json:"task_ids"`
}

// Result is the outcome of batch deduplication.
type Result struct {
	// Findings are the representatives, one per merge group, in
	// canonical (merge key) order.
	Findings []*types.Finding `json:"findings"`

	// MergeGroups records provenance per group, same order as Findings.
	MergeGroups []MergeGroup `json:"merge_groups"`

	Stats Stats `json:"stats"`
}

// Stats summarizes a deduplication pass.
type Stats struct {
	TotalCandidates int `json:"total_candidates"`
	UniqueCount     int `json:"unique_count"`
	MergedCount     int `json:"merged_count"`
}

// Validate checks internal consistency of the result.
func (r *Result) Validate() error {
	if len(r.Findings) != len(r.MergeGroups) {
		return fmt.Errorf("findings/merge groups length mismatch: %d vs %d", len(r.Findings), len(r.MergeGroups))
	}
	if r.Stats.UniqueCount != len(r.Findings) {
		return fmt.Errorf("unique count %d does not match findings %d", r.Stats.UniqueCount, len(r.Findings))
	}
	for i, g := range r.MergeGroups {
		if g.RepresentativeID != r.Findings[i].ID {
			return fmt.Errorf("group %d representative %s does not match finding %s", i, g.RepresentativeID, r.Findings[i].ID)
		}
		if g.OriginalCount < 1 {
			return fmt.Errorf("group %d has original count %d", i, g.OriginalCount)
		}
	}
	return nil
}

// Deduplicator groups findings by merge key. Stateless; safe for
// concurrent use.
type Deduplicator struct {
	classifier types.Classifier
}

// New creates a deduplicator backed by the given classifier.
func New(classifier types.Classifier) *Deduplicator {
	return &Deduplicator{classifier: classifier}
}

// MergeKey computes the merge key for a finding.
func (d *Deduplicator) MergeKey(f *types.Finding) string {
	file := f.ReferencedFile()
	if file == "" {
		file = generalBucket
	}
	return fmt.Sprintf("%s|%s|%s", d.classifier.Classify(f), f.Metric, file)
}

// Deduplicate collapses findings into one representative per merge key.
//
// The output is independent of input order: members are canonicalized by
// ID before the representative is chosen, so Deduplicate(perm(F)) equals
// Deduplicate(F) for any permutation, and the pass is idempotent.
func (d *Deduplicator) Deduplicate(findings []*types.Finding) *Result {
	groups := make(map[string][]*types.Finding)
	for _, f := range findings {
		key := d.MergeKey(f)
		groups[key] = append(groups[key], f)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := &Result{Stats: Stats{TotalCandidates: len(findings)}}
	for _, key := range keys {
		members := groups[key]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

		rep := members[0]
		for _, m := range members[1:] {
			if m.Evidence.Confidence > rep.Evidence.Confidence {
				rep = m
			}
		}

		group := MergeGroup{
			Key:              key,
			RepresentativeID: rep.ID,
			OriginalCount:    len(members),
		}
		taskSeen := make(map[string]bool)
		for _, m := range members {
			group.MemberIDs = append(group.MemberIDs, m.ID)
			if !taskSeen[m.ProducedBy] {
				taskSeen[m.ProducedBy] = true
				group.TaskIDs = append(group.TaskIDs, m.ProducedBy)
			}
		}
		sort.Strings(group.TaskIDs)

		res.Findings = append(res.Findings, rep)
		res.MergeGroups = append(res.MergeGroups, group)
		res.Stats.MergedCount += len(members) - 1
	}
	res.Stats.UniqueCount = len(res.Findings)
	return res
}

// overlapVocabulary is the fixed term set used by the pairwise duplicate
// check. Overlap is counted over these terms only, so cosmetic wording
// differences outside the vocabulary cannot produce false negatives.
var overlapVocabulary = []string{
	"unused", "blocking", "render", "script", "stylesheet", "image",
	"font", "cache", "compress", "defer", "async", "preload", "lazy",
	"size", "bytes", "bundle", "request", "server", "latency", "shift",
	"width", "height", "javascript", "css",
}

// PairwiseOverlapThreshold is the minimum number of shared vocabulary
// terms for two findings to count as duplicates.
const PairwiseOverlapThreshold = 2

// IsPairwiseDuplicate reports whether two findings are near-duplicates:
// same metric, same semantic type, same referenced file, and at least
// PairwiseOverlapThreshold shared vocabulary terms in their
// descriptions. Stricter than merge-key equality.
func (d *Deduplicator) IsPairwiseDuplicate(a, b *types.Finding) bool {
	if a.Metric != b.Metric {
		return false
	}
	if d.classifier.Classify(a) != d.classifier.Classify(b) {
		return false
	}
	fileA, fileB := a.ReferencedFile(), b.ReferencedFile()
	if fileA == "" || fileA != fileB {
		return false
	}
	return vocabularyOverlap(a.Description, b.Description) >= PairwiseOverlapThreshold
}

// vocabularyOverlap counts vocabulary terms present in both texts.
func vocabularyOverlap(a, b string) int {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	n := 0
	for _, term := range overlapVocabulary {
		if strings.Contains(la, term) && strings.Contains(lb, term) {
			n++
		}
	}
	return n
}
