package declarative

import (
	"github.com/vaultmind/vaultmind/internal/declarative/derive"
	"github.com/vaultmind/vaultmind/internal/declarative/mutate"
	"github.com/vaultmind/vaultmind/internal/declarative/postulate"
)

// DefaultEpisodeType is the workflow-tree fallback key used when an
// episode's episode_type has no dedicated entry (spec §4.8).
const DefaultEpisodeType = "default"

// MutationWorkflow pairs a mutator with nothing further — mutation is the
// leaf of the workflow tree.
type MutationWorkflow struct {
	Mutator mutate.Mutator
}

// DerivationWorkflow pairs a deriver with the mutators applied to each of
// its outputs.
type DerivationWorkflow struct {
	Deriver  derive.Deriver
	Mutators []MutationWorkflow
}

// ClusterWorkflow pairs a postulator (which builds the cluster) with the
// derivation workflows run over that cluster.
type ClusterWorkflow struct {
	Postulator  postulate.Postulator
	Derivations []DerivationWorkflow
}

// WorkflowTree maps episode_type to the ClusterWorkflows run at ingestion
// time. Unknown episode_type values fall back to DefaultEpisodeType.
type WorkflowTree map[string][]ClusterWorkflow

// workflowsFor returns the ClusterWorkflows for episodeType, falling back
// to the default entry.
func (t WorkflowTree) workflowsFor(episodeType string) []ClusterWorkflow {
	if wf, ok := t[episodeType]; ok {
		return wf
	}
	return t[DefaultEpisodeType]
}
