// Package graphmodel maps the declarative memory's domain types (Episode,
// EpisodeCluster, Derivative) onto graphstore labels, relations, and
// property keys, and back. It is the single place that knows the wire
// shape of the graph so that C5 (postulate), C6 (derive), C7 (mutate), and
// the C8 orchestrator agree on it.
package graphmodel

import (
	"time"

	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// Labels applied to graph nodes.
const (
	LabelEpisode        = "Episode"
	LabelEpisodeCluster = "EpisodeCluster"
	LabelDerivative     = "Derivative"
)

// Relations applied to graph edges.
const (
	RelationContains    = "CONTAINS"
	RelationDerivedFrom = "DERIVED_FROM"
	RelationRelatedTo   = "RELATED_TO"
)

// FilterablePrefix is prepended to filterable-property keys so they don't
// collide with scalar attribute names when mangled into graph properties.
const FilterablePrefix = "filterable_"

// Scalar property keys shared across node kinds.
const (
	propID             = "id"
	propEpisodeType    = "episode_type"
	propDerivativeType = "derivative_type"
	propContentType    = "content_type"
	propContent        = "content"
	propTimestamp      = "timestamp"
	propGroupID        = "group_id"
	propSessionID      = "session_id"
	propProducerID     = "producer_id"
	propProducedForID  = "produced_for_id"
	propUserMetadata   = "user_metadata"
)

// MangleFilterable prefixes a filterable-property key for storage as a node
// property, per spec §4.8 step 1.
func MangleFilterable(key string) string {
	return FilterablePrefix + key
}

// FilterProperties returns the filterable_* property filter for
// property values pulled from an episode's filterable set plus its
// group/session identity (the typical filter keys per spec §4.5/§4.8).
func FilterProperties(filterable map[string]string) graphstore.PropertyFilter {
	f := make(graphstore.PropertyFilter, len(filterable))
	for k, v := range filterable {
		f[MangleFilterable(k)] = v
	}
	return f
}

// EpisodeToNode converts an Episode into a graph Node labeled Episode.
func EpisodeToNode(ep memory.Episode) graphstore.Node {
	props := map[string]any{
		propID:            ep.ID,
		propEpisodeType:   ep.EpisodeType,
		propContentType:   string(ep.ContentType),
		propContent:       ep.Content,
		propTimestamp:     ep.Timestamp,
		propGroupID:       ep.GroupID,
		propSessionID:     ep.SessionID,
		propProducerID:    ep.ProducerID,
		propProducedForID: ep.ProducedForID,
	}
	if ep.UserMetadata != nil {
		props[propUserMetadata] = ep.UserMetadata
	}
	for k, v := range ep.FilterableProperties {
		props[MangleFilterable(k)] = v
	}
	return graphstore.Node{ID: ep.ID, Labels: []string{LabelEpisode}, Properties: props}
}

// NodeToEpisode reconstructs an Episode from a graph Node previously built
// by EpisodeToNode.
func NodeToEpisode(n graphstore.Node) memory.Episode {
	ep := memory.Episode{
		ID:                   stringProp(n.Properties, propID, n.ID),
		EpisodeType:          stringProp(n.Properties, propEpisodeType, ""),
		ContentType:          memory.ContentType(stringProp(n.Properties, propContentType, string(memory.ContentTypeString))),
		Content:              stringProp(n.Properties, propContent, ""),
		Timestamp:            timeProp(n.Properties, propTimestamp),
		GroupID:              stringProp(n.Properties, propGroupID, ""),
		SessionID:            stringProp(n.Properties, propSessionID, ""),
		ProducerID:           stringProp(n.Properties, propProducerID, ""),
		ProducedForID:        stringProp(n.Properties, propProducedForID, ""),
		FilterableProperties: map[string]string{},
	}
	if um, ok := n.Properties[propUserMetadata]; ok {
		if m, ok := um.(map[string]any); ok {
			ep.UserMetadata = m
		}
	}
	for k, v := range n.Properties {
		if len(k) > len(FilterablePrefix) && k[:len(FilterablePrefix)] == FilterablePrefix {
			if s, ok := v.(string); ok {
				ep.FilterableProperties[k[len(FilterablePrefix):]] = s
			}
		}
	}
	return ep
}

// ClusterToNode converts an EpisodeCluster into a graph Node labeled
// EpisodeCluster. Member episodes are persisted separately and linked via
// CONTAINS edges (see ClusterEdges).
func ClusterToNode(c memory.EpisodeCluster) graphstore.Node {
	props := map[string]any{
		propID:        c.ID,
		propTimestamp: c.Timestamp,
	}
	if c.UserMetadata != nil {
		props[propUserMetadata] = c.UserMetadata
	}
	for k, v := range c.FilterableProperties {
		props[MangleFilterable(k)] = v
	}
	return graphstore.Node{ID: c.ID, Labels: []string{LabelEpisodeCluster}, Properties: props}
}

// ClusterEdges returns the CONTAINS edges from a cluster node to each of
// its member episode nodes.
func ClusterEdges(clusterID string, episodes []memory.Episode) []graphstore.Edge {
	edges := make([]graphstore.Edge, 0, len(episodes))
	for _, ep := range episodes {
		edges = append(edges, graphstore.Edge{
			ID:       clusterID + "->" + ep.ID,
			SourceID: clusterID,
			TargetID: ep.ID,
			Relation: RelationContains,
		})
	}
	return edges
}

// DerivativeToNode converts a Derivative into a graph Node labeled
// Derivative, attaching its embedding under the dimensional property name
// when present.
func DerivativeToNode(d memory.Derivative, modelID string) graphstore.Node {
	props := map[string]any{
		propID:             d.ID,
		propDerivativeType: d.DerivativeType,
		propContentType:    string(d.ContentType),
		propContent:        d.Content,
		propTimestamp:      d.Timestamp,
	}
	if d.UserMetadata != nil {
		props[propUserMetadata] = d.UserMetadata
	}
	for k, v := range d.FilterableProperties {
		props[MangleFilterable(k)] = v
	}
	if len(d.Embedding) > 0 {
		props[graphstore.EmbeddingPropertyName(modelID, len(d.Embedding))] = d.Embedding
	}
	return graphstore.Node{ID: d.ID, Labels: []string{LabelDerivative}, Properties: props}
}

// NodeToDerivative reconstructs a Derivative from a graph Node previously
// built by DerivativeToNode (embedding vectors are not reconstructed; they
// are not needed once a Derivative has been matched).
func NodeToDerivative(n graphstore.Node) memory.Derivative {
	d := memory.Derivative{
		ID:                   stringProp(n.Properties, propID, n.ID),
		DerivativeType:       stringProp(n.Properties, propDerivativeType, ""),
		ContentType:          memory.ContentType(stringProp(n.Properties, propContentType, string(memory.ContentTypeString))),
		Content:              stringProp(n.Properties, propContent, ""),
		Timestamp:            timeProp(n.Properties, propTimestamp),
		FilterableProperties: map[string]string{},
	}
	if um, ok := n.Properties[propUserMetadata]; ok {
		if m, ok := um.(map[string]any); ok {
			d.UserMetadata = m
		}
	}
	for k, v := range n.Properties {
		if len(k) > len(FilterablePrefix) && k[:len(FilterablePrefix)] == FilterablePrefix {
			if s, ok := v.(string); ok {
				d.FilterableProperties[k[len(FilterablePrefix):]] = s
			}
		}
	}
	return d
}

// DerivedFromEdge returns the single DERIVED_FROM edge linking a Derivative
// to its source EpisodeCluster.
func DerivedFromEdge(derivativeID, clusterID string) graphstore.Edge {
	return graphstore.Edge{
		ID:       derivativeID + "->" + clusterID,
		SourceID: derivativeID,
		TargetID: clusterID,
		Relation: RelationDerivedFrom,
	}
}

// RelatedToEdge returns a RELATED_TO edge from one Episode to another, as
// emitted by postulators at ingestion time (spec §4.8 step 3).
func RelatedToEdge(fromID, toID string) graphstore.Edge {
	return graphstore.Edge{
		ID:       fromID + "--related-->" + toID,
		SourceID: fromID,
		TargetID: toID,
		Relation: RelationRelatedTo,
	}
}

func stringProp(props map[string]any, key, fallback string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

func timeProp(props map[string]any, key string) time.Time {
	if v, ok := props[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}
