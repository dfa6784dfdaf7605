package postgres

import (
	"strings"
	"testing"

	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

func TestVectorTableNameDeterministicAndDistinct(t *testing.T) {
	a := vectorTableName("episode", "embedding_text-embedding-3-small_1536d")
	b := vectorTableName("episode", "embedding_text-embedding-3-small_1536d")
	if a != b {
		t.Fatalf("vectorTableName not deterministic: %q vs %q", a, b)
	}
	c := vectorTableName("cluster", "embedding_text-embedding-3-small_1536d")
	if a == c {
		t.Fatalf("vectorTableName collapsed distinct labels: %q", a)
	}
	if len(a) > maxIdentifierLen {
		t.Fatalf("vectorTableName exceeded %d bytes: %q (%d)", maxIdentifierLen, a, len(a))
	}
}

func TestVectorTableNameHashesOverlongNames(t *testing.T) {
	longLabel := strings.Repeat("x", 200)
	name := vectorTableName(longLabel, "embedding_some-very-long-model-identifier_4096d")
	if len(name) > maxIdentifierLen {
		t.Fatalf("hashed name still too long: %q (%d bytes)", name, len(name))
	}
	if !strings.HasPrefix(name, "vecidx_h") {
		t.Fatalf("expected hashed fallback name, got %q", name)
	}
}

func TestDistanceOperator(t *testing.T) {
	cases := []struct {
		metric graphstore.SimilarityMetric
		op     string
	}{
		{graphstore.Cosine, "<=>"},
		{graphstore.Dot, "<#>"},
		{graphstore.Euclidean, "<->"},
		{graphstore.Manhattan, "<+>"},
	}
	for _, tc := range cases {
		op, ascending := distanceOperator(tc.metric)
		if op != tc.op {
			t.Errorf("metric %v: want operator %q, got %q", tc.metric, tc.op, op)
		}
		if !ascending {
			t.Errorf("metric %v: expected ascending order (closer = smaller distance)", tc.metric)
		}
	}
}

func TestSimilarityRanksIdenticalVectorHighest(t *testing.T) {
	query := []float32{1, 0, 0, 0}
	same := []float32{1, 0, 0, 0}
	orthogonal := []float32{0, 1, 0, 0}
	opposite := []float32{-1, 0, 0, 0}

	for _, metric := range []graphstore.SimilarityMetric{graphstore.Cosine, graphstore.Dot, graphstore.Euclidean, graphstore.Manhattan} {
		sSame := similarity(metric, query, same)
		sOrth := similarity(metric, query, orthogonal)
		sOpp := similarity(metric, query, opposite)
		if !(sSame > sOrth && sOrth > sOpp) {
			t.Errorf("metric %v: expected same(%f) > orthogonal(%f) > opposite(%f)", metric, sSame, sOrth, sOpp)
		}
	}
}

func TestMarshalUnmarshalPropertiesRoundTrip(t *testing.T) {
	props := map[string]any{
		"group_id":                       "g1",
		"filterable_session_id":          "s1",
		"embedding_text-embedding-3_4d": []float32{0.1, 0.2, 0.3, 0.4},
	}
	raw, embeddings, err := marshalProperties(props)
	if err != nil {
		t.Fatalf("marshalProperties: %v", err)
	}
	if len(embeddings) != 1 {
		t.Fatalf("want 1 extracted embedding, got %d", len(embeddings))
	}
	vec, ok := embeddings["embedding_text-embedding-3_4d"]
	if !ok || len(vec) != 4 {
		t.Fatalf("embedding not extracted correctly: %v", embeddings)
	}

	back, err := unmarshalProperties(raw)
	if err != nil {
		t.Fatalf("unmarshalProperties: %v", err)
	}
	if back["group_id"] != "g1" {
		t.Errorf("group_id: want g1, got %v", back["group_id"])
	}
	gotVec, ok := asFloat32Slice(back["embedding_text-embedding-3_4d"])
	if !ok || len(gotVec) != 4 {
		t.Fatalf("round-tripped embedding missing or wrong length: %v", back["embedding_text-embedding-3_4d"])
	}
	if gotVec[0] != 0.1 {
		t.Errorf("round-tripped embedding[0]: want 0.1, got %v", gotVec[0])
	}
}

func TestIsEmbeddingPropertyName(t *testing.T) {
	cases := map[string]bool{
		"embedding_text-embedding-3-small_1536d": true,
		"embedding_ollama-nomic_768d":            true,
		"group_id":                               false,
		"embedding_bare":                         false,
		"text_1536d":                             false,
	}
	for name, want := range cases {
		if got := isEmbeddingPropertyName(name); got != want {
			t.Errorf("isEmbeddingPropertyName(%q): want %v, got %v", name, want, got)
		}
	}
}
