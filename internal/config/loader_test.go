package config_test

import (
	"strings"
	"testing"

	"github.com/vaultmind/vaultmind/internal/config"
)

func TestValidateSessionMemoryModelNameMustExist(t *testing.T) {
	t.Parallel()
	yaml := `
sessionmemory:
  enabled: true
  model_name: does-not-exist
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown sessionmemory.model_name, got nil")
	}
}

func TestValidateSessionMemoryDisabledSkipsModelCheck(t *testing.T) {
	t.Parallel()
	yaml := `
sessionmemory:
  enabled: false
  model_name: does-not-exist
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("disabled sessionmemory should not validate model_name, got: %v", err)
	}
}

func TestValidateMultipleErrorsJoined(t *testing.T) {
	t.Parallel()
	yaml := `
logging:
  level: verbose
model:
  broken:
    model_name: gpt-4o
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "logging.level") {
		t.Errorf("error should mention logging.level, got: %v", err)
	}
	if !strings.Contains(errStr, "model_vendor") {
		t.Errorf("error should mention model_vendor, got: %v", err)
	}
}

func TestValidateLongTermMemoryVectorGraphStoreMustExist(t *testing.T) {
	t.Parallel()
	yaml := `
long_term_memory:
  enabled: true
  vector_graph_store: does-not-exist
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown vector_graph_store reference, got nil")
	}
}

func TestValidateLongTermMemoryRerankerMustExist(t *testing.T) {
	t.Parallel()
	yaml := `
long_term_memory:
  enabled: true
  reranker: does-not-exist
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown reranker reference, got nil")
	}
}

func TestValidateDisabledLongTermMemorySkipsReferenceChecks(t *testing.T) {
	t.Parallel()
	yaml := `
long_term_memory:
  enabled: false
  embedder: does-not-exist
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("disabled long_term_memory should not validate references, got: %v", err)
	}
}
