// Package manager implements the Episodic Memory Manager (spec §4.12): a
// process-lifetime registry that multiplexes per-session [episodic.Instance]
// values with reference-counted lifecycles, backed by the session manager's
// relational store (internal/sessiondb) and the shared long-term memory
// stack (graph store, embedder, reranker) built once from configuration.
//
// Per spec §9's redesign note, Manager owns the registry; Instance never
// holds a reference back to Manager, only the deregistration callback
// (OnZeroRefcount) wired in at construction.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vaultmind/vaultmind/internal/config"
	"github.com/vaultmind/vaultmind/internal/declarative"
	"github.com/vaultmind/vaultmind/internal/declarative/derive"
	"github.com/vaultmind/vaultmind/internal/declarative/mutate"
	"github.com/vaultmind/vaultmind/internal/declarative/postulate"
	"github.com/vaultmind/vaultmind/internal/episodic"
	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/internal/sessiondb"
	"github.com/vaultmind/vaultmind/internal/shortterm"
	"github.com/vaultmind/vaultmind/pkg/graphstore"
	"github.com/vaultmind/vaultmind/pkg/provider/embedding"
	"github.com/vaultmind/vaultmind/pkg/provider/llm"
	"github.com/vaultmind/vaultmind/pkg/provider/reranker"
)

// contextKey is the registry's lookup key — (group_id, session_id) only,
// per spec §4.12: agent/user sets are not part of the key.
type contextKey struct {
	groupID   string
	sessionID string
}

type registryEntry struct {
	instance     *episodic.Instance
	context      memory.MemoryContext
	consolidator *shortterm.Consolidator
}

// Manager is the C12 Episodic Memory Manager. The zero value is not usable;
// construct with [NewManager].
type Manager struct {
	store sessiondb.Store
	cfg   *config.Config

	// Shared long-term memory collaborators, built once at construction
	// from cfg.LongTermMemory. Nil when long-term memory is disabled.
	graphStore graphstore.Store
	embedder   embedding.Provider
	reranker   reranker.Reranker
	workflows  declarative.WorkflowTree

	// sessionLLM summarises evicted short-term episodes. Nil when
	// sessionmemory is disabled or has no model_name configured.
	sessionLLM llm.Provider

	mu       sync.Mutex
	registry map[contextKey]*registryEntry
	shutDown bool
}

// NewManager builds the shared C1-C4 collaborators named by cfg and returns
// a ready-to-use Manager. ctx bounds the time spent establishing backend
// connections (e.g. the graph store's connection pool).
func NewManager(ctx context.Context, cfg *config.Config, store sessiondb.Store) (*Manager, error) {
	if !cfg.SessionMemory.Enabled && !cfg.LongTermMemory.Enabled {
		return nil, ErrNoMemoryEnabled
	}

	m := &Manager{
		store:    sessiondb.NewDegradingStore(store),
		cfg:      cfg,
		registry: make(map[contextKey]*registryEntry),
	}

	reg := config.NewRegistry(cfg)

	if cfg.LongTermMemory.Enabled {
		gs, err := reg.BuildGraphStore(ctx, cfg.LongTermMemory.VectorGraphStore)
		if err != nil {
			return nil, fmt.Errorf("manager: build graph store: %w", err)
		}
		emb, err := reg.BuildEmbedder(cfg.LongTermMemory.Embedder)
		if err != nil {
			return nil, fmt.Errorf("manager: build embedder: %w", err)
		}
		rr, err := reg.BuildReranker(cfg.LongTermMemory.Reranker)
		if err != nil {
			return nil, fmt.Errorf("manager: build reranker: %w", err)
		}
		m.graphStore = gs
		m.embedder = emb
		m.reranker = rr
		m.workflows = defaultWorkflowTree(gs)
	}

	if cfg.SessionMemory.Enabled && cfg.SessionMemory.ModelName != "" {
		llmProvider, err := reg.BuildLLM(cfg.SessionMemory.ModelName)
		if err != nil {
			return nil, fmt.Errorf("manager: build sessionmemory model: %w", err)
		}
		m.sessionLLM = llmProvider
	}

	return m, nil
}

// defaultWorkflowTree builds the single default-episode-type pipeline: a
// Previous postulator scoped to group_id/session_id, an Identity deriver,
// and a Metadata mutator — spec §9's "dynamic workflow tree" note leaves
// richer per-episode-type trees to configuration this manager does not yet
// expose; every episode_type not explicitly configured falls back to this
// entry via [declarative.WorkflowTree.workflowsFor].
func defaultWorkflowTree(store graphstore.Store) declarative.WorkflowTree {
	return declarative.WorkflowTree{
		declarative.DefaultEpisodeType: {
			{
				Postulator: postulate.Previous{
					Store:      store,
					FilterKeys: []string{"group_id", "session_id"},
					Limit:      declarative.DefaultContextNeighborLimit,
				},
				Derivations: []declarative.DerivationWorkflow{
					{
						Deriver: derive.Identity{},
						Mutators: []declarative.MutationWorkflow{
							{Mutator: mutate.Metadata{}},
						},
					},
				},
			},
		},
	}
}

// CreateGroup creates a new group with the given authorized agent/user
// identities and returns it with server-assigned fields populated.
func (m *Manager) CreateGroup(ctx context.Context, groupID string, agentIDs, userIDs []string, cfg map[string]any) (memory.Group, error) {
	if err := m.checkNotShutDown(); err != nil {
		return memory.Group{}, err
	}

	g := memory.Group{GroupID: groupID, AgentIDs: agentIDs, UserIDs: userIDs, Config: cfg}
	if err := m.store.CreateGroup(ctx, g); err != nil {
		if errors.Is(err, sessiondb.ErrGroupAlreadyExists) {
			return memory.Group{}, ErrGroupAlreadyExists
		}
		return memory.Group{}, fmt.Errorf("manager: create group: %w", err)
	}
	return m.store.GetGroup(ctx, groupID)
}

// RetrieveGroup returns the group identified by groupID.
func (m *Manager) RetrieveGroup(ctx context.Context, groupID string) (memory.Group, error) {
	if err := m.checkNotShutDown(); err != nil {
		return memory.Group{}, err
	}

	g, err := m.store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, sessiondb.ErrGroupNotFound) {
			return memory.Group{}, ErrGroupNotFound
		}
		return memory.Group{}, fmt.Errorf("manager: retrieve group: %w", err)
	}
	return g, nil
}

// DeleteGroup deletes a group, cascading to its sessions in the relational
// store, and evicts any live instances registered under it.
func (m *Manager) DeleteGroup(ctx context.Context, groupID string) error {
	if err := m.checkNotShutDown(); err != nil {
		return err
	}

	if err := m.store.DeleteGroup(ctx, groupID); err != nil {
		if errors.Is(err, sessiondb.ErrGroupNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("manager: delete group: %w", err)
	}

	m.mu.Lock()
	for key := range m.registry {
		if key.groupID == groupID {
			delete(m.registry, key)
		}
	}
	m.mu.Unlock()
	return nil
}

// CreateEpisodicMemoryInstance implements spec §4.12's
// create_episodic_memory_instance: requires an existing group, fails if the
// session already exists, merges sessionCfg over the manager's global
// sessionmemory config, and constructs a fresh Instance with refcount 1.
func (m *Manager) CreateEpisodicMemoryInstance(ctx context.Context, groupID, sessionID string, agentIDs, userIDs []string, sessionCfg map[string]any) (*episodic.Instance, error) {
	if err := m.checkNotShutDown(); err != nil {
		return nil, err
	}

	sess := memory.Session{GroupID: groupID, SessionID: sessionID, AgentIDs: agentIDs, UserIDs: userIDs, Config: sessionCfg}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		switch {
		case errors.Is(err, sessiondb.ErrGroupNotFound):
			return nil, ErrGroupNotFound
		case errors.Is(err, sessiondb.ErrSessionAlreadyExists):
			return nil, ErrSessionAlreadyExists
		default:
			return nil, fmt.Errorf("manager: create episodic memory instance: %w", err)
		}
	}

	return m.buildAndRegister(sess)
}

// OpenEpisodicMemoryInstance implements spec §4.12's
// open_episodic_memory_instance: returns the existing Instance with its
// refcount incremented if one is already registered for (groupID,
// sessionID), otherwise constructs a fresh one from the persisted session.
func (m *Manager) OpenEpisodicMemoryInstance(ctx context.Context, groupID, sessionID string) (*episodic.Instance, error) {
	if err := m.checkNotShutDown(); err != nil {
		return nil, err
	}

	key := contextKey{groupID, sessionID}
	m.mu.Lock()
	if e, ok := m.registry[key]; ok {
		e.instance.AddRef()
		m.mu.Unlock()
		return e.instance, nil
	}
	m.mu.Unlock()

	sess, err := m.store.OpenSession(ctx, groupID, sessionID)
	if err != nil {
		if errors.Is(err, sessiondb.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("manager: open episodic memory instance: %w", err)
	}
	return m.buildAndRegister(sess)
}

// GetEpisodicMemoryInstance implements spec §4.12's
// get_episodic_memory_instance: open-or-create-or-reuse. If no persisted
// session exists, agentIDs/userIDs must be non-empty to create one;
// otherwise [ErrInsufficientParameters] is returned.
//
// MemoryContext identity is keyed on (group_id, session_id) alone, so a
// reused instance's recorded agent/user sets may differ from agentIDs/
// userIDs passed here; that mismatch is logged, not treated as an error.
func (m *Manager) GetEpisodicMemoryInstance(ctx context.Context, groupID, sessionID string, agentIDs, userIDs []string, sessionCfg map[string]any) (*episodic.Instance, error) {
	inst, err := m.OpenEpisodicMemoryInstance(ctx, groupID, sessionID)
	if err == nil {
		warnIfParticipantsDiffer(groupID, sessionID, inst, agentIDs, userIDs)
		return inst, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	if len(agentIDs) == 0 && len(userIDs) == 0 {
		return nil, ErrInsufficientParameters
	}
	return m.CreateEpisodicMemoryInstance(ctx, groupID, sessionID, agentIDs, userIDs, sessionCfg)
}

// warnIfParticipantsDiffer logs a mismatch between the agent/user sets an
// instance was originally registered with and the sets a later
// GetEpisodicMemoryInstance call supplied — the lookup key never includes
// them, so the mismatch is surfaced rather than silently ignored.
func warnIfParticipantsDiffer(groupID, sessionID string, inst *episodic.Instance, agentIDs, userIDs []string) {
	ctx := inst.Context()
	for _, id := range agentIDs {
		if !ctx.IsParticipant(id) {
			slog.Warn("requested agent not in recorded instance participants",
				"group_id", groupID, "session_id", sessionID, "agent_id", id)
		}
	}
	for _, id := range userIDs {
		if !ctx.IsParticipant(id) {
			slog.Warn("requested user not in recorded instance participants",
				"group_id", groupID, "session_id", sessionID, "user_id", id)
		}
	}
}

// CloseEpisodicMemoryInstance decrements the refcount of the Instance
// registered for (groupID, sessionID), deregistering it at zero.
func (m *Manager) CloseEpisodicMemoryInstance(groupID, sessionID string) error {
	m.mu.Lock()
	e, ok := m.registry[contextKey{groupID, sessionID}]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.instance.Close()
	return nil
}

// AsyncOpen is the scoped-guard equivalent of spec §4.12's async_open: it
// opens the instance, invokes fn, and closes the instance on every exit
// path (including fn returning an error).
func (m *Manager) AsyncOpen(ctx context.Context, groupID, sessionID string, fn func(*episodic.Instance) error) error {
	inst, err := m.OpenEpisodicMemoryInstance(ctx, groupID, sessionID)
	if err != nil {
		return err
	}
	defer inst.Close()
	return fn(inst)
}

// AsyncCreate is the scoped-guard equivalent of spec §4.12's async_create:
// it creates the instance, invokes fn, and closes the instance on every
// exit path.
func (m *Manager) AsyncCreate(ctx context.Context, groupID, sessionID string, agentIDs, userIDs []string, sessionCfg map[string]any, fn func(*episodic.Instance) error) error {
	inst, err := m.CreateEpisodicMemoryInstance(ctx, groupID, sessionID, agentIDs, userIDs, sessionCfg)
	if err != nil {
		return err
	}
	defer inst.Close()
	return fn(inst)
}

// ShutDown closes every registered Instance and releases the session
// manager's store. Idempotent; safe to call more than once.
func (m *Manager) ShutDown(context.Context) error {
	m.mu.Lock()
	if m.shutDown {
		m.mu.Unlock()
		return nil
	}
	m.shutDown = true
	instances := make([]*episodic.Instance, 0, len(m.registry))
	for _, e := range m.registry {
		instances = append(instances, e.instance)
		if e.consolidator != nil {
			e.consolidator.Stop()
		}
	}
	m.mu.Unlock()

	// Close outside the lock: Close's OnZeroRefcount callback
	// (deleteContextMemory) re-acquires m.mu.
	for _, inst := range instances {
		inst.Close()
	}

	if closer, ok := m.store.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}

// deleteContextMemory implements spec §4.12's delete_context_memory: it is
// wired as every built Instance's OnZeroRefcount callback and is never
// called directly by any other caller.
func (m *Manager) deleteContextMemory(c memory.MemoryContext) {
	key := contextKey{c.GroupID, c.SessionID}
	m.mu.Lock()
	entry, ok := m.registry[key]
	delete(m.registry, key)
	m.mu.Unlock()

	if ok && entry.consolidator != nil {
		entry.consolidator.Stop()
	}
}

// buildAndRegister constructs an Instance for sess from the manager's
// shared collaborators plus sess's merged config, and registers it.
func (m *Manager) buildAndRegister(sess memory.Session) (*episodic.Instance, error) {
	memCtx := memory.MemoryContext{
		GroupID:   sess.GroupID,
		SessionID: sess.SessionID,
		AgentIDs:  toSet(sess.AgentIDs),
		UserIDs:   toSet(sess.UserIDs),
	}

	var shortTermMem *shortterm.Memory
	if m.cfg.SessionMemory.Enabled {
		eff := effectiveSessionMemoryConfig(m.cfg.SessionMemory, sess.Config)
		var summariser shortterm.Summariser
		if m.sessionLLM != nil {
			summariser = shortterm.LLMSummariser{Provider: m.sessionLLM}
		}
		shortTermMem = shortterm.New(shortterm.Config{
			Capacity:        eff.MessageCapacity,
			MaxContentChars: eff.MaxMessageLength,
			MaxTokenNum:     eff.MaxTokenNum,
			Summariser:      summariser,
		})
	}

	var declMem *declarative.Memory
	if m.cfg.LongTermMemory.Enabled {
		declMem = &declarative.Memory{
			Store:     m.graphStore,
			Embedder:  m.embedder,
			Reranker:  m.reranker,
			Workflows: m.workflows,
		}
	}

	inst, err := episodic.New(episodic.Config{
		Context:        memCtx,
		Declarative:    declMem,
		ShortTerm:      shortTermMem,
		OnZeroRefcount: m.deleteContextMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("manager: construct episodic instance: %w", err)
	}

	// When both layers are enabled, proactively flush the session's rolling
	// deque into long-term memory on a timer, so a long-running session's
	// history survives a crash between capacity-triggered evictions.
	var consolidator *shortterm.Consolidator
	if shortTermMem != nil && declMem != nil {
		consolidator = shortterm.NewConsolidator(shortterm.ConsolidatorConfig{
			Memory: shortTermMem,
			Sink:   declMem,
		})
		consolidator.Start(context.Background())
	}

	key := contextKey{sess.GroupID, sess.SessionID}
	m.mu.Lock()
	m.registry[key] = &registryEntry{instance: inst, context: memCtx, consolidator: consolidator}
	m.mu.Unlock()
	return inst, nil
}

func (m *Manager) checkNotShutDown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutDown {
		return ErrShutDown
	}
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// effectiveSessionMemoryConfig overlays the session-specific overrides
// persisted on sess.Config (spec §4.12's "merges session config over
// global config") onto the manager's global sessionmemory defaults.
func effectiveSessionMemoryConfig(global config.SessionMemoryConfig, overrides map[string]any) config.SessionMemoryConfig {
	eff := global
	if v, ok := toInt(overrides["message_capacity"]); ok {
		eff.MessageCapacity = v
	}
	if v, ok := toInt(overrides["max_message_length"]); ok {
		eff.MaxMessageLength = v
	}
	if v, ok := toInt(overrides["max_token_num"]); ok {
		eff.MaxTokenNum = v
	}
	if v, ok := overrides["model_name"].(string); ok && v != "" {
		eff.ModelName = v
	}
	return eff
}

// toInt converts the numeric types a YAML/JSON-decoded map[string]any may
// hold (int, int64, float64) to int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
