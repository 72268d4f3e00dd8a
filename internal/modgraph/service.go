// Package modgraph aggregates the definition-level call graph to module
// pairs and persists the result as interactions.
package modgraph

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"codegraph/internal/config"
	"codegraph/internal/graph"
	"codegraph/internal/storage"
)

// Pattern classifies a module-level call edge.
type Pattern string

const (
	PatternBusiness     Pattern = "business"
	PatternUtility      Pattern = "utility"
	PatternTestInternal Pattern = "test-internal"
)

// CalledSymbol is one called definition on a module edge with its call count.
type CalledSymbol struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Calls int    `json:"calls"`
}

// ModuleEdge is an aggregated, classified module-pair call edge.
type ModuleEdge struct {
	FromModuleID  string
	ToModuleID    string
	Weight        int
	CallerCount   int
	CalledSymbols []CalledSymbol
	Pattern       Pattern
}

// SyncResult reports what syncFromCallGraph wrote.
type SyncResult struct {
	Created int
	Updated int
}

// Service builds and persists the module-level call graph.
type Service struct {
	db           *storage.DB
	modules      *storage.ModuleRepository
	interactions *storage.InteractionRepository
	definitions  *storage.DefinitionRepository
	cfg          config.ModulesConfig
	logger       *slog.Logger
	includeJSX   bool
}

// NewService creates a module call-graph service.
func NewService(db *storage.DB, cfg config.ModulesConfig, logger *slog.Logger, includeJSX bool) *Service {
	return &Service{
		db:           db,
		modules:      storage.NewModuleRepository(db),
		interactions: storage.NewInteractionRepository(db),
		definitions:  storage.NewDefinitionRepository(db),
		cfg:          cfg,
		logger:       logger,
		includeJSX:   includeJSX,
	}
}

// BuildModuleCallGraph maps each call edge to its endpoints' modules,
// drops edges with an unassigned endpoint or identical modules, and
// aggregates the survivors per module pair.
func (s *Service) BuildModuleCallGraph() ([]ModuleEdge, error) {
	g, err := graph.BuildCallGraph(s.db, s.includeJSX)
	if err != nil {
		return nil, err
	}

	membership, err := s.modules.MembershipByDefinition()
	if err != nil {
		return nil, err
	}
	testModules, err := s.modules.TestModuleIDs()
	if err != nil {
		return nil, err
	}

	type accumulator struct {
		weight  int
		callers map[int64]bool
		called  map[int64]int
	}
	pairs := make(map[[2]string]*accumulator)

	for _, edge := range g.Edges {
		fromModule, okFrom := membership[edge.FromID]
		toModule, okTo := membership[edge.ToID]
		if !okFrom || !okTo || fromModule == toModule {
			continue
		}

		key := [2]string{fromModule, toModule}
		acc, ok := pairs[key]
		if !ok {
			acc = &accumulator{callers: make(map[int64]bool), called: make(map[int64]int)}
			pairs[key] = acc
		}
		acc.weight += edge.Weight
		acc.callers[edge.FromID] = true
		acc.called[edge.ToID] += edge.Weight
	}

	var edges []ModuleEdge
	for key, acc := range pairs {
		called, hasClass, err := s.calledSymbols(acc.called)
		if err != nil {
			return nil, err
		}

		edge := ModuleEdge{
			FromModuleID:  key[0],
			ToModuleID:    key[1],
			Weight:        acc.weight,
			CallerCount:   len(acc.callers),
			CalledSymbols: called,
		}
		edge.Pattern = s.classify(edge, hasClass, testModules)
		edges = append(edges, edge)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromModuleID != edges[j].FromModuleID {
			return edges[i].FromModuleID < edges[j].FromModuleID
		}
		return edges[i].ToModuleID < edges[j].ToModuleID
	})
	return edges, nil
}

// classify tags one module edge. Test-module pairs are internal plumbing;
// heavily fanned-in non-class edges are utility traffic; everything else is
// a business dependency.
func (s *Service) classify(edge ModuleEdge, hasClass bool, testModules map[string]bool) Pattern {
	if testModules[edge.FromModuleID] && testModules[edge.ToModuleID] {
		return PatternTestInternal
	}

	if len(edge.CalledSymbols) > 0 {
		avgCalls := float64(edge.Weight) / float64(len(edge.CalledSymbols))
		if edge.Weight > s.cfg.UtilityMinWeight &&
			edge.CallerCount >= s.cfg.UtilityMinCallers &&
			avgCalls > s.cfg.UtilityMinAvgCalls &&
			!hasClass {
			return PatternUtility
		}
	}
	return PatternBusiness
}

func (s *Service) calledSymbols(called map[int64]int) ([]CalledSymbol, bool, error) {
	ids := make([]int64, 0, len(called))
	for id := range called {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var symbols []CalledSymbol
	hasClass := false
	for _, id := range ids {
		def, err := s.definitions.GetByID(id)
		if err != nil {
			return nil, false, err
		}
		if def == nil {
			continue
		}
		if def.Kind == "class" {
			hasClass = true
		}
		symbols = append(symbols, CalledSymbol{Name: def.Name, Kind: def.Kind, Calls: called[id]})
	}
	return symbols, hasClass, nil
}

// SyncFromCallGraph builds the module call graph and upserts every edge into
// the interactions table.
func (s *Service) SyncFromCallGraph() (*SyncResult, error) {
	edges, err := s.BuildModuleCallGraph()
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	for _, edge := range edges {
		symbolsJSON, err := json.Marshal(edge.CalledSymbols)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal symbol list: %w", err)
		}

		created, err := s.interactions.Upsert(&storage.InteractionRecord{
			FromModuleID: edge.FromModuleID,
			ToModuleID:   edge.ToModuleID,
			Weight:       edge.Weight,
			Pattern:      string(edge.Pattern),
			SymbolsJSON:  string(symbolsJSON),
		})
		if err != nil {
			return nil, err
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.logger.Debug("module call graph synced",
		"edges", len(edges), "created", result.Created, "updated", result.Updated)
	return result, nil
}
