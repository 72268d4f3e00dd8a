// Package export writes the indexed graph as a compressed JSON snapshot,
// suitable for diffing runs or feeding downstream tooling.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"codegraph/internal/graph"
	"codegraph/internal/storage"
)

// Snapshot is the serialized state of one indexed repository.
type Snapshot struct {
	Metadata     Metadata      `json:"metadata"`
	Files        []File        `json:"files"`
	Definitions  []Definition  `json:"definitions"`
	Calls        []Call        `json:"calls"`
	Modules      []Module      `json:"modules"`
	Interactions []Interaction `json:"interactions,omitempty"`
}

// Metadata describes when and from what the snapshot was taken.
type Metadata struct {
	Generated   string `json:"generated"`
	RunID       string `json:"runId,omitempty"`
	FileCount   int    `json:"fileCount"`
	SymbolCount int    `json:"symbolCount"`
}

type File struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	Language string `json:"language"`
	Hash     string `json:"hash"`
}

type Definition struct {
	ID         int64  `json:"id"`
	FileID     int64  `json:"fileId"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	IsExported bool   `json:"isExported"`
	IsDefault  bool   `json:"isDefault,omitempty"`
	StartRow   int    `json:"startRow"`
	EndRow     int    `json:"endRow"`
	Module     string `json:"module,omitempty"`
}

// Call is one definition-level call edge.
type Call struct {
	FromID int64 `json:"from"`
	ToID   int64 `json:"to"`
	Weight int   `json:"weight"`
	Line   int   `json:"line"`
}

type Module struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsTest bool   `json:"isTest,omitempty"`
}

// Interaction is one persisted module-level call edge.
type Interaction struct {
	FromModuleID string          `json:"fromModule"`
	ToModuleID   string          `json:"toModule"`
	Weight       int             `json:"weight"`
	Pattern      string          `json:"pattern"`
	Symbols      json.RawMessage `json:"symbols,omitempty"`
}

// Exporter builds and writes graph snapshots.
type Exporter struct {
	db         *storage.DB
	logger     *slog.Logger
	includeJSX bool
}

// NewExporter creates an exporter reading from the given database.
func NewExporter(db *storage.DB, logger *slog.Logger, includeJSX bool) *Exporter {
	return &Exporter{db: db, logger: logger, includeJSX: includeJSX}
}

// Build assembles a snapshot of everything currently indexed.
func (e *Exporter) Build() (*Snapshot, error) {
	snap := &Snapshot{
		Metadata: Metadata{Generated: time.Now().UTC().Format(time.RFC3339)},
	}

	if run, err := storage.NewRunRepository(e.db).Latest(); err != nil {
		return nil, err
	} else if run != nil {
		snap.Metadata.RunID = run.ID
	}

	files, err := storage.NewFileRepository(e.db).GetAll()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		snap.Files = append(snap.Files, File{
			ID: f.ID, Path: f.Path, Language: f.Language, Hash: f.ContentHash,
		})
	}

	membership, err := storage.NewModuleRepository(e.db).MembershipByDefinition()
	if err != nil {
		return nil, err
	}
	defs, err := storage.NewDefinitionRepository(e.db).GetAll("", nil)
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		snap.Definitions = append(snap.Definitions, Definition{
			ID: d.ID, FileID: d.FileID, Name: d.Name, Kind: d.Kind,
			IsExported: d.IsExported, IsDefault: d.IsDefault,
			StartRow: d.StartRow, EndRow: d.EndRow,
			Module: membership[d.ID],
		})
	}

	g, err := graph.BuildCallGraph(e.db, e.includeJSX)
	if err != nil {
		return nil, err
	}
	for _, edge := range g.Edges {
		snap.Calls = append(snap.Calls, Call{
			FromID: edge.FromID, ToID: edge.ToID,
			Weight: edge.Weight, Line: edge.MinUsageLine,
		})
	}

	modules, err := storage.NewModuleRepository(e.db).GetAll()
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		snap.Modules = append(snap.Modules, Module{ID: m.ID, Name: m.Name, IsTest: m.IsTest})
	}

	interactions, err := storage.NewInteractionRepository(e.db).GetAll()
	if err != nil {
		return nil, err
	}
	for _, in := range interactions {
		entry := Interaction{
			FromModuleID: in.FromModuleID, ToModuleID: in.ToModuleID,
			Weight: in.Weight, Pattern: in.Pattern,
		}
		if in.SymbolsJSON != "" {
			entry.Symbols = json.RawMessage(in.SymbolsJSON)
		}
		snap.Interactions = append(snap.Interactions, entry)
	}

	snap.Metadata.FileCount = len(snap.Files)
	snap.Metadata.SymbolCount = len(snap.Definitions)
	return snap, nil
}

// Write streams the snapshot as gzip-compressed JSON.
func (e *Exporter) Write(w io.Writer, snap *Snapshot) error {
	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish snapshot stream: %w", err)
	}
	return nil
}

// WriteFile builds a snapshot and writes it to path, creating parent
// directories as needed.
func (e *Exporter) WriteFile(path string) (*Snapshot, error) {
	snap, err := e.Build()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := e.Write(f, snap); err != nil {
		return nil, err
	}

	e.logger.Debug("snapshot written",
		"path", path,
		"files", snap.Metadata.FileCount,
		"definitions", snap.Metadata.SymbolCount,
		"calls", len(snap.Calls))
	return snap, nil
}

// Read decompresses and decodes a snapshot previously produced by Write.
func Read(r io.Reader) (*Snapshot, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot stream: %w", err)
	}
	defer gz.Close()

	var snap Snapshot
	if err := json.NewDecoder(gz).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
