package graph

import (
	"log/slog"

	"codegraph/internal/storage"
)

// Repository answers graph-level queries over the stored symbol graph:
// cycles, neighborhoods, connectivity hubs, inheritance inference.
type Repository struct {
	db          *storage.DB
	definitions *storage.DefinitionRepository
	metadata    *storage.MetadataRepository
	annotations *storage.AnnotationRepository
	logger      *slog.Logger
	includeJSX  bool
}

// NewRepository creates a graph repository. includeJSX widens call edges to
// JSX element usages.
func NewRepository(db *storage.DB, logger *slog.Logger, includeJSX bool) *Repository {
	return &Repository{
		db:          db,
		definitions: storage.NewDefinitionRepository(db),
		metadata:    storage.NewMetadataRepository(db),
		annotations: storage.NewAnnotationRepository(db),
		logger:      logger,
		includeJSX:  includeJSX,
	}
}

// EdgeExists reports whether a call edge links the two definitions.
func (r *Repository) EdgeExists(fromID, toID int64) (bool, error) {
	g, err := BuildCallGraph(r.db, r.includeJSX)
	if err != nil {
		return false, err
	}
	return g.EdgeExists(fromID, toID), nil
}
