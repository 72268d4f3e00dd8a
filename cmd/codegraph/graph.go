package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"codegraph/internal/config"
	"codegraph/internal/graph"
	"codegraph/internal/modgraph"
	"codegraph/internal/storage"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Query the call graph",
}

var (
	cyclesAspect string

	neighborhoodDepth    int
	neighborhoodMaxNodes int

	hubsMinIn        int
	hubsMinOut       int
	hubsExportedOnly bool
	hubsLimit        int

	callgraphMinWeight int
	callgraphFormat    string
)

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Find strongly connected components in the call graph",
	Long: `Finds call cycles. With --aspect, definitions already annotated for that
aspect are removed from the graph first, so only unprocessed cycles remain.`,
	Run: runCycles,
}

var neighborhoodCmd = &cobra.Command{
	Use:   "neighborhood <definition>",
	Short: "Show callers and callees around a definition",
	Long: `Walks the call graph both directions from a definition, bounded by depth
and node count. The definition is named by id or by symbol name.`,
	Args: cobra.ExactArgs(1),
	Run:  runNeighborhood,
}

var hubsCmd = &cobra.Command{
	Use:   "hubs",
	Short: "List high-connectivity definitions",
	Run:   runHubs,
}

var callgraphCmd = &cobra.Command{
	Use:   "callgraph",
	Short: "Dump the definition-level call graph",
	Run:   runCallgraph,
}

var syncModulesCmd = &cobra.Command{
	Use:   "sync-modules",
	Short: "Aggregate the call graph to module interactions",
	Long: `Maps call edges onto module assignments, classifies each module pair
(business, utility, test-internal), and upserts the result into the
interactions table. Definitions without a module assignment are skipped.`,
	Run: runSyncModules,
}

func init() {
	cyclesCmd.Flags().StringVar(&cyclesAspect, "aspect", "",
		"Drop definitions already annotated for this metadata aspect")

	neighborhoodCmd.Flags().IntVar(&neighborhoodDepth, "depth", 0,
		"Traversal depth (default: config graph.maxNeighborhoodDepth)")
	neighborhoodCmd.Flags().IntVar(&neighborhoodMaxNodes, "max-nodes", 0,
		"Node cap (default: config graph.maxNeighborhoodNodes)")

	hubsCmd.Flags().IntVar(&hubsMinIn, "min-in", 2, "Minimum incoming edges")
	hubsCmd.Flags().IntVar(&hubsMinOut, "min-out", 2, "Minimum outgoing edges")
	hubsCmd.Flags().BoolVar(&hubsExportedOnly, "exported", false, "Only exported definitions")
	hubsCmd.Flags().IntVar(&hubsLimit, "limit", 20, "Maximum results")

	callgraphCmd.Flags().IntVar(&callgraphMinWeight, "min-weight", 1, "Minimum edge weight")
	callgraphCmd.Flags().StringVar(&callgraphFormat, "format", "human", "Output format (human, json)")

	graphCmd.AddCommand(cyclesCmd, neighborhoodCmd, hubsCmd, callgraphCmd, syncModulesCmd)
	rootCmd.AddCommand(graphCmd)
}

// graphContext bundles what every graph subcommand needs.
type graphContext struct {
	db    *storage.DB
	cfg   *config.Config
	repo  *graph.Repository
	defs  *storage.DefinitionRepository
	paths map[int64]string
}

func newGraphContext() *graphContext {
	repoRoot := mustGetRepoRoot()
	requireIndexed(repoRoot)
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg)

	db := mustOpenDB(repoRoot, logger)
	files, err := storage.NewFileRepository(db).GetAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	paths := make(map[int64]string, len(files))
	for _, f := range files {
		paths[f.ID] = f.Path
	}

	return &graphContext{
		db:    db,
		cfg:   cfg,
		repo:  graph.NewRepository(db, logger, cfg.Graph.IncludeJSX),
		defs:  storage.NewDefinitionRepository(db),
		paths: paths,
	}
}

// describe renders a definition as "name (kind) path:line".
func (gc *graphContext) describe(def *storage.DefinitionRecord) string {
	path := gc.paths[def.FileID]
	if path == "" {
		path = "?"
	} else {
		path = filepath.Base(path)
	}
	return fmt.Sprintf("%s (%s) %s:%d", def.Name, def.Kind, path, def.StartRow+1)
}

// resolveDefinition accepts a numeric id or a symbol name. Ambiguous names
// list the candidates and exit.
func (gc *graphContext) resolveDefinition(arg string) *storage.DefinitionRecord {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		def, err := gc.defs.GetByID(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if def != nil {
			return def
		}
	}

	matches, err := gc.defs.GetByName(arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	switch len(matches) {
	case 0:
		fmt.Fprintf(os.Stderr, "Error: no definition named %q\n", arg)
		os.Exit(1)
	case 1:
		return matches[0]
	}

	fmt.Fprintf(os.Stderr, "Multiple definitions named %q; use the id instead:\n", arg)
	for _, def := range matches {
		fmt.Fprintf(os.Stderr, "  %d: %s\n", def.ID, gc.describe(def))
	}
	os.Exit(1)
	return nil
}

func runCycles(cmd *cobra.Command, args []string) {
	gc := newGraphContext()
	defer gc.db.Close()

	cycles, err := gc.repo.FindCycles(cyclesAspect)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(cycles) == 0 {
		fmt.Println("No call cycles found.")
		return
	}

	fmt.Printf("Found %d cycle(s):\n", len(cycles))
	for i, cycle := range cycles {
		fmt.Printf("\nCycle %d (%d definitions):\n", i+1, len(cycle))
		for _, id := range cycle {
			def, err := gc.defs.GetByID(id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if def == nil {
				continue
			}
			fmt.Printf("  %s\n", gc.describe(def))
		}
	}
}

func runNeighborhood(cmd *cobra.Command, args []string) {
	gc := newGraphContext()
	defer gc.db.Close()

	depth := neighborhoodDepth
	if depth <= 0 {
		depth = gc.cfg.Graph.MaxNeighborhoodDepth
	}
	maxNodes := neighborhoodMaxNodes
	if maxNodes <= 0 {
		maxNodes = gc.cfg.Graph.MaxNeighborhoodNodes
	}

	start := gc.resolveDefinition(args[0])
	neighborhood, err := gc.repo.GetNeighborhood(start.ID, depth, maxNodes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Neighborhood of %s (depth %d):\n", gc.describe(start), depth)
	for _, node := range neighborhood.Nodes {
		marker := ""
		if node.Annotated {
			marker = " [annotated]"
		}
		fmt.Printf("  %d: %s%s\n", node.Depth, gc.describe(node.Definition), marker)
	}
	fmt.Printf("%d edge(s)\n", len(neighborhood.Edges))
	if neighborhood.Truncated {
		fmt.Println("Truncated by node cap; raise --max-nodes for the full picture.")
	}
}

func runHubs(cmd *cobra.Command, args []string) {
	gc := newGraphContext()
	defer gc.db.Close()

	var exported *bool
	if hubsExportedOnly {
		t := true
		exported = &t
	}

	hubs, err := gc.repo.GetHighConnectivitySymbols(hubsMinIn, hubsMinOut, exported, hubsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(hubs) == 0 {
		fmt.Println("No definitions meet the connectivity thresholds.")
		return
	}

	fmt.Printf("%-5s %-5s %s\n", "in", "out", "definition")
	for _, hub := range hubs {
		fmt.Printf("%-5d %-5d %s\n", hub.InDegree, hub.OutDegree, gc.describe(hub.Definition))
	}
}

// CallEdgeCLI is one call edge in callgraph --format json output.
type CallEdgeCLI struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
	Line   int    `json:"line"`
}

func runCallgraph(cmd *cobra.Command, args []string) {
	gc := newGraphContext()
	defer gc.db.Close()

	g, err := graph.BuildCallGraph(gc.db, gc.cfg.Graph.IncludeJSX)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var out []CallEdgeCLI
	for _, edge := range g.Edges {
		if edge.Weight < callgraphMinWeight {
			continue
		}
		from, err := gc.defs.GetByID(edge.FromID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		to, err := gc.defs.GetByID(edge.ToID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if from == nil || to == nil {
			continue
		}
		out = append(out, CallEdgeCLI{
			From:   gc.describe(from),
			To:     gc.describe(to),
			Weight: edge.Weight,
			Line:   edge.MinUsageLine,
		})
	}

	if callgraphFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
			os.Exit(1)
		}
		return
	}

	for _, edge := range out {
		fmt.Printf("%s -> %s (x%d, first at line %d)\n", edge.From, edge.To, edge.Weight, edge.Line)
	}
	fmt.Printf("%d edge(s)\n", len(out))
}

func runSyncModules(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	requireIndexed(repoRoot)
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg)

	db := mustOpenDB(repoRoot, logger)
	defer db.Close()

	svc := modgraph.NewService(db, cfg.Modules, logger, cfg.Graph.IncludeJSX)
	result, err := svc.SyncFromCallGraph()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Module interactions synced: %d created, %d updated\n",
		result.Created, result.Updated)
}
