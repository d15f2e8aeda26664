package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docchat/internal/config"
	"github.com/54b3r/docchat/internal/fault"
	"github.com/54b3r/docchat/internal/ingestion"
	"github.com/54b3r/docchat/internal/logging"
)

// NewIngestCmd constructs the `docchat ingest` command, which chunks, embeds
// and indexes a directory of documents.
func NewIngestCmd() *cobra.Command {
	var (
		dir        string
		collection string
		mode       string
		pattern    string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a directory of documents into the vector store",
		Long: `Load every matching document under --dir, split it into overlapping chunks,
embed the chunks and write them to the vector index.

Files are decoded as UTF-8 (a byte-order mark selects UTF-16), falling back to
Windows-1252. Title, category and format metadata are inferred from each
file's path.

In replace mode (default) the collection is dropped and rebuilt. In append
mode only the re-ingested sources are replaced. Every chunk is embedded
before the index is touched, so a failed run leaves the previous index intact.

Examples:
  docchat ingest
  docchat ingest --dir ./documents --glob "**/*.txt"
  docchat ingest --mode append --collection handbook`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			defer func() { err = finish(cmd, err) }()

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			rc, err := loadRAG()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if collection != "" {
				rc.Index.Collection = collection
			}
			ingestMode := rc.IngestMode
			if mode != "" {
				if ingestMode, err = ingestion.ParseMode(mode); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			}
			if rc.Index.Backend == config.IndexMemory {
				return fmt.Errorf("ingest: INDEX_BACKEND=memory cannot persist an index; use qdrant")
			}

			emb, _, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			store, _, err := buildIndex(ctx, rc, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			pipeline, err := ingestion.NewPipeline(emb, store, &ingestion.Config{
				ChunkSize:    rc.ChunkSize,
				ChunkOverlap: rc.ChunkOverlap,
				Mode:         ingestMode,
				Pattern:      pattern,
				EmbedGuard:   fault.NewGuard("embedder", rc.CallTimeout, log),
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion",
				slog.String("dir", dir),
				slog.String("pattern", pattern),
				slog.String("mode", string(ingestMode)),
				slog.String("collection", rc.Index.Collection),
			)

			report, err := pipeline.IngestDir(ctx, dir, func(msg string) { log.Info(msg) })
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Documents ingested into vector db: %d documents, %d chunks (dimension %d, %s mode)\n",
				report.Documents, report.Chunks, report.Dimension, report.Mode)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", envOr("DOCUMENTS_DIR", "documents"), "Directory of documents to ingest")
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Override the Qdrant collection (default: QDRANT_COLLECTION)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Ingestion mode: replace or append (default: INGEST_MODE or replace)")
	cmd.Flags().StringVarP(&pattern, "glob", "g", ingestion.DefaultPattern, "Glob, relative to --dir, selecting documents (supports **)")

	return cmd
}
