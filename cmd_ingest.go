package main

import (
	"fmt"

	"github.com/Dannidrenovci/myriad-slides/ingest"
	"github.com/Dannidrenovci/myriad-slides/stores"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest <presentation-id>",
	Short: "Re-run slide generation for an uploaded presentation",
	Long: `Extracts the text of the presentation's uploaded .pptx file, asks the
configured model for slides and replaces the stored slides with the result.

Use --file to process a different blob key than the one stored with the
presentation.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "Blob key of the .pptx file to process.")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	store, err := stores.GetStore(cfg.Storage)
	if err != nil {
		return err
	}
	blobs, err := stores.GetBlobStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	p, err := store.GetPresentation(ctx, "", id)
	if err != nil {
		return fmt.Errorf("load presentation %s: %w", id, err)
	}
	path := p.FilePath
	if ingestFile != "" {
		path = ingestFile
	}
	if path == "" {
		return fmt.Errorf("presentation %s has no uploaded file", id)
	}

	pipeline := ingest.New(store, store, blobs, newModel(ctx, cfg.AI))
	if err := pipeline.Run(ctx, id, path); err != nil {
		return err
	}

	n, err := store.CountSlides(ctx, id)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"presentation_id": id,
		"slides":          n,
	}).Info("Presentation processed")
	return nil
}
