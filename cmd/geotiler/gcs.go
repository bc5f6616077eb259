package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/airbusgeo/osio/gcs"
)

// registerGCS makes gs://bucket/object rasters readable by gdal.
func registerGCS(ctx context.Context, blocksize string, numBlocks int) error {
	stcl, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("storage.newclient: %w", err)
	}
	gcsh, err := gcs.Handle(ctx, gcs.GCSClient(stcl))
	if err != nil {
		return fmt.Errorf("gcs.handle: %w", err)
	}
	gcsa, err := osio.NewAdapter(gcsh, osio.BlockSize(blocksize), osio.NumCachedBlocks(numBlocks))
	if err != nil {
		return fmt.Errorf("osio.new: %w", err)
	}
	if err := godal.RegisterVSIHandler("gs://", gcsa); err != nil {
		return fmt.Errorf("register osio: %w", err)
	}
	return nil
}
