package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bohanco/hpimage/internal/downloader"
	"github.com/bohanco/hpimage/internal/publisher"
)

// newDownloadCmd creates the 'download' subcommand: fetch every rendition
// of the images not yet available, then flip them to ready.
func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download renditions of images that are not yet available",
		Long: `Reads the set of images whose renditions have not been downloaded
yet, fetches every rendition size (plus the high-res one where flagged)
into the configured storage sinks, marks the images as available, and
publishes a readiness notification.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger

			images, err := appInstance.Store.UnreadyImages(cmd.Context())
			if err != nil {
				return fmt.Errorf("list unready images: %w", err)
			}
			if len(images) == 0 {
				logger.Info("no unready images; nothing to download")
				return nil
			}

			dl, err := downloader.New(downloader.Config{
				Endpoint:    appInstance.Config.Download.Endpoint,
				Timeout:     appInstance.Config.Download.Timeout(),
				Concurrency: appInstance.Config.Download.Concurrency,
			}, appInstance.BlobStore, logger)
			if err != nil {
				return fmt.Errorf("build downloader: %w", err)
			}

			if err := dl.Download(cmd.Context(), images); err != nil {
				return fmt.Errorf("download images: %w", err)
			}

			urlBases := make([]string, 0, len(images))
			for urlBase := range images {
				urlBases = append(urlBases, urlBase)
			}
			sort.Strings(urlBases)

			if err := appInstance.Store.SetImagesReady(cmd.Context(), urlBases); err != nil {
				return fmt.Errorf("mark images ready: %w", err)
			}
			if err := appInstance.Publisher.Publish(cmd.Context(), publisher.ImagesReady{URLBases: urlBases}); err != nil {
				// Images downloaded and marked ready; a lost notification
				// is recoverable downstream.
				logger.Warn("failed to publish readiness notification", zap.Error(err))
			}

			logger.Info("download complete", zap.Int("images", len(urlBases)))
			return nil
		},
	}

	return cmd
}
