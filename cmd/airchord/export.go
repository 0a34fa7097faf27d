package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/recording"
	"github.com/ayusman/airchord/internal/store"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		dir         string
		clearStored bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the latest recording to a timestamped file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			dbPath, err := storePath(cfg)
			if err != nil {
				return err
			}
			st, err := store.New(dbPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			a, err := st.Artifacts().Latest()
			if errors.Is(err, store.ErrNotFound) {
				return errors.New("no recording to export")
			}
			if err != nil {
				return err
			}

			if dir == "" {
				dir = cfg.Recording.OutputDir
			}
			if dir == "" {
				dir = "."
			}
			path, err := recording.Export(&recording.Artifact{
				ID:        a.ID,
				MimeType:  a.MimeType,
				Data:      a.Data,
				Size:      len(a.Data),
				CreatedAt: a.CreatedAt,
			}, dir)
			if err != nil {
				return err
			}

			logger.Info("recording exported", zap.String("path", path), zap.Int("bytes", len(a.Data)))
			if clearStored {
				if err := st.Artifacts().Clear(); err != nil {
					return fmt.Errorf("clear stored recording: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "o", "", "output directory (overrides recording.output_dir)")
	cmd.Flags().BoolVar(&clearStored, "clear", false, "remove the stored recording after exporting it")
	return cmd
}
