package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/hvac-leadsite/internal/catalog"
	"github.com/JakeFAU/hvac-leadsite/internal/server"
	"github.com/JakeFAU/hvac-leadsite/internal/sitemap"
)

// now is replaced in tests for stable lastmod values.
var now = func() time.Time { return time.Now().UTC() }

// newSitemapCmd creates the 'sitemap' subcommand. Without --publish the
// document goes to stdout; with it, to the configured blob store.
func newSitemapCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Generates sitemap.xml from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := env.Config

			cat, err := catalog.LoadFile(cfg.Catalog.Path)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			gen, err := server.NewGenerator(cfg, env.Logger.Named("sitemap"))
			if err != nil {
				return err
			}
			res := server.GenerateSitemap(gen, cat, now())

			if !publish {
				return sitemap.WriteXML(cmd.OutOrStdout(), res.Entries)
			}

			store, closeStore, err := server.OpenBlobStore(cmd.Context(), cfg, env.Logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeStore(); cerr != nil {
					env.Logger.Warn("blob store close failed", zap.Error(cerr))
				}
			}()
			loc, err := sitemap.Publish(cmd.Context(), store, cfg.Storage.Prefix, res.Entries)
			if err != nil {
				return fmt.Errorf("publish sitemap: %w", err)
			}
			env.Logger.Info("sitemap published",
				zap.String("location", loc),
				zap.Int("urls", res.Stats.Total),
				zap.Int("excluded", res.Stats.Excluded),
			)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), loc)
			return err
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "write sitemap.xml to the configured storage backend instead of stdout")
	return cmd
}
