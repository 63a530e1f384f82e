package cmd

import (
	"errors"
	"fmt"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"smoothstreamd/internal/catalog"
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Point the host video list at a local server",
	Long: `Rewrite the patched video list so every episode resolves to
http://127.0.0.1:<port>/<episode>/manifest. The pristine list is kept
(or restored from the patched copy) so the remote URLs stay known.`,
	RunE: runPatch,
}

func init() {
	rootCmd.AddCommand(patchCmd)
	patchCmd.Flags().Int("port", 0, "port the server will listen on")
}

func runPatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Server.Port == 0 {
		return errors.New("a fixed port is required: use --port or server.port")
	}

	videos, err := catalog.Patch(afero.NewOsFs(), cfg.Paths.VideoList, cfg.Paths.PatchedVideoList, cfg.Server.Port)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Patched %s: %d episodes now point at port %d\n",
		cfg.Paths.PatchedVideoList, len(videos), cfg.Server.Port)
	return nil
}
