package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/config"
	"github.com/bartekus/sddgov/internal/logger"
	"github.com/bartekus/sddgov/internal/projectroot"
)

// workspace is the repository a command runs against.
type workspace struct {
	Root   string
	Config config.Config
}

// openWorkspace locates the repository from the working directory (or the
// directory itself when it is not a repository) and loads .sddgov.yaml.
func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeFatal, "getting working directory", err)
	}
	root, err := projectroot.FindOrCwd(wd)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeFatal, "locating repository root", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeFatal, "", err)
	}
	logger.Debug("%s: repo root %s", cmd.CommandPath(), root)
	return &workspace{Root: root, Config: cfg}, nil
}
