package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/danpilch/perfgraph/pkg/baseline"
	"github.com/danpilch/perfgraph/pkg/checkpoint"
)

// storeDirs locates saved checkpoints and baselines.
type storeDirs struct {
	checkpoints string
	baselines   string
}

func addStoreFlags(fs *pflag.FlagSet, d *storeDirs) {
	fs.StringVar(&d.checkpoints, "checkpoint-dir", checkpoint.DefaultDir(), "Directory holding checkpoint files")
	fs.StringVar(&d.baselines, "baseline-dir", baseline.DefaultDir(), "Directory holding baselines")
}

// addFormatFlag adds a --format/-o flag restricted to supported.
func addFormatFlag(fs *pflag.FlagSet, target *string, def string, supported []string) {
	fs.StringVarP(target, "format", "o", def, fmt.Sprintf("Output format (%s)", strings.Join(supported, ", ")))
}

func validateFormat(format string, supported []string) error {
	for _, s := range supported {
		if format == s {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q, must be one of: %s", format, strings.Join(supported, ", "))
}
