package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jward/linkage"
	"github.com/jward/linkage/internal/bundle"
	"github.com/jward/linkage/internal/store"
)

var (
	flagThreadCount    int
	flagStructuralOnly bool
	flagFilterFile     string
)

var initializeCmd = &cobra.Command{
	Use:   "initialize-store",
	Short: "Drop all data and seed the sentinel projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		imp, err := openImporter()
		if err != nil {
			return err
		}
		defer imp.Close()
		if err := imp.InitializeStore(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", cfg.DB)
		return nil
	},
}

var platformCmd = newImportCmd("import-platform-libraries", "Import platform library bundles", store.ProjectPlatform)
var archivesCmd = newImportCmd("import-archives", "Import archive bundles", store.ProjectArchive)
var sourcesCmd = newImportCmd("import-source-projects", "Import source project bundles", store.ProjectSource)

func newImportCmd(use, short string, kind store.ProjectKind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  short + ". Runs the entity, structural and referential stages over every selected bundle, resuming interrupted projects.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, kind)
		},
	}
	cmd.Flags().IntVar(&flagThreadCount, "thread-count", 4, "workers per stage")
	cmd.Flags().BoolVar(&flagStructuralOnly, "structural-only", false, "stop after the structural stage")
	cmd.Flags().StringVar(&flagFilterFile, "filter-file", "", "file listing the project names or hashes to import, one per line")
	return cmd
}

func runImport(cmd *cobra.Command, kind store.ProjectKind) error {
	if cmd.Flags().Changed("thread-count") {
		cfg.Threads = flagThreadCount
	}
	if cmd.Flags().Changed("structural-only") {
		cfg.StructuralOnly = flagStructuralOnly
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	filter, err := readFilter(flagFilterFile)
	if err != nil {
		return err
	}
	src, err := openSource()
	if err != nil {
		return err
	}

	imp, err := openImporter(
		linkage.WithThreadCount(cfg.Threads),
		linkage.WithStructuralOnly(cfg.StructuralOnly),
		linkage.WithFilter(filter),
	)
	if err != nil {
		return err
	}
	defer imp.Close()

	rep, ierr := imp.Import(cmd.Context(), src, kind)
	if rep != nil {
		if err := outputReport(cmd.OutOrStdout(), rep); err != nil {
			return err
		}
	}
	if err := writeMetrics(imp); err != nil {
		logger.Error("writing metrics", zap.Error(err))
	}
	return ierr
}

// openSource picks the object store when a bucket is configured, else the
// corpus directory.
func openSource() (bundle.Source, error) {
	if cfg.MinIO.Enabled() {
		return bundle.NewMinioSource(cfg.MinIO)
	}
	info, err := os.Stat(cfg.Corpus)
	if err != nil {
		return nil, fmt.Errorf("corpus not found: %s", cfg.Corpus)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus is not a directory: %s", cfg.Corpus)
	}
	return bundle.DirSource{Root: cfg.Corpus}, nil
}

// readFilter reads one project name or hash per line, ignoring blank lines
// and # comments.
func readFilter(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading filter file: %w", err)
	}
	defer f.Close()
	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading filter file: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("filter file %s lists no projects", path)
	}
	return names, nil
}

func writeMetrics(imp *linkage.Importer) error {
	if cfg.MetricsFile == "" {
		return nil
	}
	return imp.Metrics().WriteFile(cfg.MetricsFile)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Scan the store for rows that reference missing entities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		imp, err := openImporter()
		if err != nil {
			return err
		}
		defer imp.Close()
		d, err := imp.Check()
		if err != nil {
			return err
		}
		if err := outputDangling(cmd.OutOrStdout(), d); err != nil {
			return err
		}
		if d.Total() > 0 {
			return fmt.Errorf("%w: %d dangling row(s)", linkage.ErrInconsistent, d.Total())
		}
		return nil
	},
}
