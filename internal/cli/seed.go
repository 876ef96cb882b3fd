package cli

import (
	"context"
	"fmt"
	"os"

	"elearning-chatbot-be/internal/dto"
	"elearning-chatbot-be/internal/service"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var (
	seedFile    string
	seedWorkers int
)

// SeedFile is the YAML layout accepted by `chatctl seed`.
type SeedFile struct {
	Knowledge []dto.AddKnowledgeRequest `yaml:"knowledge"`
	FAQ       []dto.AddFAQRequest       `yaml:"faq"`
	Courses   []dto.SyncCourseRequest   `yaml:"courses"`
}

func (f *SeedFile) Len() int {
	return len(f.Knowledge) + len(f.FAQ) + len(f.Courses)
}

func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	for i := range f.Knowledge {
		f.Knowledge[i].Async = false
	}
	return &f, nil
}

// Seed writes every item of f through the knowledge service with at most
// workers concurrent writes. done is called after each successful write.
func Seed(ctx context.Context, knowledge service.IKnowledgeService, f *SeedFile, workers int, done func()) error {
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range f.Knowledge {
		req := f.Knowledge[i]
		g.Go(func() error {
			if _, err := knowledge.AddKnowledge(gctx, &req); err != nil {
				return fmt.Errorf("knowledge %q: %w", req.Id, err)
			}
			done()
			return nil
		})
	}
	for i := range f.Courses {
		req := f.Courses[i]
		g.Go(func() error {
			if _, err := knowledge.SyncCourse(gctx, &req); err != nil {
				return fmt.Errorf("course %q: %w", req.Id, err)
			}
			done()
			return nil
		})
	}
	for i := range f.FAQ {
		req := f.FAQ[i]
		g.Go(func() error {
			if _, err := knowledge.AddFAQ(gctx, &req); err != nil {
				return fmt.Errorf("faq %q: %w", req.Question, err)
			}
			done()
			return nil
		})
	}
	return g.Wait()
}

func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load knowledge, FAQ and course entries from a YAML file",
		Long: `Embed and store every entry of a seed file. Entries with an existing id
are overwritten, so seeding twice is safe.

Examples:
  chatctl seed --file configs/knowledge.seed.yaml
  chatctl seed --file extra.yaml --workers 8`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}
	cmd.Flags().StringVarP(&seedFile, "file", "f", "configs/knowledge.seed.yaml", "seed file to load")
	cmd.Flags().IntVar(&seedWorkers, "workers", 4, "concurrent writes")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := LoadSeedFile(seedFile)
	if err != nil {
		return err
	}
	if f.Len() == 0 {
		color.Yellow("Nothing to seed in %s", seedFile)
		return nil
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	bar := progressbar.NewOptions(f.Len(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Seeding[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	err = Seed(cmd.Context(), rt.container.KnowledgeService, f, seedWorkers, func() {
		_ = bar.Add(1)
	})
	if err != nil {
		color.Red("Seeding failed: %v", err)
		return err
	}

	color.Green("Seeded %d knowledge, %d FAQ and %d course entries", len(f.Knowledge), len(f.FAQ), len(f.Courses))
	return nil
}
