package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/duckgeunpark/IWT/internal/classify"
	"github.com/duckgeunpark/IWT/internal/config"
	"github.com/duckgeunpark/IWT/internal/enrich"
	"github.com/duckgeunpark/IWT/internal/exif"
	"github.com/duckgeunpark/IWT/internal/geocode"
	"github.com/duckgeunpark/IWT/internal/labels"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <photo.jpg> [photo.jpg...]",
	Short: "Enrich local photo files",
	Long: `Run the enrichment pipeline over local photo files without a server.
Each file's EXIF is extracted and fed through normalization, label
derivation, reverse geocoding and LLM analysis. Results go to stdout as
a JSON array; progress and the token usage summary go to stderr.

Examples:
  # Enrich photos with the default provider
  iwt enrich vacation/*.jpg

  # Use OpenAI and read text from photos even when they carry GPS
  iwt enrich --provider openai --ocr vacation/*.jpg

  # Limit concurrent API calls
  iwt enrich --concurrency 2 vacation/*.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().Int("concurrency", 3, "Number of parallel workers")
	enrichCmd.Flags().String("provider", "", "AI provider: groq, openai or gemini (defaults to AI_PROVIDER)")
	enrichCmd.Flags().Bool("ocr", false, "Force the image text pass even when GPS is present")
}

// fileDownloader adapts local files to the orchestrator's storage
// interface so the text pass can read photo bytes by path.
type fileDownloader struct{}

func (fileDownloader) Download(ctx context.Context, key string) ([]byte, error) {
	return os.ReadFile(key)
}

// enrichedFile is one file's pipeline output, mirroring the shape the
// enrichment endpoint returns for uploaded photos.
type enrichedFile struct {
	File       string                `json:"file"`
	ExifData   exif.NormalizedExif   `json:"exif_data"`
	Labels     labels.Set            `json:"labels"`
	Location   *enrich.LocationGuess `json:"location,omitempty"`
	Categories classify.Categories   `json:"categories"`
	Error      string                `json:"error,omitempty"`
}

func runEnrich(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	runOCR := mustGetBool(cmd, "ocr")
	if concurrency < 1 {
		concurrency = 1
	}

	ctx := cmd.Context()
	cfg := config.Load()

	provider, err := newAIProvider(ctx, cfg, mustGetString(cmd, "provider"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Using AI provider %s\n", provider.Name())

	geocoder := geocode.NewClient(geocoderOptions(&cfg.Geocoder)...)
	enricher := enrich.NewOrchestrator(geocoder, provider, fileDownloader{})

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetDescription("Enriching photos"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	// Results are indexed by argument position so the output order
	// matches the input order regardless of worker scheduling.
	results := make([]enrichedFile, len(args))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, file := range args {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = enrichFile(ctx, enricher, file, runOCR)
			bar.Add(1)
		}(i, file)
	}

	wg.Wait()
	fmt.Fprintln(os.Stderr)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	usage := provider.GetUsage()
	fmt.Fprintf(os.Stderr, "Tokens: %d in / %d out, cost $%.4f\n",
		usage.InputTokens, usage.OutputTokens, usage.TotalCost)
	return nil
}

// enrichFile runs the pipeline for one local file. EXIF extraction is
// best effort: a file without EXIF still goes through the text pass.
func enrichFile(ctx context.Context, enricher *enrich.Orchestrator, file string, runOCR bool) enrichedFile {
	result := enrichedFile{File: file}

	f, err := os.Open(file)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	raw, err := exif.ExtractFromImage(f)
	f.Close()
	if err != nil {
		raw = nil
	}

	norm := exif.Normalize(raw)
	result.ExifData = norm
	result.Labels = labels.Derive(norm)

	enriched := enricher.EnrichLocation(ctx, enrich.Request{
		GPS:      norm.GPS,
		DateTime: norm.DateTime,
		ImageRef: file,
		RunOCR:   runOCR,
	})

	merged := enriched.Merged
	if !merged.Empty() {
		result.Location = &merged
	}
	result.Categories = classify.Classify(classify.Location{
		Country:  merged.Country,
		City:     merged.City,
		Region:   merged.Region,
		Landmark: merged.Landmark,
	}, norm)

	return result
}
