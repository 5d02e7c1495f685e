package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "iwt",
	Short: "Backend for an AI-enriched travel photo journal",
	Long: `IWT is the backend of a travel photo journal. Photos are uploaded
through presigned URLs, enriched with EXIF metadata, reverse geocoding
and LLM analysis (OpenAI, Gemini, Groq), and assembled into posts with
generated narratives and recommended routes.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// Missing .env is fine, config falls back to process env vars.
	_ = godotenv.Load()
}
