package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"alfredoptarigan/resume-analyzer/internal/services"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the detected type and extracted text of a resume",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	doc, err := services.NewTextExtractor(nil).Extract(data, filepath.Base(args[0]))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "type: %s\npages: %d\n\n%s\n", doc.ContentType, doc.PageCount, doc.Text)
	return nil
}
