package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-bulletin-etl/internal/adapter/feed"
	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
)

// extraction is one bulletin's parsed fields, printed by the extract command.
type extraction struct {
	domain.BulletinItem
	domain.ExtractedFields
	Missing []string `json:"missing,omitempty"`
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Parse a saved feed document and print the extracted bulletin fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return errors.New("--file is required")
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open feed file: %w", err)
		}
		defer f.Close()

		items, err := feed.ParseItems(f)
		if err != nil {
			return err
		}

		out := make([]extraction, 0, len(items))
		for _, item := range items {
			if !domain.IsSeismicBulletin(item) {
				continue
			}
			fields := domain.ExtractFields(item.Description)
			out = append(out, extraction{BulletinItem: item, ExtractedFields: fields, Missing: fields.Missing()})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	extractCmd.Flags().StringP("file", "f", "", "path to an RSS document")
}
