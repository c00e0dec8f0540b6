package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/gameshelf/gameshelf/internal/logger"
	"github.com/gameshelf/gameshelf/pkg/format"
	"github.com/gameshelf/gameshelf/pkg/gameinfo"
)

var (
	infoBackground bool
	infoJSON       bool
)

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Show metadata and artwork state for one game image",
	Long: `Load and print the metadata of a single game image.

The image is loaded synchronously through the same pipeline the server
uses, then its record is printed.

Examples:
  # Print title and attributes of a bundle
  gameshelf info /games/HOMEBREW/EBOOT.PBP

  # Also fetch background artwork
  gameshelf info --backgrounds /games/disc.cso

  # Machine-readable output
  gameshelf info --json /games/disc.iso`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVarP(&infoBackground, "backgrounds", "b", false, "Also fetch background artwork")
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Emit JSON instead of text")
}

func runInfo(cmd *cobra.Command, args []string) error {
	// Keep stdout clean for the record output
	if err := logger.Init(logger.Config{Level: "ERROR", Format: "text", Output: "stderr"}); err != nil {
		return err
	}

	path := args[0]

	cache := gameinfo.New(gameinfo.Options{
		Opener: format.NewOpener(),
		Codec:  format.NewCodec(),
	})
	cache.Init()
	defer cache.Shutdown()

	rec := cache.GetInfo(path, infoBackground)
	cache.Drain()

	// Second lookup decodes whatever the loader delivered
	rec = cache.GetInfo(path, infoBackground)

	if infoJSON {
		return printInfoJSON(cmd, rec)
	}
	printInfoText(cmd, rec)
	return nil
}

func printInfoText(cmd *cobra.Command, rec *gameinfo.Record) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Path:  %s\n", rec.Path())
	fmt.Fprintf(out, "Kind:  %s\n", rec.Kind())
	fmt.Fprintf(out, "Title: %s\n", rec.Title())

	attrs := rec.Attrs()
	if len(attrs) > 0 {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(out, "Attributes:")
		for _, k := range keys {
			fmt.Fprintf(out, "  %-24s %s\n", k, attrs[k])
		}
	}

	fmt.Fprintln(out, "Artwork:")
	for _, id := range []gameinfo.SlotID{gameinfo.SlotIcon, gameinfo.SlotBackground, gameinfo.SlotBackgroundSecondary} {
		line := fmt.Sprintf("  %-24s %s", id, rec.SlotState(id))
		if art := rec.Artwork(id); art != nil {
			b := art.Image.Bounds()
			line += fmt.Sprintf(" (%s, %dx%d)", art.Format, b.Dx(), b.Dy())
		}
		fmt.Fprintln(out, line)
	}
}

func printInfoJSON(cmd *cobra.Command, rec *gameinfo.Record) error {
	type slotInfo struct {
		State     string     `json:"state"`
		Format    string     `json:"format,omitempty"`
		DecodedAt *time.Time `json:"decoded_at,omitempty"`
	}

	slots := make(map[string]slotInfo)
	for _, id := range []gameinfo.SlotID{gameinfo.SlotIcon, gameinfo.SlotBackground, gameinfo.SlotBackgroundSecondary} {
		info := slotInfo{State: rec.SlotState(id).String()}
		if art := rec.Artwork(id); art != nil {
			info.Format = art.Format
			decodedAt := rec.DecodedAt(id)
			info.DecodedAt = &decodedAt
		}
		slots[id.String()] = info
	}

	view := struct {
		Path  string              `json:"path"`
		Kind  string              `json:"kind"`
		Title string              `json:"title,omitempty"`
		Attrs map[string]string   `json:"attrs,omitempty"`
		Slots map[string]slotInfo `json:"slots"`
	}{
		Path:  rec.Path(),
		Kind:  rec.Kind().String(),
		Title: rec.Title(),
		Attrs: rec.Attrs(),
		Slots: slots,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
