package cli

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marrow-forensics/marrow/internal/errors"
	"github.com/marrow-forensics/marrow/internal/scanner"
	"github.com/marrow-forensics/marrow/internal/winmem"
)

func newScanCmd() *cobra.Command {
	var opts imageOptions
	var patterns []string
	var regexps []string
	var regions []string
	var vadRoot string
	var skipUnmapped bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan memory regions for byte patterns",
		Long: `Scan regions of the image for labelled byte patterns or regular
expressions. Regions default to the whole physical layer; pass --region
for explicit ranges, or --vad-root to walk a process's VAD tree and scan
each described range.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := setup(opts)
			if err != nil {
				return err
			}
			defer errors.DeferClose(state.log, state.image, "closing image layer")

			matcher, err := buildMatcher(patterns, regexps, state.cfg.Scan.ChunkSize, state.cfg.Scan.Overlap)
			if err != nil {
				return err
			}
			src, err := buildRegions(state, regions, vadRoot, opts.table)
			if err != nil {
				return err
			}

			s, err := scanner.New(state.ctx.Memory, matcher,
				scanner.Config{
					SkipUnmapped:  skipUnmapped || state.cfg.Scan.SkipUnmapped,
					MaxRegionSize: state.cfg.Scan.MaxSize,
				},
				state.ctx.Log)
			if err != nil {
				return err
			}
			state.log.Info().Str("session", s.Session().String()).Msg("scan starting")

			count := 0
			err = s.Run(src, func(h scanner.Hit) bool {
				cmd.Printf("%#x\t%s\t%s\n", h.Offset, h.LayerName, h.Label)
				count++
				return true
			})
			if err != nil {
				return err
			}
			if w, ok := src.(*winmem.VADWalker); ok && w.Err() != nil {
				return w.Err()
			}
			state.log.Info().Int("hits", count).Msg("scan complete")
			return nil
		},
	}

	addImageFlags(cmd.Flags(), &opts)
	cmd.Flags().StringArrayVarP(&patterns, "pattern", "p", nil, "labelled hex pattern, label:68656c6c6f")
	cmd.Flags().StringArrayVarP(&regexps, "regexp", "e", nil, "labelled regular expression, label:expr")
	cmd.Flags().StringArrayVarP(&regions, "region", "r", nil, "explicit region start-end (hex ok), e.g. 0x1000-0x2000")
	cmd.Flags().StringVar(&vadRoot, "vad-root", "", "walk the VAD tree rooted at this offset and scan its ranges")
	cmd.Flags().BoolVar(&skipUnmapped, "skip-unmapped", false, "skip unmapped chunks instead of aborting")
	return cmd
}

func buildMatcher(patterns, regexps []string, chunkSize, overlap uint64) (scanner.Matcher, error) {
	switch {
	case len(patterns) > 0 && len(regexps) > 0:
		return nil, fmt.Errorf("--pattern and --regexp are mutually exclusive")

	case len(patterns) > 0:
		parsed := make([]scanner.Pattern, 0, len(patterns))
		for _, p := range patterns {
			label, hexBytes, ok := strings.Cut(p, ":")
			if !ok {
				return nil, fmt.Errorf("pattern %q: want label:hexbytes", p)
			}
			raw, err := hex.DecodeString(hexBytes)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", p, err)
			}
			parsed = append(parsed, scanner.Pattern{Label: label, Bytes: raw})
		}
		m, err := scanner.NewBytesMatcher(parsed...)
		if err != nil {
			return nil, err
		}
		if chunkSize > 0 && overlap < chunkSize && overlap >= m.Overlap() {
			m.SetChunking(chunkSize, overlap)
		}
		return m, nil

	case len(regexps) == 1:
		label, expr, ok := strings.Cut(regexps[0], ":")
		if !ok {
			return nil, fmt.Errorf("regexp %q: want label:expr", regexps[0])
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("regexp %q: %w", regexps[0], err)
		}
		m := scanner.NewRegexpMatcher(label, re)
		if chunkSize > 0 && overlap < chunkSize {
			m.SetChunking(chunkSize, overlap)
		}
		return m, nil

	case len(regexps) > 1:
		return nil, fmt.Errorf("only one --regexp is supported")

	default:
		return nil, fmt.Errorf("supply at least one --pattern or --regexp")
	}
}

func buildRegions(state *appState, regions []string, vadRoot, table string) (scanner.RegionSource, error) {
	switch {
	case vadRoot != "" && len(regions) > 0:
		return nil, fmt.Errorf("--region and --vad-root are mutually exclusive")

	case vadRoot != "":
		root, err := strconv.ParseUint(vadRoot, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("vad root %q: %w", vadRoot, err)
		}
		return winmem.NewVADWalker(state.ctx, table, PhysicalLayerName, root)

	case len(regions) > 0:
		parsed := make([]scanner.Region, 0, len(regions))
		for _, r := range regions {
			startStr, endStr, ok := strings.Cut(r, "-")
			if !ok {
				return nil, fmt.Errorf("region %q: want start-end", r)
			}
			start, err := strconv.ParseUint(startStr, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("region %q: %w", r, err)
			}
			end, err := strconv.ParseUint(endStr, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("region %q: %w", r, err)
			}
			if end < start {
				return nil, fmt.Errorf("region %q: end precedes start", r)
			}
			parsed = append(parsed, scanner.Region{LayerName: PhysicalLayerName, Start: start, End: end})
		}
		return scanner.Regions(parsed...), nil

	default:
		// Whole physical layer.
		return scanner.Regions(scanner.Region{
			LayerName: PhysicalLayerName,
			Start:     0,
			End:       state.image.Size(),
		}), nil
	}
}
