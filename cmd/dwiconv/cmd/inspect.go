package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpfielding/dwiconv.go/pkg/dwi"
)

// NewInspectCmd creates the inspect cobra command
func NewInspectCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "inspect DWI series geometry",
		Long:  "Parses a DICOM series and displays per-slice geometry plus the detected interleave and slice-order conclusions, without writing any output.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" && len(args) > 0 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("series directory is required. Use --dir flag or provide as argument")
			}
			verbose, _ := cmd.Flags().GetBool("slices")
			return runInspect(dir, verbose)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringP("dir", "d", "", "directory holding the DICOM series")
	pf.Bool("slices", false, "also print per-slice origin and location")

	return cmd
}

func runInspect(dir string, perSlice bool) error {
	files, err := listSeriesFiles(dir)
	if err != nil {
		return err
	}
	headers, err := dwi.OpenSeries(files)
	if err != nil {
		return err
	}

	c := dwi.NewConverter(headers, files)
	if err := c.Load(); err != nil {
		return err
	}
	c.DetermineSliceOrder()

	v := c.Volume()
	fmt.Printf("Files: %d\n\n", len(files))

	fmt.Println("=== Geometry ===")
	fmt.Printf("Columns: %d\n", v.Cols)
	fmt.Printf("Rows: %d\n", v.Rows)
	fmt.Printf("Slices: %d\n", c.NSlice())
	fmt.Printf("Spacing: %v\n", v.Spacing)
	fmt.Printf("Origin: %v\n", v.Origin)
	fmt.Println("Direction (LPS):")
	for i := 0; i < 3; i++ {
		fmt.Printf("  %9.6f %9.6f %9.6f\n",
			v.Direction.At(i, 0), v.Direction.At(i, 1), v.Direction.At(i, 2))
	}
	fmt.Println()

	fmt.Println("=== Layout ===")
	fmt.Printf("MultiFrameFile: %v\n", c.MultiSliceVolume())
	fmt.Printf("SlicesPerVolume: %d\n", c.SlicesPerVolume())
	fmt.Printf("Volumes: %d\n", c.NVolume())
	fmt.Printf("SliceInterleaved: %v\n", c.Interleaved())
	order := "IS"
	if !c.SliceOrderIS() {
		order = "SI"
	}
	fmt.Printf("SliceOrder: %s\n", order)

	min, max := v.MinMax()
	fmt.Printf("SampleRange: [%d, %d]\n", min, max)

	if perSlice {
		fmt.Println("\n=== Slices ===")
		for k, h := range headers {
			fmt.Printf("%4d  origin=%v  location=%q\n", k, h.Origin(), h.SliceLocation())
		}
	}
	return nil
}
