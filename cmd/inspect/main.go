package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Noofbiz/changeDetect/config"
	"github.com/Noofbiz/changeDetect/datasets"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// sampleStats summarizes one prepared sample.
type sampleStats struct {
	ID          string
	ChangeRatio float64
	RefMean     [3]float64
	RefStd      [3]float64
	TestMean    [3]float64
	TestStd     [3]float64
}

func main() {
	klog.InitFlags(nil)

	configPath := flag.String("config", "", "path to YAML configuration (optional, defaults are used when absent)")
	root := flag.String("root", "", "data root holding list/ and the split folders (overrides config)")
	mode := flag.String("mode", "", "split to inspect (overrides config)")
	limit := flag.Int("n", 0, "number of samples to inspect (0 = whole split)")
	workers := flag.Int("workers", 0, "number of workers (0 = config value, then NumCPU)")
	seed := flag.Int64("seed", 0, "augmentation seed (overrides config when non-zero)")
	outDir := flag.String("out", "inspect", "output directory for stats.csv, the histogram and previews")
	previews := flag.Int("previews", 0, "number of leading samples to save as preview images (the same draws summarized in stats.csv)")
	bins := flag.Int("bins", 20, "histogram bins")
	printEffectiveConfig := flag.Bool("print-effective-config", false, "print the effective (YAML+CLI merged) configuration and exit")
	flag.Parse()
	defer klog.Flush()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			klog.Fatalf("failed to load config %s: %v", *configPath, err)
		}
		klog.Infof("Loaded config from %s", *configPath)
	}

	// CLI flags always override the YAML values.
	if *root != "" {
		cfg.Data.Root = *root
	}
	if *mode != "" {
		cfg.Data.Mode = *mode
	}
	if *seed != 0 {
		cfg.Loader.Seed = *seed
	}
	if *workers > 0 {
		cfg.Loader.Workers = *workers
	}

	if *printEffectiveConfig {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			klog.Fatalf("failed to marshal effective config: %v", err)
		}
		fmt.Print(string(data))
		return
	}

	ds, err := datasets.NewChangeDetectionDatasetWithConfig(cfg)
	if err != nil {
		klog.Fatalf("failed to open %s split under %s: %v", cfg.Data.Mode, cfg.Data.Root, err)
	}
	klog.Infof("Dataset %s loaded: samples=%d augment=%v", ds.Name(), ds.Len(), ds.Augmenting())

	n := ds.Len()
	if *limit > 0 && *limit < n {
		n = *limit
	}

	keep := min(max(*previews, 0), n)
	stats, kept, err := inspect(ds, n, cfg.Loader.Workers, keep)
	if err != nil {
		klog.Fatalf("inspection failed: %v", err)
	}

	if err := writeReport(*outDir, cfg, stats, kept, *bins); err != nil {
		klog.Fatalf("failed to write report to %s: %v", *outDir, err)
	}
	klog.Infof("Wrote config.yaml, stats.csv, change_ratio.png and %d previews to %s", len(kept), *outDir)

	var changed float64
	for _, s := range stats {
		changed += s.ChangeRatio
	}
	if len(stats) > 0 {
		fmt.Printf("Inspected %d samples of %s, mean change ratio %.4f\n", len(stats), ds.Name(), changed/float64(len(stats)))
	}
}

// inspect prepares the first n samples with a worker pool and summarizes them
// in index order. The first keep prepared samples are returned as well. The
// first error stops the remaining workers.
func inspect(ds *datasets.ChangeDetectionDataset, n, workers, keep int) ([]sampleStats, []*datasets.Sample, error) {
	out := make([]sampleStats, n)
	kept := make([]*datasets.Sample, max(0, min(keep, n)))
	if n == 0 {
		return out, kept, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)

	bar := progressbar.NewOptions(n,
		progressbar.OptionSetDescription("Inspecting "+ds.Name()),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	jobs := make(chan int, n)
	errCh := make(chan error, workers)
	var failed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if failed.Load() {
					return
				}
				s, err := ds.Example(idx)
				if err != nil {
					failed.Store(true)
					errCh <- errors.Wrapf(err, "sample %d", idx)
					return
				}
				out[idx] = summarize(s)
				if idx < len(kept) {
					kept[idx] = s
				}
				_ = bar.Add(1)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	_ = bar.Finish()
	close(errCh)

	select {
	case err := <-errCh:
		return nil, nil, err
	default:
	}
	return out, kept, nil
}

// writeReport writes the effective configuration, the statistics CSV, the
// change-ratio histogram and one preview per kept sample into outDir.
func writeReport(outDir string, cfg *config.Config, stats []sampleStats, kept []*datasets.Sample, bins int) error {
	if err := ensureDir(outDir); err != nil {
		return err
	}
	if err := config.SaveConfig(cfg, filepath.Join(outDir, "config.yaml")); err != nil {
		return err
	}
	if err := writeStatsCSV(filepath.Join(outDir, "stats.csv"), stats); err != nil {
		return errors.Wrap(err, "stats.csv")
	}
	if err := plotChangeRatio(filepath.Join(outDir, "change_ratio.png"), stats, bins); err != nil {
		return errors.Wrap(err, "change_ratio.png")
	}
	for i, s := range kept {
		path := filepath.Join(outDir, fmt.Sprintf("preview_%03d.png", i))
		if err := savePreview(path, s, cfg.Preprocess.Mean, cfg.Preprocess.Std); err != nil {
			return errors.Wrapf(err, "preview %d", i)
		}
	}
	return nil
}

func summarize(s *datasets.Sample) sampleStats {
	st := sampleStats{ID: s.ID}
	plane := s.Size * s.Size
	buf := make([]float64, plane)
	for c := 0; c < s.Channels && c < 3; c++ {
		st.RefMean[c], st.RefStd[c] = channelStats(s.Ref[c*plane:(c+1)*plane], buf)
		st.TestMean[c], st.TestStd[c] = channelStats(s.Test[c*plane:(c+1)*plane], buf)
	}
	var ones int
	for _, v := range s.Mask {
		ones += int(v)
	}
	if len(s.Mask) > 0 {
		st.ChangeRatio = float64(ones) / float64(len(s.Mask))
	}
	return st
}

func channelStats(values []float32, buf []float64) (mean, std float64) {
	for i, v := range values {
		buf[i] = float64(v)
	}
	return stat.MeanStdDev(buf[:len(values)], nil)
}

func writeStatsCSV(path string, stats []sampleStats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"id", "change_ratio"}
	for _, prefix := range []string{"ref", "test"} {
		for _, c := range []string{"r", "g", "b"} {
			header = append(header, prefix+"_mean_"+c, prefix+"_std_"+c)
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, s := range stats {
		row := []string{s.ID, ff(s.ChangeRatio)}
		for c := 0; c < 3; c++ {
			row = append(row, ff(s.RefMean[c]), ff(s.RefStd[c]))
		}
		for c := 0; c < 3; c++ {
			row = append(row, ff(s.TestMean[c]), ff(s.TestStd[c]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// plotChangeRatio writes a histogram of the fraction of changed pixels per sample.
func plotChangeRatio(path string, stats []sampleStats, bins int) error {
	if len(stats) == 0 {
		return errors.New("no samples to plot")
	}
	values := make(plotter.Values, len(stats))
	for i, s := range stats {
		values[i] = s.ChangeRatio
	}

	p := plot.New()
	p.Title.Text = "Changed pixels per sample"
	p.X.Label.Text = "change ratio"
	p.Y.Label.Text = "samples"

	h, err := plotter.NewHist(values, max(bins, 1))
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 200, G: 30, B: 30, A: 180}
	p.Add(h)
	p.Add(plotter.NewGrid())

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// savePreview writes ref | test | mask side by side, undoing the normalization.
func savePreview(path string, s *datasets.Sample, mean, std []float64) error {
	size := s.Size
	plane := size * size
	canvas := imaging.New(3*size, size, color.Black)

	toImage := func(buf []float32) *image.NRGBA {
		img := image.NewNRGBA(image.Rect(0, 0, size, size))
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				var px [3]uint8
				for c := 0; c < 3; c++ {
					v := float64(buf[c*plane+y*size+x])*std[c] + mean[c]
					px[c] = uint8(max(0, min(255, v*255+0.5)))
				}
				img.SetNRGBA(x, y, color.NRGBA{R: px[0], G: px[1], B: px[2], A: 255})
			}
		}
		return img
	}

	mask := image.NewGray(image.Rect(0, 0, size, size))
	for i, v := range s.Mask {
		mask.Pix[i] = uint8(v * 255)
	}

	canvas = imaging.Paste(canvas, toImage(s.Ref), image.Pt(0, 0))
	canvas = imaging.Paste(canvas, toImage(s.Test), image.Pt(size, 0))
	canvas = imaging.Paste(canvas, mask, image.Pt(2*size, 0))
	return imaging.Save(canvas, path)
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
