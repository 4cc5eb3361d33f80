package datasets

import (
	"io"
	"path/filepath"
	"sync"

	"github.com/Noofbiz/changeDetect/augment"
	"github.com/Noofbiz/changeDetect/config"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ChangeDetectionDataset lazily loads reference/test/mask triplets listed in a
// split manifest. It implements gomlx's train.Dataset.
//
// Example, Raw, Prepare, Batch and Tensors are safe for concurrent use: the
// manifest, paths and augmentation recipe are read-only after construction
// and the random source is locked. Yield and Reset share a cursor guarded by
// its own mutex.
type ChangeDetectionDataset struct {
	// Root of the data folder and split being loaded.
	Root string
	Mode string

	// BatchSize for yielding batches
	BatchSize int

	refDir, testDir, maskDir string

	// Identifiers in manifest order; never modified after construction.
	ids []string

	// recipe is nil outside the training split.
	recipe *augment.Recipe
	rand   augment.Rand

	prep preprocessor

	muCursor sync.Mutex
	cursor   int
}

var (
	_ train.Dataset = (*ChangeDetectionDataset)(nil)
	_ Dataset       = (*ChangeDetectionDataset)(nil)
)

// NewChangeDetectionDataset creates a dataset for one split under root with
// the default layout, preprocessing and augmentation recipe.
func NewChangeDetectionDataset(root, mode string) (*ChangeDetectionDataset, error) {
	cfg := config.DefaultConfig()
	cfg.Data.Root = root
	cfg.Data.Mode = mode
	return NewChangeDetectionDatasetWithConfig(cfg)
}

// NewChangeDetectionDatasetWithConfig creates a dataset from a full
// configuration. The manifest is read once, here; a missing manifest fails
// with ErrManifestMissing.
func NewChangeDetectionDatasetWithConfig(cfg *config.Config) (*ChangeDetectionDataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	root, mode := cfg.Data.Root, cfg.Data.Mode
	ids, err := ReadManifest(ManifestPath(root, cfg.Data.ListDir, mode))
	if err != nil {
		return nil, err
	}

	ds := &ChangeDetectionDataset{
		Root:      root,
		Mode:      mode,
		BatchSize: cfg.Loader.BatchSize,
		refDir:    filepath.Join(root, mode, cfg.Data.RefDir),
		testDir:   filepath.Join(root, mode, cfg.Data.TestDir),
		maskDir:   filepath.Join(root, mode, cfg.Data.MaskDir),
		ids:       ids,
		rand:      augment.NewLockedRand(cfg.Loader.Seed),
		prep: preprocessor{
			size: cfg.Preprocess.CropSize,
			mean: append([]float64(nil), cfg.Preprocess.Mean...),
			std:  append([]float64(nil), cfg.Preprocess.Std...),
		},
	}
	if ds.BatchSize <= 0 {
		ds.BatchSize = 1
	}
	if mode == cfg.Data.TrainMode {
		ds.recipe = augment.NewRecipe(cfg)
	}

	klog.V(1).Infof("change-detection dataset %s: %d samples, augment=%v, crop=%d",
		ds.Name(), len(ids), ds.Augmenting(), ds.prep.size)
	return ds, nil
}

// Name implements train.Dataset.
func (d *ChangeDetectionDataset) Name() string {
	return "ChangeDetection/" + d.Mode
}

// Len returns the number of identifiers in the manifest.
func (d *ChangeDetectionDataset) Len() int {
	return len(d.ids)
}

// Augmenting reports whether examples go through the training augmentation.
func (d *ChangeDetectionDataset) Augmenting() bool {
	return d.recipe != nil
}

// SetRand replaces the augmentation random source. It must not be called
// concurrently with Example.
func (d *ChangeDetectionDataset) SetRand(r augment.Rand) {
	d.rand = r
}

// Seed replaces the augmentation random source with a fresh seeded one. Same
// rules as SetRand.
func (d *ChangeDetectionDataset) Seed(seed int64) {
	d.rand = augment.NewLockedRand(seed)
}

// ID returns the identifier at idx.
func (d *ChangeDetectionDataset) ID(idx int) (string, error) {
	if idx < 0 || idx >= len(d.ids) {
		return "", errors.Wrapf(ErrIndexOutOfRange, "index %d out of range [0, %d)", idx, len(d.ids))
	}
	return d.ids[idx], nil
}

// Paths returns the reference, test and mask file paths of idx.
func (d *ChangeDetectionDataset) Paths(idx int) (ref, test, mask string, err error) {
	id, err := d.ID(idx)
	if err != nil {
		return "", "", "", err
	}
	return filepath.Join(d.refDir, id), filepath.Join(d.testDir, id), filepath.Join(d.maskDir, id), nil
}

// Raw decodes the triplet at idx with the mask binarized. Files are read on
// every call.
func (d *ChangeDetectionDataset) Raw(idx int) (*RawSample, error) {
	refPath, testPath, maskPath, err := d.Paths(idx)
	if err != nil {
		return nil, err
	}
	return loadRaw(d.ids[idx], refPath, testPath, maskPath)
}

// Prepare augments raw (training split only) and tensorizes it.
func (d *ChangeDetectionDataset) Prepare(raw *RawSample) (*Sample, error) {
	if d.recipe != nil {
		ref, test, mask, err := d.recipe.Apply(d.rand, raw.Ref, raw.Test, raw.Mask)
		if err != nil {
			return nil, errors.Wrapf(err, "augmenting %s", raw.ID)
		}
		raw = &RawSample{ID: raw.ID, Ref: ref, Test: test, Mask: mask}
	}
	return d.prep.tensorize(raw)
}

// Example loads and prepares the sample at idx. It either returns all three
// arrays or an error, never a partial sample.
func (d *ChangeDetectionDataset) Example(idx int) (*Sample, error) {
	raw, err := d.Raw(idx)
	if err != nil {
		return nil, err
	}
	return d.Prepare(raw)
}

// Batch loads multiple samples
func (d *ChangeDetectionDataset) Batch(indices []int) ([]*Sample, error) {
	samples := make([]*Sample, len(indices))
	for i, idx := range indices {
		s, err := d.Example(idx)
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	return samples, nil
}

// Tensors reads a batch of samples and returns them as gomlx tensors
func (d *ChangeDetectionDataset) Tensors(indices []int) (ref, test, mask *tensors.Tensor, err error) {
	samples, err := d.Batch(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	flat, err := MakeChangeBatchFlat(samples)
	if err != nil {
		return nil, nil, nil, err
	}
	return flat.ToGomlxTensors()
}

// Yield returns the next batch of up to BatchSize samples in manifest order
// for the gomlx Dataset interface: inputs are the ref and test tensors, the
// label is the mask. It returns io.EOF once the split is exhausted; call Reset
// to start over.
func (d *ChangeDetectionDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	d.muCursor.Lock()
	start := d.cursor
	if start >= len(d.ids) {
		d.muCursor.Unlock()
		return nil, nil, nil, io.EOF
	}
	end := min(start+d.BatchSize, len(d.ids))
	d.cursor = end
	d.muCursor.Unlock()

	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	ref, test, mask, err := d.Tensors(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, []*tensors.Tensor{ref, test}, []*tensors.Tensor{mask}, nil
}

// Reset restarts Yield from the first sample.
func (d *ChangeDetectionDataset) Reset() {
	d.muCursor.Lock()
	defer d.muCursor.Unlock()
	d.cursor = 0
}
