package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// This package provides a change-detection dataset: each example is a
// reference image, a test image and a binary mask that share one identifier.
//
// The dataset is lazy - it stores the manifest and the directory layout and
// only reads the three image files when an example is requested. Nothing is
// cached, every Example call decodes fresh arrays.
//
// Layout and intended usage:
//
//	<root>/<mode>/A/<id>       reference images
//	<root>/<mode>/B/<id>       test images
//	<root>/<mode>/label/<id>   masks
//	<root>/list/<mode>.txt     one identifier per line
//
// For the training split the triplet is augmented (shared flip/rotate,
// independent brightness/contrast/blur per image). Every split is then
// center-cropped and the images normalized. Examples come back as contiguous
// float32/int32 buffers (Sample) that convert to gomlx tensors with
// ToGomlxTensors; batches flatten with MakeChangeBatchFlat.
//
// The datasets implement this interface in order to interact with GoMLX
// training loops and batching utilities.
type Dataset interface {
	Len() int
	Example(i int) (*Sample, error)
	Batch(indices []int) ([]*Sample, error)

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
	Reset()
}
