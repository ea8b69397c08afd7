package inference

import (
	"encoding/binary"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/augment"
)

// CreateTensor creates a tensor with the given shape and data
func CreateTensor[T ort.TensorData](shape []int64, data []T) (*ort.Tensor[T], error) {
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// CreateEmptyTensor creates a zeroed tensor for output
func CreateEmptyTensor[T ort.TensorData](shape []int64) (*ort.Tensor[T], error) {
	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}
	data := make([]T, size)
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// BytesToFloat32 reinterprets little-endian float32 bytes, as returned by
// gocv.Mat.ToBytes on a CV32F matrix.
func BytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		result[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return result
}

// GrayToFloat32 equalizes an 8-bit grayscale image and maps it to [-1, 1]
// in row-major order, the layout the synthetic training examples use.
func GrayToFloat32(gray gocv.Mat) []float32 {
	eq := gocv.NewMat()
	defer eq.Close()
	gocv.EqualizeHist(gray, &eq)

	return augment.Normalize(eq)
}
