package transform

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Supported array dtypes.
const (
	DTypeFloat64 = "float64"
	DTypeFloat32 = "float32"
)

// Array is a dense numeric array: row-major little-endian values, base64 encoded.
type Array struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Data  string `json:"data"`
}

// IndexSpec describes the neighbor index to build over the reference points.
type IndexSpec struct {
	Algorithm string `json:"algorithm"`
	Metric    string `json:"metric"`
}

// ScalerDocument is the standardization artifact.
type ScalerDocument struct {
	FeatureNames []string `json:"feature_names"`
	Mean         Array    `json:"mean"`
	Scale        Array    `json:"scale"`
}

// EmbeddingDocument is the reference-point artifact.
type EmbeddingDocument struct {
	Reference   Array     `json:"reference"`
	Coordinates Array     `json:"coordinates"`
	Index       IndexSpec `json:"index"`
}

// CentroidsDocument is the cluster-center artifact.
type CentroidsDocument struct {
	Centers   Array `json:"centers"`
	NClusters int   `json:"n_clusters"`
}

// NewArray encodes values as a float64 array of the given shape.
func NewArray(values []float64, shape ...int) Array {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return Array{DType: DTypeFloat64, Shape: shape, Data: base64.StdEncoding.EncodeToString(buf)}
}

// NewFloat32Array encodes values as a float32 array, losing precision.
func NewFloat32Array(values []float64, shape ...int) Array {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return Array{DType: DTypeFloat32, Shape: shape, Data: base64.StdEncoding.EncodeToString(buf)}
}

// decode returns the values of a as float64. float32 payloads are upconverted with a warning.
// want lists the expected shape; a negative entry matches any size.
func (a Array) decode(artifact, field string, logger *zap.Logger, want ...int) ([]float64, []int, error) {
	if len(a.Shape) != len(want) {
		return nil, nil, fmt.Errorf("%s.%s: expected %d dimensions, got shape %v", artifact, field, len(want), a.Shape)
	}
	n := 1
	for i, s := range a.Shape {
		if s < 0 || (want[i] >= 0 && s != want[i]) {
			return nil, nil, fmt.Errorf("%s.%s: shape %v does not match expected %v", artifact, field, a.Shape, want)
		}
		n *= s
	}
	raw, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s.%s: decode data: %w", artifact, field, err)
	}

	var size int
	switch a.DType {
	case DTypeFloat64:
		size = 8
	case DTypeFloat32:
		size = 4
	default:
		return nil, nil, fmt.Errorf("%s.%s: unsupported dtype %q", artifact, field, a.DType)
	}
	if len(raw) != n*size {
		return nil, nil, fmt.Errorf("%s.%s: %d bytes for shape %v of %s", artifact, field, len(raw), a.Shape, a.DType)
	}

	out := make([]float64, n)
	if size == 8 {
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	} else {
		logger.Warn("upconverting float32 artifact array to float64",
			zap.String("artifact", artifact),
			zap.String("field", field),
			zap.Ints("shape", a.Shape))
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	}
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, fmt.Errorf("%s.%s: non-finite value at element %d", artifact, field, i)
		}
	}
	return out, a.Shape, nil
}
