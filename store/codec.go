package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeVector 将向量编码为小端 float64 序列的 BLOB
func encodeVector(vec []float64) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeVector 从 BLOB 还原向量
func decodeVector(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 8", len(data))
	}
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec, nil
}
