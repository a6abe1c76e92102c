package staging

import "unsafe"

func elementSize[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// AsBytes views a slice of plain-old-data values as raw bytes without copying.
func AsBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*elementSize[T]())
}

// FromBytes copies raw bytes into a new slice of n values.
func FromBytes[T any](b []byte, n int) []T {
	result := make([]T, n)
	copy(AsBytes(result), b)
	return result
}
