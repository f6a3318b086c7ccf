// Package hash holds the CRC32-Castagnoli helpers used for snapshot and blob
// integrity checks.
//
//	h := hash.NewCRC32C()
//	h.Write(chunk)
//	sum := h.Sum32()
package hash
