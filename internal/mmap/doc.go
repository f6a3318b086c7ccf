// Package mmap maps local snapshot files read-only into memory.
//
//	m, err := mmap.Open("points.snap")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix systems use mmap(2) and madvise(2); on Windows the file is mapped
// with MapViewOfFile and Advise is a no-op.
//
// Bytes must not be used after Close returns.
package mmap
