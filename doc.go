// Package pointcount provides an embedded point record database that counts
// the records within a radius of a given record.
//
// Records are 2D points with a store-assigned id. A count never scans the
// whole data set: package rangecount decomposes the search area into
// rectangles and resolves most of them from aggregate statistics kept by the
// store.
//
// # Quick Start
//
//	ctx := context.Background()
//	db := pointcount.New(memstore.New())
//	defer db.Close()
//
//	a, _ := db.Insert(ctx, 0, 0)
//	db.Insert(ctx, 3, 4)
//	db.Insert(ctx, 10, 10)
//
//	q, _ := pointcount.NewQuery(a.ID, 5, pointcount.ModeRecursive)
//	n, _ := db.Count(ctx, q) // 1: (3, 4) is within 5 of (0, 0)
//
// # Stores
//
// Package store/memstore keeps everything in memory and can be snapshotted
// with package snapshot. Package store/badgerstore persists records in
// BadgerDB.
//
// # Errors
//
// Operations return errors matching ErrInvalidQuery, ErrNotFound,
// ErrConflict, ErrAborted or ErrStore with errors.Is.
package pointcount
