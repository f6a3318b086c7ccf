// Package snapshot saves and restores point sets to any blobstore.BlobStore.
//
// A save writes one snapshot blob and then publishes it through a JSON
// manifest and a CURRENT pointer, so readers never observe a half-written
// snapshot:
//
//	snapshot-000007.pcs   header + compressed payload
//	MANIFEST-000007.json  sizes, checksum, point count
//	CURRENT               "MANIFEST-000007.json"
//
// The payload is whatever the source's WriteTo produces (memstore's binary
// format), compressed with LZ4 or Zstandard. Restores decompress into a
// buffer reserved through the resource controller and verify the CRC32C of
// the payload before handing it to the target, so a corrupt snapshot never
// replaces live data.
package snapshot
