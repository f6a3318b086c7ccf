// Package s3 stores snapshots in Amazon S3 or an S3-compatible endpoint
// through the AWS SDK for Go v2.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("pointcount/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
// Credentials and region are resolved with the SDK's default chain
// (environment, shared config, instance role). WithEndpoint points the client
// at an S3-compatible service and switches to path-style addressing.
//
// Reads use ranged GETs; streaming writes go through the SDK's multipart
// upload manager.
package s3
