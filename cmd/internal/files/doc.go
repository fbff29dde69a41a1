// Package files accepts multipart uploads and writes them to a Blob backend:
// a local directory or an S3-compatible bucket.
package files
