// Package acquire obtains decoded images from URLs.
//
// Acquisition is split in two steps: a [Fetcher] retrieves the encoded bytes
// (HTTP, data: URLs, local files) and [Decode] turns them into a
// raster.Source. Neither step caches, retries or deduplicates; every call
// issues exactly one request.
package acquire
