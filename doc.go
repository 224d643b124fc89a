// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package fskv is a persistent key/value store that keeps every mapping
// in its own pair of files.
//
// Keys are encoded with a codec.Codec and hashed with a digest.Func; the
// leading characters of the hex digest name a shard directory under the
// store root, and the entry is written there as two files:
//
//	<root>/
//	  ba7816bf8/
//	    ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad.key
//	    ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad.value
//
// The .key file holds the encoded key and the .value file the encoded
// value.  There is no index, header or metadata file: the directory tree
// is the index, and Open recovers Size by counting .key files.
//
// A Store is single-writer: it does no locking, and callers must
// serialize access to a Store and must not open two Stores on the same
// root at once.  Writes are not atomic across the two files of an entry;
// a failure part-way through can leave a half entry behind, which Check
// reports but nothing repairs.
package fskv
