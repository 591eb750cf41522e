// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes content hashes of executables. The
// supervisor hashes each launch command's binary at spawn time and
// logs the digest, so a run's logs always identify exactly which
// build of the subsystem and main launch files it executed.
package binhash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// HashFile computes the BLAKE3 digest of the file at path. The file
// is streamed through the hasher so memory use is constant regardless
// of binary size.
func HashFile(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// FormatDigest returns the hex encoding of a digest. This is the
// canonical form used in log output and state files.
func FormatDigest(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}
