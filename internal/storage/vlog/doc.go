// Package vlog implements the VeriLog framed file format.
//
// A file is a fixed header followed by length-prefixed encrypted frames:
//
//	[magic:4 "VLOG"][version:1][flags:1][headerLen:2][header JSON:headerLen]
//	[Frame]*
//
// Frame wire format:
//
//	[payloadLen:4][type:1][seq:8][nonce:24][ciphertext||tag:payloadLen-33]
//
// All integers are big-endian. The header JSON records the algorithm, the
// AAD prefix, the creation time, a ULID file id and the chain anchor the
// first entry links to. Each frame is sealed with XChaCha20-Poly1305 under
// the additional data
//
//	aadPrefix || 0x00 || seq:8 || 0x00 || type:1
//
// so frames cannot be moved between positions, types or files with a
// different prefix without failing authentication.
//
// Opening an existing file for append runs recovery: frames are scanned
// from the first frame position and the file is truncated after the last
// complete frame, then synced. The next sequence number is resumed from the
// frame headers without decrypting.
package vlog
