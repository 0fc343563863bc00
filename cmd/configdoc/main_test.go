// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteReference(t *testing.T) {
	var buf bytes.Buffer
	writeReference(&buf)
	out := buf.String()

	for _, want := range []string{
		"| `package_name` | string | `extension` |",
		"| `chrome` | object | (none) |",
		"| `chrome.crx_version` | uint | `2` |",
		"| `mozilla.max_version` | string | `(none)` | Maximum target application version (read from install.rdf",
		"| `targets` | []object |",
		"| `history` | int | `5` |",
		"| `EXTSIGN_PASSPHRASE` |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("reference missing %q", want)
		}
	}
}
