// Copyright 2024 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package validator

import (
	"path/filepath"
	"strings"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

// ValidateURI checks that uri carries scheme's exact prefix and contains
// neither a control character nor a path-traversal segment. Every caller
// runs this before turning a certificate SIA field, manifest URI, or RRDP
// delta uri attribute into a local filesystem path or external command
// argument: all three are attacker-influenced bytes read before the
// issuing chain has been validated.
func ValidateURI(uri, scheme string) error {
	if !strings.HasPrefix(uri, scheme) {
		return rperrors.New(rperrors.KindParse, "URI missing required scheme prefix", "uri", uri, "scheme", scheme)
	}
	for _, r := range uri {
		if r < 0x20 || r == 0x7f {
			return rperrors.New(rperrors.KindParse, "URI contains a control character", "uri", uri)
		}
	}
	rest := strings.TrimPrefix(uri, scheme)
	for _, seg := range strings.Split(rest, "/") {
		if seg == ".." {
			return rperrors.New(rperrors.KindParse, "URI contains a path traversal segment", "uri", uri)
		}
	}
	return nil
}

// ConfineToRoot joins root with rel, a scheme-stripped URI remainder.
// Cleaning rel as if it were an absolute path before joining neutralizes
// any ".." segment that might have survived ValidateURI: Clean never
// resolves ".." above "/", so the result can never land outside root
// regardless of what rel contains. This is a backstop, not a substitute
// for ValidateURI's hard failure on traversal.
func ConfineToRoot(root, rel string) string {
	return filepath.Join(root, filepath.Clean(string(filepath.Separator)+rel))
}
