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

// Package stats collects one run's counters and renders them as a
// human-readable table at exit, independent of the cumulative
// Prometheus series internal/rpmetrics exposes across runs.
package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/netsec-ethz/rpki-client/internal/repotable"
)

// Run is a single invocation's tally.
type Run struct {
	TALs int

	CertsOK, CertsFail     int
	MFTsOK, MFTsFail       int
	MFTsStale              int
	ROAsOK, ROAsFail       int
	CRLsOK, CRLsFail       int
	GBRsOK, GBRsFail       int

	Repos repotable.Stats

	VRPsTotal, VRPsUnique int
	DelFiles, DelDirs     int

	Wall, User, System time.Duration
}

// Render writes a two-column table summarizing r to w.
func (r Run) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"metric", "value"})
	table.SetAutoWrapText(false)
	rows := [][2]string{
		{"TALs", fmt.Sprint(r.TALs)},
		{"certs ok/fail", fmt.Sprintf("%d/%d", r.CertsOK, r.CertsFail)},
		{"mfts ok/fail/stale", fmt.Sprintf("%d/%d/%d", r.MFTsOK, r.MFTsFail, r.MFTsStale)},
		{"roas ok/fail", fmt.Sprintf("%d/%d", r.ROAsOK, r.ROAsFail)},
		{"crls ok/fail", fmt.Sprintf("%d/%d", r.CRLsOK, r.CRLsFail)},
		{"gbrs ok/fail", fmt.Sprintf("%d/%d", r.GBRsOK, r.GBRsFail)},
		{"repos ready/fail/fallback", fmt.Sprintf("%d/%d/%d", r.Repos.Ready, r.Repos.Fail, r.Repos.Fallback)},
		{"vrps total/unique", fmt.Sprintf("%d/%d", r.VRPsTotal, r.VRPsUnique)},
		{"cleanup files/dirs", fmt.Sprintf("%d/%d", r.DelFiles, r.DelDirs)},
		{"wall/user/system", fmt.Sprintf("%s/%s/%s", r.Wall, r.User, r.System)},
	}
	for _, row := range rows {
		table.Append(row[:])
	}
	table.Render()
}
