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

package rpmetrics

// Collectors holds every counter/gauge a run updates. Concrete gauges are
// bound at package init so /metrics always reports the full set of series
// even before a run touches them.
var (
	TALs = newCounter("run", "tals_total", "trust anchor locators loaded")

	CertsOK   = newCounter("objects", "certs_ok_total", "certificates that validated")
	CertsFail = newCounter("objects", "certs_fail_total", "certificates that failed to validate")

	MFTsOK    = newCounter("objects", "mfts_ok_total", "manifests that validated")
	MFTsFail  = newCounter("objects", "mfts_fail_total", "manifests that failed to validate")
	MFTsStale = newCounter("objects", "mfts_stale_total", "manifests past their NextUpdate")

	ROAsOK   = newCounter("objects", "roas_ok_total", "ROAs that validated")
	ROAsFail = newCounter("objects", "roas_fail_total", "ROAs that failed to validate")

	CRLsOK   = newCounter("objects", "crls_ok_total", "CRLs that validated")
	CRLsFail = newCounter("objects", "crls_fail_total", "CRLs that failed to validate")

	GBRsOK   = newCounter("objects", "gbrs_ok_total", "Ghostbusters records that validated")
	GBRsFail = newCounter("objects", "gbrs_fail_total", "Ghostbusters records that failed to validate")

	RepoRsync = newGauge("repos", "rsync_total", "repositories fetched over rsync")
	RepoRRDP  = newGauge("repos", "rrdp_total", "repositories fetched over RRDP")
	RepoHTTP  = newGauge("repos", "http_total", "repositories fetched over plain HTTP")

	VRPsTotal  = newGauge("vrps", "total", "VRP insertions attempted, including collisions")
	VRPsUnique = newGauge("vrps", "unique_total", "distinct VRPs in the store")

	DelFiles = newGauge("cleanup", "deleted_files_total", "stale files removed from the cache")
	DelDirs  = newGauge("cleanup", "deleted_dirs_total", "stale directories removed from the cache")

	WallSeconds   = newGauge("run", "wall_seconds", "wall-clock duration of the run")
	UserSeconds   = newGauge("run", "user_seconds", "user CPU time consumed by the run")
	SystemSeconds = newGauge("run", "system_seconds", "system CPU time consumed by the run")

	ObjectResult = newCounterVec("objects", "results_total",
		"per-kind validation outcomes", []string{LabelKind, LabelResult})
)
