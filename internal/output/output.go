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

// Package output renders a vrpstore.Store's contents in the router-facing
// formats real-world RPKI relying parties consume: OpenBGPD's roa-set
// config syntax, BIRD's v1 and v2 static route/table syntax, plain CSV,
// and JSON.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"

	"github.com/netsec-ethz/rpki-client/internal/resources"
	"github.com/netsec-ethz/rpki-client/internal/vrpstore"
)

func prefix(v vrpstore.VRP) netip.Prefix {
	addr := netip.AddrFrom16(v.Prefix)
	if v.AFI == resources.AFIv4 {
		addr = addr.Unmap()
	}
	return netip.PrefixFrom(addr, v.PrefixLen)
}

// WriteCSV renders one "ASN,IP Prefix,Max Length,Trust Anchor" line per
// VRP, the de facto format most relying-party tooling expects.
func WriteCSV(w io.Writer, vrps []vrpstore.VRP) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ASN", "IP Prefix", "Max Length", "Trust Anchor"}); err != nil {
		return err
	}
	for _, v := range vrps {
		row := []string{
			fmt.Sprintf("AS%d", v.ASID),
			prefix(v).String(),
			fmt.Sprint(v.MaxLength),
			v.TAL,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonVRP struct {
	ASN       string `json:"asn"`
	Prefix    string `json:"prefix"`
	MaxLength int    `json:"maxLength"`
	TA        string `json:"ta"`
}

type jsonDoc struct {
	ROAs []jsonVRP `json:"roas"`
}

// WriteJSON renders the routinator-style {"roas": [...]} document.
func WriteJSON(w io.Writer, vrps []vrpstore.VRP) error {
	doc := jsonDoc{ROAs: make([]jsonVRP, 0, len(vrps))}
	for _, v := range vrps {
		doc.ROAs = append(doc.ROAs, jsonVRP{
			ASN:       fmt.Sprintf("AS%d", v.ASID),
			Prefix:    prefix(v).String(),
			MaxLength: v.MaxLength,
			TA:        v.TAL,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteOpenBGPD renders OpenBGPD's `roa-set { ... }` config block.
func WriteOpenBGPD(w io.Writer, vrps []vrpstore.VRP) error {
	if _, err := fmt.Fprintln(w, "roa-set {"); err != nil {
		return err
	}
	for _, v := range vrps {
		if _, err := fmt.Fprintf(w, "\t%s maxlen %d source-as %d\n",
			prefix(v).String(), v.MaxLength, v.ASID); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// WriteBIRD1 renders BIRD 1.6's static ROA table syntax for one address
// family (BIRD 1.x needs separate v4/v6 tables).
func WriteBIRD1(w io.Writer, vrps []vrpstore.VRP, afi resources.AFI) error {
	for _, v := range vrps {
		if v.AFI != afi {
			continue
		}
		if _, err := fmt.Fprintf(w, "roa %s max %d as %d;\n",
			prefix(v).String(), v.MaxLength, v.ASID); err != nil {
			return err
		}
	}
	return nil
}

// WriteBIRD2 renders BIRD 2.x's unified static ROA syntax for both address
// families in one table.
func WriteBIRD2(w io.Writer, vrps []vrpstore.VRP) error {
	if _, err := fmt.Fprintln(w, "define ROA_TABLE = ["); err != nil {
		return err
	}
	for i, v := range vrps {
		sep := ","
		if i == len(vrps)-1 {
			sep = ""
		}
		if _, err := fmt.Fprintf(w, "\t%s max %d as %d%s\n",
			prefix(v).String(), v.MaxLength, v.ASID, sep); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "];")
	return err
}
