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

package cryptoengine

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSubjectAccessAllMethods(t *testing.T) {
	ext := marshalSubjectInfoAccessExt(t, []struct {
		method asn1.ObjectIdentifier
		uri    string
	}{
		{oidADCARepository, "rsync://repo.example/ca"},
		{oidADRPKIManifest, "rsync://repo.example/ca/ca.mft"},
		{oidADSignedObject, "rsync://repo.example/ca/ee.cer"},
		{oidADRPKINotify, "https://repo.example/notification.xml"},
	})
	root := genRoot(t, []pkix.Extension{{Id: oidSubjectInfoAccess, Value: ext}})

	sa, err := decodeSubjectAccess(root.x)
	require.NoError(t, err)
	require.Equal(t, "rsync://repo.example/ca", sa.CARepository)
	require.Equal(t, "rsync://repo.example/ca/ca.mft", sa.RPKIManifest)
	require.Equal(t, "rsync://repo.example/ca/ee.cer", sa.SignedObject)
	require.Equal(t, "https://repo.example/notification.xml", sa.RPKINotify)
}

func TestDecodeSubjectAccessAbsentExtensionIsEmpty(t *testing.T) {
	root := genRoot(t, nil)
	sa, err := decodeSubjectAccess(root.x)
	require.NoError(t, err)
	require.Zero(t, sa)
}

func TestDecodeSubjectAccessIgnoresUnknownMethod(t *testing.T) {
	unknown := asn1.ObjectIdentifier{1, 2, 3, 4, 5}
	ext := marshalSubjectInfoAccessExt(t, []struct {
		method asn1.ObjectIdentifier
		uri    string
	}{
		{unknown, "rsync://repo.example/whatever"},
	})
	root := genRoot(t, []pkix.Extension{{Id: oidSubjectInfoAccess, Value: ext}})

	sa, err := decodeSubjectAccess(root.x)
	require.NoError(t, err)
	require.Zero(t, sa)
}
