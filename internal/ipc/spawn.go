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

package ipc

import (
	"context"
	"net"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

// Role identifies which worker a spawned child process re-executes into.
type Role string

const (
	RoleParser   Role = "parser"
	RoleRsync    Role = "rsync"
	RoleHTTP     Role = "http"
	RoleRRDP     Role = "rrdp"
)

// RoleEnvVar is read by main() to decide whether the process is the
// orchestrator or should re-exec into a worker role's entry point.
const RoleEnvVar = "RPKI_CLIENT_WORKER_ROLE"

// Channel is a bidirectional framed byte stream to one child process, plus
// the *exec.Cmd controlling its lifetime.
type Channel struct {
	Conn net.Conn
	Cmd  *exec.Cmd
}

// Close closes the channel's connection. It does not kill the child; callers
// wait for EOF-triggered exit or call Cmd.Process.Kill explicitly.
func (c *Channel) Close() error {
	return c.Conn.Close()
}

// Spawn creates an AF_UNIX socketpair, hands one end to a re-exec of the
// current binary with role in RoleEnvVar, and returns a Channel wrapping
// the orchestrator's end. Each worker is a real child process, not a
// goroutine: processes communicate only via length-delimited framed
// messages on bidirectional byte streams.
func Spawn(ctx context.Context, role Role, extraArgs ...string) (*Channel, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, rperrors.Fatal("socketpair", err, "role", string(role))
	}
	parentFile := os.NewFile(uintptr(fds[0]), "ipc-parent-"+string(role))
	childFile := os.NewFile(uintptr(fds[1]), "ipc-child-"+string(role))
	defer childFile.Close()

	self, err := os.Executable()
	if err != nil {
		return nil, rperrors.Fatal("resolving self executable", err)
	}
	cmd := exec.CommandContext(ctx, self, extraArgs...)
	cmd.Env = append(os.Environ(), RoleEnvVar+"="+string(role))
	cmd.ExtraFiles = []*os.File{childFile}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		parentFile.Close()
		return nil, rperrors.Fatal("spawning worker process", err, "role", string(role))
	}

	conn, err := net.FileConn(parentFile)
	parentFile.Close()
	if err != nil {
		return nil, rperrors.Fatal("wrapping worker socket", err, "role", string(role))
	}
	return &Channel{Conn: conn, Cmd: cmd}, nil
}

// WorkerConn reconstructs the child's end of the socketpair from fd 3 (the
// first entry of ExtraFiles as seen by the child), for use by worker main
// functions started via the RoleEnvVar re-exec path.
func WorkerConn() (net.Conn, error) {
	f := os.NewFile(3, "ipc-worker")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, rperrors.Fatal("wrapping inherited worker socket", err)
	}
	return conn, nil
}

// SendFD passes an open file descriptor out-of-band over a Unix domain
// socket connection (the `fd` IPC primitive). Nothing in this tree calls it
// or RecvFD: the RRDP worker fetches its own documents over HTTP.
func SendFD(conn *net.UnixConn, f *os.File) error {
	rights := unix.UnixRights(int(f.Fd()))
	_, _, err := conn.WriteMsgUnix(nil, rights, nil)
	if err != nil {
		return rperrors.Transport("sending fd over ipc", err)
	}
	return nil
}

// RecvFD receives a file descriptor sent by SendFD.
func RecvFD(conn *net.UnixConn) (*os.File, error) {
	oob := make([]byte, unix.CmsgSpace(4))
	_, oobn, _, _, err := conn.ReadMsgUnix(nil, oob)
	if err != nil {
		return nil, rperrors.Transport("receiving fd over ipc", err)
	}
	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, rperrors.Transport("parsing fd control message", err)
	}
	if len(msgs) == 0 {
		return nil, rperrors.Transport("no control message received", nil)
	}
	fds, err := unix.ParseUnixRights(&msgs[0])
	if err != nil {
		return nil, rperrors.Transport("parsing unix rights", err)
	}
	if len(fds) == 0 {
		return nil, rperrors.Transport("no fd received", nil)
	}
	return os.NewFile(uintptr(fds[0]), "ipc-received-fd"), nil
}
