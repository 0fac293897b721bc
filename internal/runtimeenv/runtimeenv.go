// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package runtimeenv handles the process-level concerns around
// starting the runner: loading a .env file, resolving where plugins
// live, dropping privileges after startup, and notifying systemd.
package runtimeenv

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
)

// DefaultPluginPathEnv is the environment variable naming one or more
// colon-separated plugin directories. cmd/dcrunner only logs these
// directories; they are not scanned and nothing in them is loaded.
// Shared-library elements are loaded only from plugin_files.
const DefaultPluginPathEnv = "DC_PLUGIN_PATH"

// LoadEnvFile loads a .env file into the process environment if
// present; a missing file is not an error, matching the optional
// nature of the teacher's own LoadEnv call in its startup path.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// PluginSearchPaths splits DC_PLUGIN_PATH on the OS path-list
// separator, dropping empty entries.
func PluginSearchPaths() []string {
	raw := os.Getenv(DefaultPluginPathEnv)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, string(os.PathListSeparator)) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DropPrivileges changes the process's user and group to the given
// names, applying group before user so the uid switch does not strand
// the process without permission to perform the gid switch.
func DropPrivileges(username, group string) error {
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return err
		}
		gid, _ := strconv.Atoi(g.Gid)
		if err := syscall.Setgid(gid); err != nil {
			return err
		}
	}

	if username != "" {
		u, err := user.Lookup(username)
		if err != nil {
			return err
		}
		uid, _ := strconv.Atoi(u.Uid)
		if err := syscall.Setuid(uid); err != nil {
			return err
		}
	}

	return nil
}

// SystemdNotify tells systemd the process is ready (or report a status
// string), a no-op outside of a systemd-managed unit.
func SystemdNotify(ready bool, status string) {
	if os.Getenv("NOTIFY_SOCKET") == "" {
		return
	}

	args := []string{fmt.Sprintf("--pid=%d", os.Getpid())}
	if ready {
		args = append(args, "--ready")
	}
	if status != "" {
		args = append(args, fmt.Sprintf("--status=%s", status))
	}

	cmd := exec.Command("systemd-notify", args...)
	cmd.Run() // best effort: nothing useful to do if systemd-notify is missing.
}
