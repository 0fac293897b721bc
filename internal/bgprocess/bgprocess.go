// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bgprocess supervises the auxiliary shell commands a pipeline
// config may declare: before_task/after_task hooks run to completion
// around the task graph's lifetime, and long-lived bg_processes
// started alongside it, optionally gated on a readiness signal.
package bgprocess

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
	"github.com/clustercockpit-labs/dcrunner/pkg/schema"
)

// RunnerPIDEnv names the environment variable bg_processes can read to
// signal the spawning engine process.
const RunnerPIDEnv = "DC_RUNNER_PID"

// RunHooks runs each command in commands to completion, in order,
// returning on the first non-zero exit. label identifies the hook set
// (before_task or after_task) in log output and error text.
func RunHooks(label string, commands []string) error {
	for _, c := range commands {
		dclog.Infof("bgprocess: running %s hook: %s", label, c)
		cmd := exec.Command("sh", "-c", c)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("bgprocess: %s hook %q: %w", label, c, err)
		}
	}
	return nil
}

// Process is one running background process plus the means to wait
// for it to exit.
type Process struct {
	cmd     *exec.Cmd
	command string
}

// Start spawns every configured background process, setting
// DC_RUNNER_PID to this process's own PID in each child's environment
// and, when WaitSignal names a supported signal, blocking until that
// signal is received or a timeout elapses.
func Start(specs []schema.BgProcessConfig, readySignalTimeout time.Duration) ([]*Process, error) {
	procs := make([]*Process, 0, len(specs))
	for _, spec := range specs {
		p, err := startOne(spec, readySignalTimeout)
		if err != nil {
			for _, started := range procs {
				started.Stop()
			}
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, nil
}

func startOne(spec schema.BgProcessConfig, timeout time.Duration) (*Process, error) {
	cmd := exec.Command("sh", "-c", spec.Command)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", RunnerPIDEnv, os.Getpid()))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	sig, hasSignal, err := parseWaitSignal(spec.WaitSignal)
	if err != nil {
		return nil, err
	}

	var sigCh chan os.Signal
	if hasSignal {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, sig)
		defer signal.Stop(sigCh)
	}

	dclog.Infof("bgprocess: starting: %s", spec.Command)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("bgprocess: starting %q: %w", spec.Command, err)
	}

	if hasSignal {
		select {
		case <-sigCh:
			dclog.Infof("bgprocess: %s signaled ready", spec.Command)
		case <-time.After(timeout):
			dclog.Warnf("bgprocess: %s did not signal ready within %s", spec.Command, timeout)
		}
	}

	return &Process{cmd: cmd, command: spec.Command}, nil
}

// Stop sends SIGTERM and waits briefly for the process to exit.
func (p *Process) Stop() {
	if p.cmd.Process == nil {
		return
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		dclog.Warnf("bgprocess: signaling %s: %v", p.command, err)
	}
	done := make(chan struct{})
	go func() {
		p.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		dclog.Warnf("bgprocess: %s did not exit after SIGTERM, killing", p.command)
		p.cmd.Process.Kill()
		<-done
	}
}

func parseWaitSignal(name string) (syscall.Signal, bool, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return 0, false, nil
	case "sigusr1":
		return syscall.SIGUSR1, true, nil
	case "sigusr2":
		return syscall.SIGUSR2, true, nil
	default:
		return 0, false, fmt.Errorf("bgprocess: unsupported wait_signal %q", name)
	}
}
