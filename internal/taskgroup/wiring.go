// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package taskgroup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// PortRef names one port of one task: "ident" means port 0, "ident:N"
// names port N explicitly.
type PortRef struct {
	TaskID string
	Port   int
}

func (p PortRef) String() string {
	return fmt.Sprintf("%s:%d", p.TaskID, p.Port)
}

// ParsePortRef decodes the task-port string grammar used in a task's
// `from` lists.
func ParsePortRef(s string) (PortRef, error) {
	taskID, portStr, hasPort := strings.Cut(s, ":")
	if !hasPort {
		if !identPattern.MatchString(taskID) {
			return PortRef{}, fmt.Errorf("taskgroup: invalid task reference %q", s)
		}
		return PortRef{TaskID: taskID, Port: 0}, nil
	}
	if !identPattern.MatchString(taskID) {
		return PortRef{}, fmt.Errorf("taskgroup: invalid task reference %q", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 {
		return PortRef{}, fmt.Errorf("taskgroup: invalid port in task reference %q", s)
	}
	return PortRef{TaskID: taskID, Port: port}, nil
}
